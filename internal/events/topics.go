package events

// Topic constants for domain events emitted by the service.
const (
	TopicOrderCreated       = "order.created"
	TopicWalletGameCredited = "wallet.game_credited"
)

// DefaultTopics returns the topics the worker knows how to process.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicWalletGameCredited,
	}
}
