package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

// OrderReader loads settled orders.
type OrderReader interface {
	GetByID(ctx context.Context, userID string, id uuid.UUID) (order.Order, error)
}

// WalletReader loads authoritative wallet state.
type WalletReader interface {
	Get(ctx context.Context, userID string) (wallet.State, error)
}

// Mirror is the localstate surface the worker refreshes.
type Mirror interface {
	SaveWallet(ctx context.Context, userID string, w localstate.Wallet) error
	AppendOrder(ctx context.Context, userID string, o localstate.OrderSummary) error
	Orders(ctx context.Context, userID string) ([]localstate.OrderSummary, error)
}

type userRef struct {
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
}

// Processor handles TypeEventDispatch tasks. It repairs the localstate
// mirror after settlements and prize credits, then marks the event dispatched.
type Processor struct {
	Events  events.Store
	Orders  OrderReader
	Wallets WalletReader
	Mirror  Mirror
	Logger  zerolog.Logger
}

// Register attaches the processor to an asynq mux.
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeEventDispatch, p)
}

// ProcessTask implements asynq.Handler.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload EventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode event task: %v: %w", err, asynq.SkipRetry)
	}
	var ref userRef
	if len(payload.Payload) > 0 {
		if err := json.Unmarshal(payload.Payload, &ref); err != nil {
			return fmt.Errorf("decode event body: %v: %w", err, asynq.SkipRetry)
		}
	}
	log := p.Logger.With().Str("event_id", payload.EventID.String()).Str("topic", payload.Topic).Logger()

	switch payload.Topic {
	case events.TopicOrderCreated:
		if err := p.mirrorOrder(ctx, ref); err != nil {
			return err
		}
		if err := p.mirrorWallet(ctx, ref.UserID); err != nil {
			return err
		}
	case events.TopicWalletGameCredited:
		if err := p.mirrorWallet(ctx, ref.UserID); err != nil {
			return err
		}
	default:
		log.Warn().Msg("event_topic_unhandled")
	}

	if p.Events != nil && payload.EventID != uuid.Nil {
		if err := p.Events.MarkDispatched(ctx, payload.EventID); err != nil {
			return err
		}
	}
	log.Debug().Msg("event_dispatched")
	return nil
}

func (p *Processor) mirrorOrder(ctx context.Context, ref userRef) error {
	if p.Orders == nil || p.Mirror == nil {
		return nil
	}
	id, err := uuid.Parse(ref.OrderID)
	if err != nil || ref.UserID == "" {
		return fmt.Errorf("order event missing ids: %w", asynq.SkipRetry)
	}
	existing, err := p.Mirror.Orders(ctx, ref.UserID)
	if err != nil {
		return err
	}
	for _, o := range existing {
		if o.ID == id.String() {
			return nil
		}
	}
	o, err := p.Orders.GetByID(ctx, ref.UserID, id)
	if err != nil {
		return fmt.Errorf("load order %s: %w", id, err)
	}
	return p.Mirror.AppendOrder(ctx, ref.UserID, o.Summary())
}

func (p *Processor) mirrorWallet(ctx context.Context, userID string) error {
	if p.Wallets == nil || p.Mirror == nil || userID == "" {
		return nil
	}
	st, err := p.Wallets.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	return p.Mirror.SaveWallet(ctx, userID, localstate.Wallet{
		GameBalance:   pricing.Format(st.GameBalance),
		LoyaltyPoints: st.LoyaltyPoints,
	})
}
