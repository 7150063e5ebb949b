package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-rewards/internal/events"
)

// TypeEventDispatch processes one persisted domain event.
const TypeEventDispatch = "event:dispatch"

// QueueDefault is the queue event tasks are placed on.
const QueueDefault = "default"

// EventPayload is the task body for TypeEventDispatch.
type EventPayload struct {
	EventID     uuid.UUID       `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEventTask builds the task for ev.
func NewEventTask(ev events.Event) (*asynq.Task, error) {
	if ev.ID == uuid.Nil {
		return nil, errors.New("tasks: event id is required")
	}
	body, err := json.Marshal(EventPayload{
		EventID:     ev.ID,
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Payload:     ev.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("tasks: encode event payload: %w", err)
	}
	return asynq.NewTask(TypeEventDispatch, body), nil
}

// Enqueuer is the subset of *asynq.Client used to schedule work.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler is an events.DeliveryScheduler backed by asynq.
type Scheduler struct {
	Client   Enqueuer
	MaxRetry int
	Timeout  time.Duration
}

// Schedule enqueues ev once; the event id doubles as the asynq task id so a
// repeated publish is a no-op.
func (s Scheduler) Schedule(ctx context.Context, ev events.Event) error {
	if s.Client == nil {
		return errors.New("tasks: client not configured")
	}
	task, err := NewEventTask(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.TaskID(ev.ID.String()),
		asynq.Queue(QueueDefault),
	}
	if s.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.MaxRetry))
	}
	if s.Timeout > 0 {
		opts = append(opts, asynq.Timeout(s.Timeout))
	}
	if _, err := s.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("tasks: enqueue %s: %w", ev.Topic, err)
	}
	return nil
}
