package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-rewards/internal/uow"
)

// RepoName registers the event store with the unit of work.
const RepoName uow.RepositoryName = "events"

// ErrNotFound indicates the event does not exist.
var ErrNotFound = errors.New("event not found")

// Event is a persisted domain event.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Topic        string          `json:"topic"`
	AggregateID  string          `json:"aggregateId"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurredAt"`
	DispatchedAt *time.Time      `json:"dispatchedAt,omitempty"`
}

// Store persists domain events. Inserting through a transaction-bound store
// makes the event part of that transaction.
type Store interface {
	Insert(ctx context.Context, ev Event) (Event, error)
	Get(ctx context.Context, id uuid.UUID) (Event, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	DB uow.DBTX
}

// NewPGStore is a uow.RepositoryFactory.
func NewPGStore(db uow.DBTX) uow.Repository {
	return &PGStore{DB: db}
}

func (s *PGStore) Insert(ctx context.Context, ev Event) (Event, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := s.DB.QueryRow(ctx, `
INSERT INTO domain_events (id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4)
RETURNING occurred_at`, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload)).Scan(&ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	var (
		ev      Event
		payload []byte
	)
	err := s.DB.QueryRow(ctx, `
SELECT id, topic, aggregate_id, payload, occurred_at, dispatched_at
FROM domain_events WHERE id = $1`, id).Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt, &ev.DispatchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("get domain event: %w", err)
	}
	ev.Payload = payload
	return ev, nil
}

func (s *PGStore) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	if _, err := s.DB.Exec(ctx, `UPDATE domain_events SET dispatched_at = now() WHERE id = $1 AND dispatched_at IS NULL`, id); err != nil {
		return fmt.Errorf("mark domain event dispatched: %w", err)
	}
	return nil
}
