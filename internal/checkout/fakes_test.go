package checkout_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-rewards/internal/cart"
	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/uow"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

var errInjected = errors.New("injected failure")

// world is an in-memory stand-in for the database. Its runner snapshots every
// table before a unit of work and restores them when the work fails.
type world struct {
	mu      sync.Mutex
	carts   map[string][]cart.Line
	wallets map[string]wallet.State
	orders  []order.Order
	ledger  []wallet.LedgerEntry
	events  []events.Event

	failOn string
	runs   int
}

func newWorld() *world {
	return &world{
		carts:   map[string][]cart.Line{},
		wallets: map[string]wallet.State{},
	}
}

type snapshot struct {
	carts   map[string][]cart.Line
	wallets map[string]wallet.State
	orders  []order.Order
	ledger  []wallet.LedgerEntry
	events  []events.Event
}

func (w *world) snapshot() snapshot {
	s := snapshot{
		carts:   map[string][]cart.Line{},
		wallets: map[string]wallet.State{},
		orders:  append([]order.Order(nil), w.orders...),
		ledger:  append([]wallet.LedgerEntry(nil), w.ledger...),
		events:  append([]events.Event(nil), w.events...),
	}
	for k, v := range w.carts {
		s.carts[k] = append([]cart.Line(nil), v...)
	}
	for k, v := range w.wallets {
		s.wallets[k] = v
	}
	return s
}

func (w *world) restore(s snapshot) {
	w.carts, w.wallets, w.orders, w.ledger, w.events = s.carts, s.wallets, s.orders, s.ledger, s.events
}

func (w *world) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs++
	saved := w.snapshot()
	tx := uow.Static{
		cart.RepoName:   cartRepo{w},
		wallet.RepoName: walletRepo{w},
		order.RepoName:  orderRepo{w},
		events.RepoName: eventStore{w},
	}
	if err := fn(ctx, tx); err != nil {
		w.restore(saved)
		return err
	}
	return nil
}

func (w *world) fail(step string) error {
	if w.failOn == step {
		return errInjected
	}
	return nil
}

type cartRepo struct{ w *world }

func (r cartRepo) List(_ context.Context, userID string) ([]cart.Line, error) {
	if err := r.w.fail("cart.list"); err != nil {
		return nil, err
	}
	return append([]cart.Line(nil), r.w.carts[userID]...), nil
}

func (r cartRepo) Upsert(_ context.Context, userID string, line cart.Line) (cart.Line, error) {
	line.ID = uuid.NewString()
	r.w.carts[userID] = append(r.w.carts[userID], line)
	return line, nil
}

func (r cartRepo) UpdateQuantity(context.Context, string, string, int) error { return nil }

func (r cartRepo) Remove(context.Context, string, string) error { return nil }

func (r cartRepo) Clear(_ context.Context, userID string) error {
	if err := r.w.fail("cart.clear"); err != nil {
		return err
	}
	delete(r.w.carts, userID)
	return nil
}

type walletRepo struct{ w *world }

func (r walletRepo) Get(_ context.Context, userID string) (wallet.State, error) {
	st, ok := r.w.wallets[userID]
	if !ok {
		return wallet.State{UserID: userID}, nil
	}
	return st, nil
}

func (r walletRepo) GetForUpdate(ctx context.Context, userID string) (wallet.State, error) {
	return r.Get(ctx, userID)
}

func (r walletRepo) Save(_ context.Context, st wallet.State) error {
	if err := r.w.fail("wallet.save"); err != nil {
		return err
	}
	r.w.wallets[st.UserID] = st
	return nil
}

func (r walletRepo) AppendLedger(_ context.Context, e wallet.LedgerEntry) error {
	if err := r.w.fail("wallet.ledger"); err != nil {
		return err
	}
	r.w.ledger = append(r.w.ledger, e)
	return nil
}

type orderRepo struct{ w *world }

func (r orderRepo) Create(_ context.Context, o order.Order) error {
	if err := r.w.fail("order.create"); err != nil {
		return err
	}
	r.w.orders = append(r.w.orders, o)
	return nil
}

func (r orderRepo) ListByUser(context.Context, string, int, int) ([]order.Order, error) {
	return r.w.orders, nil
}

func (r orderRepo) CountByUser(context.Context, string) (int64, error) {
	return int64(len(r.w.orders)), nil
}

func (r orderRepo) GetByID(_ context.Context, userID string, id uuid.UUID) (order.Order, error) {
	for _, o := range r.w.orders {
		if o.ID == id && o.UserID == userID {
			return o, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

type eventStore struct{ w *world }

func (s eventStore) Insert(_ context.Context, ev events.Event) (events.Event, error) {
	if err := s.w.fail("events.insert"); err != nil {
		return events.Event{}, err
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.OccurredAt = time.Now()
	s.w.events = append(s.w.events, ev)
	return ev, nil
}

func (s eventStore) Get(context.Context, uuid.UUID) (events.Event, error) {
	return events.Event{}, events.ErrNotFound
}

func (s eventStore) MarkDispatched(context.Context, uuid.UUID) error { return nil }

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
