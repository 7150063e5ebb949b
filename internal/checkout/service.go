package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/cart"
	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/lock"
	"github.com/noah-isme/toko-rewards/internal/obs"
	"github.com/noah-isme/toko-rewards/internal/order"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

const defaultLockTTL = 30 * time.Second

// Guard serialises submissions per user.
type Guard interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Publisher dispatches events after the settlement commits.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Mirror is the advisory local copy refreshed after settlement.
type Mirror interface {
	SaveWallet(ctx context.Context, userID string, w localstate.Wallet) error
	AppendOrder(ctx context.Context, userID string, o localstate.OrderSummary) error
}

// Quote is a priced checkout that has not been settled.
type Quote struct {
	Plan      pricing.Plan
	ItemCount int
	Wallet    wallet.State
}

// Receipt describes a settled order.
type Receipt struct {
	OrderID   uuid.UUID
	Reference string
	Status    string
	Plan      pricing.Plan
	Wallet    wallet.State
	CreatedAt time.Time
}

// Service prices checkouts and settles orders against the wallets.
type Service struct {
	UOW     uow.Runner
	Guard   Guard
	LockTTL time.Duration
	Bus     Publisher
	Mirror  Mirror
	Logger  zerolog.Logger

	Now          func() time.Time
	NewReference func() (string, error)
}

func (s *Service) ready() error {
	if s == nil || s.UOW == nil {
		return common.NewAppError(common.CodeInternal, "checkout service not configured", http.StatusInternalServerError, nil)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) reference() (string, error) {
	if s.NewReference != nil {
		return s.NewReference()
	}
	return order.NewReference()
}

// LockKey is the concurrency guard key for a user's checkout.
func LockKey(userID string) string {
	return "checkout:lock:" + userID
}

// Quote prices the current cart against the current wallet. Nothing is written.
func (s *Service) Quote(ctx context.Context, userID string, sel Selection) (Quote, error) {
	if err := s.ready(); err != nil {
		return Quote{}, err
	}
	if err := sel.check(); err != nil {
		obs.RecordQuote("rejected")
		return Quote{}, err
	}
	var q Quote
	err := s.UOW.Do(ctx, func(ctx context.Context, tx uow.TX) error {
		carts, err := uow.GetAs[cart.Repository](tx, cart.RepoName)
		if err != nil {
			return err
		}
		wallets, err := uow.GetAs[wallet.Repository](tx, wallet.RepoName)
		if err != nil {
			return err
		}
		lines, err := carts.List(ctx, userID)
		if err != nil {
			return fmt.Errorf("read cart: %w", err)
		}
		snap := cart.NewSnapshot(lines)
		if snap.Empty() {
			return ErrEmptyCart
		}
		st, err := wallets.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("read wallet: %w", err)
		}
		q = Quote{
			Plan:      pricing.Compose(sel.input(snap.Subtotal(), st.GameBalance, st.LoyaltyPoints)),
			ItemCount: snap.ItemCount,
			Wallet:    st,
		}
		return nil
	})
	if err != nil {
		obs.RecordQuote(resultOf(err))
		return Quote{}, classify(err, "unable to price checkout")
	}
	obs.RecordQuote("ok")
	return q, nil
}

// Submit settles the cart into an order. Every write happens in one
// transaction; on any failure nothing is persisted.
func (s *Service) Submit(ctx context.Context, userID string, req Request) (Receipt, error) {
	if err := s.ready(); err != nil {
		return Receipt{}, err
	}
	req = req.normalized()
	if err := validate(requestValidator, req); err != nil {
		obs.RecordCheckout("invalid")
		return Receipt{}, err
	}
	if err := req.Selection.check(); err != nil {
		obs.RecordCheckout("invalid")
		return Receipt{}, err
	}

	var (
		placed order.Order
		after  wallet.State
		event  events.Event
	)
	settle := func(ctx context.Context) error {
		return s.UOW.Do(ctx, func(ctx context.Context, tx uow.TX) error {
			var err error
			placed, after, event, err = s.settle(ctx, tx, userID, req)
			return err
		})
	}

	var err error
	if s.Guard != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = defaultLockTTL
		}
		err = s.Guard.TryWithLock(ctx, LockKey(userID), ttl, settle)
	} else {
		err = settle(ctx)
	}
	if err != nil {
		obs.RecordCheckout(resultOf(err))
		if errors.Is(err, lock.ErrLocked) {
			return Receipt{}, common.Conflict(common.CodeCheckoutInProgress, "a checkout is already in progress")
		}
		if !common.IsAppError(err) {
			s.Logger.Error().Err(err).Str("user_id", userID).Msg("checkout_failed")
		}
		return Receipt{}, classify(err, "checkout could not be completed")
	}

	plan := pricing.Plan{
		Subtotal:         placed.Subtotal,
		DeliveryFee:      placed.DeliveryFee,
		GameDeduction:    placed.GameDeduction,
		LoyaltyDeduction: placed.LoyaltyDeduction,
		FinalTotal:       placed.Total,
		PointsToDebit:    placed.PointsDebited,
		PointsEarned:     placed.PointsEarned,
	}
	s.afterCommit(ctx, placed, after, event)
	return Receipt{
		OrderID:   placed.ID,
		Reference: placed.Reference,
		Status:    placed.Status,
		Plan:      plan,
		Wallet:    after,
		CreatedAt: placed.CreatedAt,
	}, nil
}

func (s *Service) settle(ctx context.Context, tx uow.TX, userID string, req Request) (order.Order, wallet.State, events.Event, error) {
	carts, err := uow.GetAs[cart.Repository](tx, cart.RepoName)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	wallets, err := uow.GetAs[wallet.Repository](tx, wallet.RepoName)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	orders, err := uow.GetAs[order.Repository](tx, order.RepoName)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	outbox, err := uow.GetAs[events.Store](tx, events.RepoName)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}

	lines, err := carts.List(ctx, userID)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("read cart: %w", err)
	}
	snap := cart.NewSnapshot(lines)
	if snap.Empty() {
		return order.Order{}, wallet.State{}, events.Event{}, ErrEmptyCart
	}
	current, err := wallets.GetForUpdate(ctx, userID)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("lock wallet: %w", err)
	}

	plan := pricing.Compose(req.Selection.input(snap.Subtotal(), current.GameBalance, current.LoyaltyPoints))
	if req.Expected != nil && !req.Expected.matches(plan) {
		return order.Order{}, wallet.State{}, events.Event{}, common.Conflict(CodeQuoteStale, "totals changed since the quote").
			WithDetails(map[string]any{"quote": PlanJSON(plan)})
	}
	if plan.GameDeduction.GreaterThan(current.GameBalance) || plan.PointsToDebit > current.LoyaltyPoints {
		return order.Order{}, wallet.State{}, events.Event{}, ErrInsufficientWallet
	}

	ref, err := s.reference()
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	placed := order.Order{
		ID:               uuid.New(),
		Reference:        ref,
		UserID:           userID,
		Status:           order.StatusProcessing,
		PaymentMethod:    req.PaymentMethod,
		Subtotal:         plan.Subtotal,
		DeliveryFee:      plan.DeliveryFee,
		GameDeduction:    plan.GameDeduction,
		LoyaltyDeduction: plan.LoyaltyDeduction,
		Total:            plan.FinalTotal,
		PointsDebited:    plan.PointsToDebit,
		PointsEarned:     plan.PointsEarned,
		Address:          req.Address,
		Items:            order.ItemsFromCart(snap.Lines),
		CreatedAt:        s.now(),
	}
	if err := orders.Create(ctx, placed); err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("create order: %w", err)
	}

	delta := wallet.SettlementDelta(plan)
	after := current.Apply(delta)
	if !delta.IsZero() {
		if err := wallets.Save(ctx, after); err != nil {
			return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("save wallet: %w", err)
		}
		entry := wallet.LedgerEntry{UserID: userID, Reason: wallet.ReasonCheckout, ReferenceID: placed.ID.String(), Delta: delta}
		if err := wallets.AppendLedger(ctx, entry); err != nil {
			return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("append ledger: %w", err)
		}
	}

	if err := carts.Clear(ctx, userID); err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, fmt.Errorf("clear cart: %w", err)
	}

	ev, err := events.New(events.TopicOrderCreated, placed.ID.String(), map[string]any{
		"orderId":      placed.ID.String(),
		"userId":       userID,
		"reference":    placed.Reference,
		"total":        pricing.Format(placed.Total),
		"pointsEarned": placed.PointsEarned,
	})
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	ev, err = outbox.Insert(ctx, ev)
	if err != nil {
		return order.Order{}, wallet.State{}, events.Event{}, err
	}
	return placed, after, ev, nil
}

// afterCommit runs side effects that must not undo a committed settlement.
func (s *Service) afterCommit(ctx context.Context, placed order.Order, after wallet.State, ev events.Event) {
	log := s.Logger.With().
		Str("user_id", placed.UserID).
		Str("order_id", placed.ID.String()).
		Str("reference", placed.Reference).
		Logger()

	if s.Bus != nil {
		if err := s.Bus.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("order_event_publish_failed")
		}
	}
	if s.Mirror != nil {
		if err := s.Mirror.SaveWallet(ctx, placed.UserID, localstate.Wallet{
			GameBalance:   pricing.Format(after.GameBalance),
			LoyaltyPoints: after.LoyaltyPoints,
		}); err != nil {
			log.Warn().Err(err).Msg("wallet_mirror_failed")
		}
		if err := s.Mirror.AppendOrder(ctx, placed.UserID, placed.Summary()); err != nil {
			log.Warn().Err(err).Msg("order_mirror_failed")
		}
	}

	obs.RecordCheckout("settled")
	obs.RecordSettlement(floatOf(placed.GameDeduction), floatOf(placed.LoyaltyDeduction), placed.PointsDebited, placed.PointsEarned)
	log.Info().
		Str("final_total", pricing.Format(placed.Total)).
		Str("game_deduction", pricing.Format(placed.GameDeduction)).
		Str("loyalty_deduction", pricing.Format(placed.LoyaltyDeduction)).
		Int64("points_debited", placed.PointsDebited).
		Int64("points_earned", placed.PointsEarned).
		Msg("checkout_settled")
}

func floatOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, lock.ErrLocked):
		return "in_progress"
	case common.HasCode(err, CodeCartEmpty):
		return "empty"
	case common.HasCode(err, CodeQuoteStale):
		return "stale"
	case common.IsAppError(err):
		return "rejected"
	default:
		return "failed"
	}
}

// classify keeps AppErrors raised inside the transaction and reports anything
// else as an upstream failure.
func classify(err error, message string) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return common.Upstream(message, err)
}
