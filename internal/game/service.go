package game

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/obs"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

// Crediter pays prizes into the game wallet.
type Crediter interface {
	CreditGame(ctx context.Context, userID string, amount decimal.Decimal, reason, referenceID string) (wallet.State, error)
}

// Emitter records domain events outside any transaction.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Locker serialises actions on one user's session.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service drives the game for a user and pays prizes.
type Service struct {
	Store  SessionStore
	Wallet Crediter
	Events Emitter
	Lock   Locker
	Rules  Rules
	Logger zerolog.Logger
	Now    func() time.Time
}

// Outcome is the session after an action plus any prize paid by it.
type Outcome struct {
	Session Session
	Paid    decimal.Decimal
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the current session with expired locks resolved.
func (s *Service) Get(ctx context.Context, userID string) (Session, error) {
	if s == nil || s.Store == nil {
		return Session{}, errors.New("game service not configured")
	}
	sess, err := s.Store.Load(ctx, userID)
	if err != nil {
		return Session{}, common.Upstream("unable to load game", err)
	}
	return sess.Resolve(s.now()), nil
}

func (s *Service) Start(ctx context.Context, userID string) (Outcome, error) {
	return s.apply(ctx, userID, func(sess Session, now time.Time) (Session, decimal.Decimal, error) {
		next, err := sess.Start(now)
		return next, decimal.Zero, err
	})
}

func (s *Service) Answer(ctx context.Context, userID string, correct bool) (Outcome, error) {
	return s.apply(ctx, userID, func(sess Session, now time.Time) (Session, decimal.Decimal, error) {
		return sess.Answer(correct, now, s.Rules)
	})
}

func (s *Service) Withdraw(ctx context.Context, userID string) (Outcome, error) {
	return s.apply(ctx, userID, func(sess Session, now time.Time) (Session, decimal.Decimal, error) {
		return sess.Withdraw(now, s.Rules)
	})
}

type transition func(Session, time.Time) (Session, decimal.Decimal, error)

func (s *Service) apply(ctx context.Context, userID string, step transition) (Outcome, error) {
	if s == nil || s.Store == nil {
		return Outcome{}, errors.New("game service not configured")
	}
	var out Outcome
	run := func(ctx context.Context) error {
		current, err := s.Store.Load(ctx, userID)
		if err != nil {
			return common.Upstream("unable to load game", err)
		}
		now := s.now()
		from := current.Resolve(now).State
		next, payout, err := step(current, now)
		if err != nil {
			return err
		}
		if payout.IsPositive() {
			if err := s.pay(ctx, userID, next.RoundID, payout); err != nil {
				return err
			}
		}
		if err := s.Store.Save(ctx, userID, next); err != nil {
			s.Logger.Error().Err(err).Str("user_id", userID).Str("round_id", next.RoundID).Msg("game_session_save_failed")
			return common.Upstream("unable to save game", err)
		}
		obs.RecordGameTransition(string(from), string(next.State))
		out = Outcome{Session: next, Paid: payout}
		return nil
	}
	var err error
	if s.Lock == nil {
		err = run(ctx)
	} else {
		err = s.Lock.WithLock(ctx, "game:lock:"+userID, 5*time.Second, run)
	}
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (s *Service) pay(ctx context.Context, userID, roundID string, amount decimal.Decimal) error {
	if s.Wallet == nil {
		return errors.New("game: wallet not configured")
	}
	st, err := s.Wallet.CreditGame(ctx, userID, amount, wallet.ReasonGamePrize, roundID)
	if err != nil {
		return err
	}
	s.Logger.Info().
		Str("user_id", userID).
		Str("round_id", roundID).
		Str("prize", pricing.Format(amount)).
		Str("game_balance", pricing.Format(st.GameBalance)).
		Msg("game_prize_paid")
	if s.Events != nil {
		payload := map[string]any{"userId": userID, "roundId": roundID, "amount": pricing.Format(amount)}
		if _, err := s.Events.Emit(ctx, events.TopicWalletGameCredited, userID, payload); err != nil {
			s.Logger.Warn().Err(err).Str("user_id", userID).Msg("game_prize_event_failed")
		}
	}
	return nil
}
