package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
)

// Ledger reasons.
const (
	ReasonCheckout  = "checkout"
	ReasonGamePrize = "game_prize"
)

// Mirror is the advisory copy of wallet balances.
type Mirror interface {
	SaveWallet(ctx context.Context, userID string, w localstate.Wallet) error
	LoadWallet(ctx context.Context, userID string) (localstate.Wallet, bool, error)
}

// View is a wallet as shown to the customer. Stale views come from the mirror
// and must never feed redemption math.
type View struct {
	State
	Stale bool
}

// Service reads and credits wallets.
type Service struct {
	Repo   Repository
	UOW    uow.Runner
	Mirror Mirror
	Logger zerolog.Logger
}

// Get reads the authoritative wallet. When the store is unreachable the last
// mirrored balances are returned flagged stale.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	if s == nil || s.Repo == nil {
		return View{}, errors.New("wallet service not configured")
	}
	st, err := s.Repo.Get(ctx, userID)
	if err == nil {
		s.MirrorState(ctx, st)
		return View{State: st}, nil
	}
	s.Logger.Warn().Err(err).Str("user_id", userID).Msg("wallet_read_failed")
	if s.Mirror != nil {
		mirrored, found, mErr := s.Mirror.LoadWallet(ctx, userID)
		if mErr == nil && found {
			return View{State: State{
				UserID:        userID,
				GameBalance:   pricing.Normalize(mirrored.GameBalance),
				LoyaltyPoints: mirrored.LoyaltyPoints,
			}, Stale: true}, nil
		}
	}
	return View{}, common.Upstream("unable to load wallet", err)
}

// CreditGame adds a prize to the game wallet in its own transaction.
func (s *Service) CreditGame(ctx context.Context, userID string, amount decimal.Decimal, reason, referenceID string) (State, error) {
	if s == nil || s.UOW == nil {
		return State{}, errors.New("wallet service not configured")
	}
	if !amount.IsPositive() {
		return State{}, common.Validation("INVALID_AMOUNT", "credit amount must be positive")
	}
	var updated State
	err := s.UOW.Do(ctx, func(ctx context.Context, tx uow.TX) error {
		repo, err := uow.GetAs[Repository](tx, RepoName)
		if err != nil {
			return err
		}
		current, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		delta := Delta{GameCredit: amount}
		updated = current.Apply(delta)
		if err := repo.Save(ctx, updated); err != nil {
			return err
		}
		return repo.AppendLedger(ctx, LedgerEntry{UserID: userID, Reason: reason, ReferenceID: referenceID, Delta: delta})
	})
	if err != nil {
		return State{}, common.Upstream("unable to credit wallet", fmt.Errorf("wallet: %w", err))
	}
	s.MirrorState(ctx, updated)
	return updated, nil
}

// MirrorState copies st into the advisory mirror, logging failures.
func (s *Service) MirrorState(ctx context.Context, st State) {
	if s == nil || s.Mirror == nil {
		return
	}
	err := s.Mirror.SaveWallet(ctx, st.UserID, localstate.Wallet{
		GameBalance:   pricing.Format(st.GameBalance),
		LoyaltyPoints: st.LoyaltyPoints,
	})
	if err != nil {
		s.Logger.Warn().Err(err).Str("user_id", st.UserID).Msg("wallet_mirror_failed")
	}
}
