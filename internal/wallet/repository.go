package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
)

// RepoName registers the wallet repository with the unit of work.
const RepoName uow.RepositoryName = "wallet"

// LedgerEntry records why a wallet moved.
type LedgerEntry struct {
	UserID      string
	Reason      string
	ReferenceID string
	Delta       Delta
}

// Repository persists wallets. GetForUpdate must hold the row until the
// surrounding transaction ends.
type Repository interface {
	Get(ctx context.Context, userID string) (State, error)
	GetForUpdate(ctx context.Context, userID string) (State, error)
	Save(ctx context.Context, st State) error
	AppendLedger(ctx context.Context, entry LedgerEntry) error
}

// PGRepository is the Postgres-backed Repository.
type PGRepository struct {
	DB uow.DBTX
}

// NewPGRepository is a uow.RepositoryFactory.
func NewPGRepository(db uow.DBTX) uow.Repository {
	return &PGRepository{DB: db}
}

// Get returns the wallet, or an empty wallet when the user has none yet.
func (r *PGRepository) Get(ctx context.Context, userID string) (State, error) {
	st := State{UserID: userID}
	var mills int64
	err := r.DB.QueryRow(ctx, `SELECT game_balance_mills, loyalty_points FROM wallets WHERE user_id = $1`, userID).
		Scan(&mills, &st.LoyaltyPoints)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			st.GameBalance = pricing.FromMills(0)
			return st, nil
		}
		return State{}, fmt.Errorf("get wallet: %w", err)
	}
	st.GameBalance = pricing.FromMills(mills)
	return st, nil
}

// GetForUpdate creates the row on demand and locks it.
func (r *PGRepository) GetForUpdate(ctx context.Context, userID string) (State, error) {
	if _, err := r.DB.Exec(ctx, `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return State{}, fmt.Errorf("ensure wallet: %w", err)
	}
	st := State{UserID: userID}
	var mills int64
	err := r.DB.QueryRow(ctx, `SELECT game_balance_mills, loyalty_points FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).
		Scan(&mills, &st.LoyaltyPoints)
	if err != nil {
		return State{}, fmt.Errorf("lock wallet: %w", err)
	}
	st.GameBalance = pricing.FromMills(mills)
	return st, nil
}

func (r *PGRepository) Save(ctx context.Context, st State) error {
	_, err := r.DB.Exec(ctx, `
INSERT INTO wallets (user_id, game_balance_mills, loyalty_points, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE
SET game_balance_mills = EXCLUDED.game_balance_mills,
    loyalty_points = EXCLUDED.loyalty_points,
    updated_at = now()`,
		st.UserID, pricing.ToMills(st.GameBalance), st.LoyaltyPoints)
	if err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

func (r *PGRepository) AppendLedger(ctx context.Context, e LedgerEntry) error {
	game := e.Delta.GameCredit.Sub(e.Delta.GameDebit)
	points := e.Delta.PointsCredit - e.Delta.PointsDebit
	_, err := r.DB.Exec(ctx, `
INSERT INTO wallet_ledger (user_id, reason, reference_id, game_delta_mills, points_delta)
VALUES ($1, $2, $3, $4, $5)`,
		e.UserID, e.Reason, e.ReferenceID, pricing.ToMills(game), points)
	if err != nil {
		return fmt.Errorf("append wallet ledger: %w", err)
	}
	return nil
}
