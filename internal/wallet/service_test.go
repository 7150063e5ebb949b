package wallet_test

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/localstate"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/uow"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

type memRepo struct {
	states  map[string]wallet.State
	ledger  []wallet.LedgerEntry
	readErr error
}

func (m *memRepo) Get(_ context.Context, userID string) (wallet.State, error) {
	if m.readErr != nil {
		return wallet.State{}, m.readErr
	}
	st, ok := m.states[userID]
	if !ok {
		return wallet.State{UserID: userID}, nil
	}
	return st, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, userID string) (wallet.State, error) {
	return m.Get(ctx, userID)
}

func (m *memRepo) Save(_ context.Context, st wallet.State) error {
	m.states[st.UserID] = st
	return nil
}

func (m *memRepo) AppendLedger(_ context.Context, e wallet.LedgerEntry) error {
	m.ledger = append(m.ledger, e)
	return nil
}

type runner struct{ repo *memRepo }

func (r runner) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	saved := map[string]wallet.State{}
	for k, v := range r.repo.states {
		saved[k] = v
	}
	if err := fn(ctx, uow.Static{wallet.RepoName: r.repo}); err != nil {
		r.repo.states = saved
		return err
	}
	return nil
}

func newMirror(t *testing.T) *localstate.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &localstate.Store{R: client}
}

func TestGetMirrorsAuthoritativeState(t *testing.T) {
	repo := &memRepo{states: map[string]wallet.State{
		"u1": {UserID: "u1", GameBalance: decimal.RequireFromString("4.5"), LoyaltyPoints: 60},
	}}
	mirror := newMirror(t)
	svc := &wallet.Service{Repo: repo, Mirror: mirror, Logger: zerolog.Nop()}

	view, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, view.Stale)
	require.EqualValues(t, 60, view.LoyaltyPoints)

	mirrored, found, err := mirror.LoadWallet(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "4.500", mirrored.GameBalance)
}

func TestGetFallsBackToStaleMirror(t *testing.T) {
	mirror := newMirror(t)
	require.NoError(t, mirror.SaveWallet(context.Background(), "u1", localstate.Wallet{GameBalance: "1.250", LoyaltyPoints: 9}))

	repo := &memRepo{states: map[string]wallet.State{}, readErr: errors.New("db down")}
	svc := &wallet.Service{Repo: repo, Mirror: mirror, Logger: zerolog.Nop()}

	view, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, view.Stale)
	require.Equal(t, "1.250", pricing.Format(view.GameBalance))

	_, err = svc.Get(context.Background(), "nobody")
	require.True(t, common.HasCode(err, common.CodeUpstreamFailure))
}

func TestCreditGame(t *testing.T) {
	repo := &memRepo{states: map[string]wallet.State{}}
	svc := &wallet.Service{Repo: repo, UOW: runner{repo: repo}, Logger: zerolog.Nop()}

	st, err := svc.CreditGame(context.Background(), "u1", decimal.RequireFromString("0.75"), wallet.ReasonGamePrize, "session-1")
	require.NoError(t, err)
	require.Equal(t, "0.750", pricing.Format(st.GameBalance))
	require.Len(t, repo.ledger, 1)
	require.Equal(t, wallet.ReasonGamePrize, repo.ledger[0].Reason)

	_, err = svc.CreditGame(context.Background(), "u1", decimal.Zero, wallet.ReasonGamePrize, "")
	require.True(t, common.HasCode(err, "INVALID_AMOUNT"))
}
