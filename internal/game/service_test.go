package game_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/events"
	"github.com/noah-isme/toko-rewards/internal/game"
	"github.com/noah-isme/toko-rewards/internal/lock"
	"github.com/noah-isme/toko-rewards/internal/pricing"
	"github.com/noah-isme/toko-rewards/internal/wallet"
)

type fakeWallet struct {
	balance decimal.Decimal
	refs    []string
	err     error
}

func (f *fakeWallet) CreditGame(_ context.Context, userID string, amount decimal.Decimal, reason, ref string) (wallet.State, error) {
	if f.err != nil {
		return wallet.State{}, f.err
	}
	f.balance = f.balance.Add(amount)
	f.refs = append(f.refs, reason+":"+ref)
	return wallet.State{UserID: userID, GameBalance: f.balance}, nil
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic, _ string, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic}, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T) (*game.Service, *fakeWallet, *captureEmitter, *clock) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	w := &fakeWallet{}
	em := &captureEmitter{}
	c := &clock{now: t0}
	return &game.Service{
		Store:  game.RedisStore{R: client, TTL: time.Hour},
		Wallet: w,
		Events: em,
		Lock:   lock.Locker{R: client, RetryBackoff: time.Millisecond},
		Rules:  rules(t),
		Logger: zerolog.Nop(),
		Now:    c.Now,
	}, w, em, c
}

func TestServicePersistsAcrossCallsAndPaysPrize(t *testing.T) {
	svc, w, em, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "u1", true)
	require.NoError(t, err)
	out, err := svc.Answer(ctx, "u1", true)
	require.NoError(t, err)
	require.Equal(t, 2, out.Session.Level)

	out, err = svc.Withdraw(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "0.250", pricing.Format(out.Paid))
	require.Equal(t, "0.250", pricing.Format(w.balance))
	require.Equal(t, []string{wallet.ReasonGamePrize + ":" + out.Session.RoundID}, w.refs)
	require.Equal(t, []string{events.TopicWalletGameCredited}, em.topics)

	sess, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, game.LockedAfterWin, sess.State)
}

func TestServiceLockExpiresToIdle(t *testing.T) {
	svc, _, _, c := newService(t)
	ctx := context.Background()

	_, err := svc.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "u1", false)
	require.NoError(t, err)

	_, err = svc.Start(ctx, "u1")
	require.True(t, common.HasCode(err, game.CodeGameState))

	c.now = t0.Add(time.Hour)
	sess, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, game.Idle, sess.State)
}

func TestServiceDoesNotAdvanceWhenCreditFails(t *testing.T) {
	svc, w, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Answer(ctx, "u1", true)
	require.NoError(t, err)

	w.err = common.Upstream("unable to credit wallet", errors.New("db down"))
	_, err = svc.Withdraw(ctx, "u1")
	require.True(t, common.HasCode(err, common.CodeUpstreamFailure))

	sess, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, game.Playing, sess.State)
	require.Equal(t, "0.100", pricing.Format(sess.Earnings))
}

func TestHandlerAnswerFlow(t *testing.T) {
	svc, _, _, _ := newService(t)
	h := &game.Handler{Svc: svc}

	do := func(fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/game", bytes.NewBufferString(body))
		req = req.WithContext(common.WithUserID(req.Context(), "u1"))
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	rec := do(h.Start, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nextPrize":"0.100"`)

	rec = do(h.Answer, `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h.Answer, `{"correct":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"earnings":"0.100"`)

	rec = do(h.Start, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), game.CodeGameState)
}
