package game_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/game"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func rules(t *testing.T) game.Rules {
	t.Helper()
	ladder, err := game.ParseLadder([]string{"0.100", "0.250", "0.500"})
	require.NoError(t, err)
	return game.Rules{Ladder: ladder, WinCooldown: 24 * time.Hour, LossCooldown: time.Hour}
}

func TestParseLadder(t *testing.T) {
	ladder, err := game.ParseLadder([]string{"0.1", "1 X", "2,000"})
	require.NoError(t, err)
	require.Equal(t, "2000.000", pricing.Format(ladder[2]))

	_, err = game.ParseLadder(nil)
	require.Error(t, err)
	_, err = game.ParseLadder([]string{"1", "1"})
	require.Error(t, err)
	_, err = game.ParseLadder([]string{"0"})
	require.Error(t, err)
}

func TestClimbAndWithdraw(t *testing.T) {
	r := rules(t)
	s, err := game.Session{}.Start(t0)
	require.NoError(t, err)
	require.Equal(t, game.Playing, s.State)
	require.NotEmpty(t, s.RoundID)

	s, paid, err := s.Answer(true, t0, r)
	require.NoError(t, err)
	require.True(t, paid.IsZero())
	s, _, err = s.Answer(true, t0, r)
	require.NoError(t, err)
	require.Equal(t, "0.250", pricing.Format(s.Earnings))

	s, paid, err = s.Withdraw(t0, r)
	require.NoError(t, err)
	require.Equal(t, game.LockedAfterWin, s.State)
	require.Equal(t, "0.250", pricing.Format(paid))
	require.Equal(t, t0.Add(24*time.Hour), s.LockedUntil)
}

func TestTopRungAutoWithdraws(t *testing.T) {
	r := rules(t)
	s, _ := game.Session{}.Start(t0)
	var paid decimal.Decimal
	var err error
	for i := 0; i < 3; i++ {
		s, paid, err = s.Answer(true, t0, r)
		require.NoError(t, err)
	}
	require.Equal(t, game.LockedAfterWin, s.State)
	require.Equal(t, "0.500", pricing.Format(paid))
}

func TestWrongAnswerForfeitsAndLocks(t *testing.T) {
	r := rules(t)
	s, _ := game.Session{}.Start(t0)
	s, _, _ = s.Answer(true, t0, r)
	s, paid, err := s.Answer(false, t0, r)
	require.NoError(t, err)
	require.True(t, paid.IsZero())
	require.Equal(t, game.LockedAfterLoss, s.State)
	require.True(t, s.Earnings.IsZero())

	_, err = s.Start(t0.Add(30 * time.Minute))
	require.True(t, common.HasCode(err, game.CodeGameState))

	s, err = s.Start(t0.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, game.Playing, s.State)
}

func TestIllegalTransitions(t *testing.T) {
	r := rules(t)
	idle := game.Session{}

	_, _, err := idle.Answer(true, t0, r)
	require.True(t, common.HasCode(err, game.CodeGameState))
	_, _, err = idle.Withdraw(t0, r)
	require.True(t, common.HasCode(err, game.CodeGameState))

	playing, _ := idle.Start(t0)
	_, err = playing.Start(t0)
	require.True(t, common.HasCode(err, game.CodeGameState))
	_, _, err = playing.Withdraw(t0, r)
	require.True(t, common.HasCode(err, game.CodeGameState), "nothing earned yet")
}
