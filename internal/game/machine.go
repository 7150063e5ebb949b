package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/common"
	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// State is a position in the game lifecycle.
type State string

const (
	Idle            State = "idle"
	Playing         State = "playing"
	LockedAfterLoss State = "locked_after_loss"
	LockedAfterWin  State = "locked_after_win"
)

// CodeGameState rejects a transition the current state does not allow.
const CodeGameState = "GAME_STATE"

// Rules are the configurable parts of the game.
type Rules struct {
	// Ladder holds the cumulative prize after each correct answer.
	Ladder       []decimal.Decimal
	WinCooldown  time.Duration
	LossCooldown time.Duration
}

// ParseLadder converts configured prize strings. The ladder must be non-empty
// and strictly increasing.
func ParseLadder(values []string) ([]decimal.Decimal, error) {
	if len(values) == 0 {
		return nil, errors.New("game: prize ladder is empty")
	}
	ladder := make([]decimal.Decimal, 0, len(values))
	prev := decimal.Zero
	for i, v := range values {
		amount := pricing.Round(pricing.Normalize(v))
		if !amount.GreaterThan(prev) {
			return nil, fmt.Errorf("game: prize ladder step %d (%s) must exceed %s", i+1, v, pricing.Format(prev))
		}
		ladder = append(ladder, amount)
		prev = amount
	}
	return ladder, nil
}

// Session is one customer's game state.
type Session struct {
	State       State           `json:"state"`
	RoundID     string          `json:"roundId,omitempty"`
	Level       int             `json:"level"`
	Earnings    decimal.Decimal `json:"earnings"`
	LockedUntil time.Time       `json:"lockedUntil,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func stateError(s Session, action string) error {
	return common.Validation(CodeGameState, fmt.Sprintf("cannot %s while %s", action, s.State)).
		WithDetails(map[string]any{"state": s.State, "lockedUntil": s.LockedUntil})
}

// Resolve turns an expired lock into Idle.
func (s Session) Resolve(now time.Time) Session {
	if s.State == "" {
		s.State = Idle
	}
	if (s.State == LockedAfterLoss || s.State == LockedAfterWin) && !now.Before(s.LockedUntil) {
		return Session{State: Idle, UpdatedAt: now}
	}
	return s
}

// Start begins a round from Idle.
func (s Session) Start(now time.Time) (Session, error) {
	s = s.Resolve(now)
	if s.State != Idle {
		return s, stateError(s, "start")
	}
	return Session{State: Playing, RoundID: uuid.NewString(), Earnings: decimal.Zero, UpdatedAt: now}, nil
}

// Answer records the client-reported result of the current question. The
// returned payout is non-zero only when the last rung is reached.
func (s Session) Answer(correct bool, now time.Time, rules Rules) (Session, decimal.Decimal, error) {
	s = s.Resolve(now)
	if s.State != Playing {
		return s, decimal.Zero, stateError(s, "answer")
	}
	if !correct {
		return Session{
			State:       LockedAfterLoss,
			RoundID:     s.RoundID,
			Earnings:    decimal.Zero,
			LockedUntil: now.Add(rules.LossCooldown),
			UpdatedAt:   now,
		}, decimal.Zero, nil
	}
	if len(rules.Ladder) == 0 {
		return s, decimal.Zero, errors.New("game: prize ladder not configured")
	}
	s.Level++
	s.Earnings = rules.Ladder[s.Level-1]
	s.UpdatedAt = now
	if s.Level >= len(rules.Ladder) {
		return s.Withdraw(now, rules)
	}
	return s, decimal.Zero, nil
}

// Withdraw banks the current earnings and locks the game for the win cooldown.
func (s Session) Withdraw(now time.Time, rules Rules) (Session, decimal.Decimal, error) {
	s = s.Resolve(now)
	if s.State != Playing || !s.Earnings.IsPositive() {
		return s, decimal.Zero, stateError(s, "withdraw")
	}
	return Session{
		State:       LockedAfterWin,
		RoundID:     s.RoundID,
		Level:       s.Level,
		Earnings:    s.Earnings,
		LockedUntil: now.Add(rules.WinCooldown),
		UpdatedAt:   now,
	}, s.Earnings, nil
}
