package wallet

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-rewards/internal/pricing"
)

// State is a customer's game wallet balance and loyalty point count.
type State struct {
	UserID        string
	GameBalance   decimal.Decimal
	LoyaltyPoints int64
}

// Delta is a set of wallet movements applied together.
type Delta struct {
	GameDebit    decimal.Decimal
	GameCredit   decimal.Decimal
	PointsDebit  int64
	PointsCredit int64
}

// Apply returns the state after d. Debits are applied first and floor at zero,
// then credits are added.
func (s State) Apply(d Delta) State {
	next := s
	next.GameBalance = s.GameBalance.Sub(d.GameDebit)
	if next.GameBalance.IsNegative() {
		next.GameBalance = decimal.Zero
	}
	next.LoyaltyPoints = s.LoyaltyPoints - d.PointsDebit
	if next.LoyaltyPoints < 0 {
		next.LoyaltyPoints = 0
	}
	next.GameBalance = pricing.Round(next.GameBalance.Add(d.GameCredit))
	next.LoyaltyPoints += d.PointsCredit
	return next
}

// SettlementDelta converts a composed checkout plan into wallet movements.
func SettlementDelta(plan pricing.Plan) Delta {
	return Delta{
		GameDebit:    plan.GameDeduction,
		PointsDebit:  plan.PointsToDebit,
		PointsCredit: plan.PointsEarned,
	}
}

// IsZero reports whether the delta moves nothing.
func (d Delta) IsZero() bool {
	return d.GameDebit.IsZero() && d.GameCredit.IsZero() && d.PointsDebit == 0 && d.PointsCredit == 0
}
