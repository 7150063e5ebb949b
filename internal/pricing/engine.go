package pricing

import "github.com/shopspring/decimal"

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice decimal.Decimal
}

// Input is the fresh snapshot a checkout plan is composed from.
type Input struct {
	Subtotal      decimal.Decimal
	GameBalance   decimal.Decimal
	LoyaltyPoints int64

	UseGameWallet bool
	// RequestedGame is the amount chosen for the game wallet. Nil means the
	// largest amount allowed.
	RequestedGame    *decimal.Decimal
	UseLoyaltyWallet bool
}

// Plan aggregates computed pricing components for one checkout session.
type Plan struct {
	Subtotal         decimal.Decimal
	DeliveryFee      decimal.Decimal
	MaxGame          decimal.Decimal
	MaxLoyalty       decimal.Decimal
	GameDeduction    decimal.Decimal
	LoyaltyDeduction decimal.Decimal
	FinalTotal       decimal.Decimal
	PointsToDebit    int64
	PointsEarned     int64
}

// Subtotal sums unit price times quantity over all items.
func Subtotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		total = total.Add(floorZero(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	return total
}

// MaxGameRedemption is the most the game wallet may contribute to one order.
func MaxGameRedemption(balance decimal.Decimal) decimal.Decimal {
	return decimal.Min(floorZero(balance), GameRedemptionCap)
}

// LoyaltyValue is the currency value of the given number of points.
func LoyaltyValue(points int64) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).Mul(LoyaltyPointValue)
}

// MaxLoyaltyRedemption is the most the loyalty wallet may contribute. Points may
// cover the whole order including delivery but nothing beyond it.
func MaxLoyaltyRedemption(points int64, subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Min(LoyaltyValue(points), floorZero(subtotal).Add(DeliveryFee))
}

// Compose applies the game wallet and then the loyalty wallet against
// subtotal plus delivery. The running amount never drops below zero and
// results are rounded only once, at the end.
func Compose(in Input) Plan {
	subtotal := floorZero(in.Subtotal)
	toPay := subtotal.Add(DeliveryFee)
	plan := Plan{
		Subtotal:    subtotal,
		DeliveryFee: DeliveryFee,
		MaxGame:     MaxGameRedemption(in.GameBalance),
		MaxLoyalty:  MaxLoyaltyRedemption(in.LoyaltyPoints, subtotal),
	}

	if in.UseGameWallet {
		requested := plan.MaxGame
		if in.RequestedGame != nil {
			requested = floorZero(*in.RequestedGame)
		}
		game := decimal.Min(requested, plan.MaxGame, toPay)
		plan.GameDeduction = game
		toPay = toPay.Sub(game)
	}
	if in.UseLoyaltyWallet {
		loyalty := decimal.Min(toPay, LoyaltyValue(in.LoyaltyPoints))
		plan.LoyaltyDeduction = loyalty
		toPay = toPay.Sub(loyalty)
	}

	plan.GameDeduction = Round(plan.GameDeduction)
	plan.LoyaltyDeduction = Round(plan.LoyaltyDeduction)
	plan.FinalTotal = Round(floorZero(toPay))
	plan.PointsToDebit = PointsToDebit(plan.LoyaltyDeduction)
	plan.PointsEarned = PointsEarned(plan.FinalTotal)
	return plan
}

// PointsToDebit converts a loyalty deduction back to whole points, rounding up
// so a partial point still consumes a whole one.
func PointsToDebit(loyaltyDeduction decimal.Decimal) int64 {
	if !loyaltyDeduction.IsPositive() {
		return 0
	}
	return loyaltyDeduction.Div(LoyaltyPointValue).Ceil().IntPart()
}

// PointsEarned is the loyalty credit for the cash actually paid.
func PointsEarned(finalTotal decimal.Decimal) int64 {
	if !finalTotal.IsPositive() {
		return 0
	}
	return finalTotal.Mul(PointsEarnedPerCurrencyUnit).Floor().IntPart()
}
