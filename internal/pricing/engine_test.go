package pricing_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/pricing"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, pricing.Format(got))
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0.000"},
		{"float", 12.5, "12.500"},
		{"int", 7, "7.000"},
		{"negative int", -3, "3.000"},
		{"json number", json.Number("4.25"), "4.250"},
		{"currency suffix", "12.500 X", "12.500"},
		{"currency prefix with grouping", "X 1,250.5", "1250.500"},
		{"leading dot", ".75", "0.750"},
		{"garbage", "free!", "0.000"},
		{"empty", "", "0.000"},
		{"nan", math.NaN(), "0.000"},
		{"unsupported type", []int{1}, "0.000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireAmount(t, tc.want, pricing.Normalize(tc.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []any{nil, 3.14159, "12.500 X", "abc", -9, json.Number("1e2"), "1,000,000.0001"}
	for _, in := range inputs {
		once := pricing.Normalize(in)
		twice := pricing.Normalize(once)
		require.True(t, once.Equal(twice), "input %v", in)
	}
}

func TestNormalizeQuantity(t *testing.T) {
	require.Equal(t, 3, pricing.NormalizeQuantity("3 pcs"))
	require.Equal(t, 2, pricing.NormalizeQuantity(2.9))
	require.Equal(t, 0, pricing.NormalizeQuantity(nil))
}

func TestSubtotal(t *testing.T) {
	require.True(t, pricing.Subtotal(nil).IsZero())

	items := []pricing.Item{
		{Qty: 2, UnitPrice: d("12.500")},
		{Qty: 1, UnitPrice: d("0.125")},
		{Qty: 0, UnitPrice: d("99")},
	}
	requireAmount(t, "25.125", pricing.Subtotal(items))
}

func TestSubtotalDoesNotDrift(t *testing.T) {
	items := make([]pricing.Item, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, pricing.Item{Qty: 1, UnitPrice: d("0.1")})
	}
	requireAmount(t, "100.000", pricing.Subtotal(items))
}

func TestRedemptionCaps(t *testing.T) {
	requireAmount(t, "5.000", pricing.MaxGameRedemption(d("50")))
	requireAmount(t, "3.000", pricing.MaxGameRedemption(d("3")))
	requireAmount(t, "0.000", pricing.MaxGameRedemption(d("-1")))

	requireAmount(t, "12.000", pricing.MaxLoyaltyRedemption(500, d("10")))
	requireAmount(t, "1.000", pricing.MaxLoyaltyRedemption(20, d("100")))
	requireAmount(t, "0.000", pricing.MaxLoyaltyRedemption(0, d("100")))
}

func TestComposeEmptyCartChargesDelivery(t *testing.T) {
	plan := pricing.Compose(pricing.Input{})
	requireAmount(t, "0.000", plan.Subtotal)
	requireAmount(t, "2.000", plan.FinalTotal)
}

func TestComposeGameBelowCap(t *testing.T) {
	plan := pricing.Compose(pricing.Input{
		Subtotal:         d("30"),
		GameBalance:      d("3"),
		UseGameWallet:    true,
		UseLoyaltyWallet: true,
	})
	requireAmount(t, "3.000", plan.GameDeduction)
	requireAmount(t, "0.000", plan.LoyaltyDeduction)
	requireAmount(t, "29.000", plan.FinalTotal)
}

func TestComposeClampsRequestedGameToRemaining(t *testing.T) {
	requested := d("10")
	plan := pricing.Compose(pricing.Input{
		Subtotal:      d("1"),
		GameBalance:   d("10"),
		UseGameWallet: true,
		RequestedGame: &requested,
	})
	requireAmount(t, "3.000", plan.GameDeduction)
	requireAmount(t, "0.000", plan.FinalTotal)
	require.Zero(t, plan.PointsEarned)
}

func TestComposeLoyaltyCoversWholeOrder(t *testing.T) {
	plan := pricing.Compose(pricing.Input{
		Subtotal:         d("10"),
		LoyaltyPoints:    500,
		UseLoyaltyWallet: true,
	})
	requireAmount(t, "12.000", plan.LoyaltyDeduction)
	requireAmount(t, "0.000", plan.FinalTotal)
	require.EqualValues(t, 240, plan.PointsToDebit)
}

func TestComposeAccruesOnCashPaid(t *testing.T) {
	plan := pricing.Compose(pricing.Input{
		Subtotal:      d("20"),
		GameBalance:   d("8"),
		UseGameWallet: true,
	})
	requireAmount(t, "5.000", plan.GameDeduction)
	requireAmount(t, "17.000", plan.FinalTotal)
	require.EqualValues(t, 17, plan.PointsEarned)
}

func TestComposeAppliesGameBeforeLoyalty(t *testing.T) {
	plan := pricing.Compose(pricing.Input{
		Subtotal:         d("4"),
		GameBalance:      d("5"),
		LoyaltyPoints:    1000,
		UseGameWallet:    true,
		UseLoyaltyWallet: true,
	})
	requireAmount(t, "5.000", plan.GameDeduction)
	requireAmount(t, "1.000", plan.LoyaltyDeduction)
	requireAmount(t, "0.000", plan.FinalTotal)
	require.EqualValues(t, 20, plan.PointsToDebit)
}

func TestComposeIgnoresUnselectedWallets(t *testing.T) {
	plan := pricing.Compose(pricing.Input{
		Subtotal:      d("10"),
		GameBalance:   d("5"),
		LoyaltyPoints: 100,
	})
	requireAmount(t, "0.000", plan.GameDeduction)
	requireAmount(t, "0.000", plan.LoyaltyDeduction)
	requireAmount(t, "12.000", plan.FinalTotal)
	requireAmount(t, "5.000", plan.MaxGame)
	requireAmount(t, "5.000", plan.MaxLoyalty)
}

func TestComposeBounds(t *testing.T) {
	subtotals := []string{"0", "0.001", "1", "2.5", "7.777", "40", "1000"}
	balances := []string{"0", "0.5", "4.999", "5", "50"}
	points := []int64{0, 1, 33, 240, 100000}
	requests := []string{"0", "0.25", "5", "1000"}

	for _, s := range subtotals {
		for _, g := range balances {
			for _, p := range points {
				for _, r := range requests {
					req := d(r)
					plan := pricing.Compose(pricing.Input{
						Subtotal:         d(s),
						GameBalance:      d(g),
						LoyaltyPoints:    p,
						UseGameWallet:    true,
						RequestedGame:    &req,
						UseLoyaltyWallet: true,
					})
					ceiling := d(s).Add(pricing.DeliveryFee)
					require.False(t, plan.FinalTotal.IsNegative())
					require.True(t, plan.FinalTotal.LessThanOrEqual(ceiling))
					require.True(t, plan.GameDeduction.LessThanOrEqual(decimal.Min(d(g), pricing.GameRedemptionCap)))
					require.True(t, plan.LoyaltyDeduction.LessThanOrEqual(pricing.LoyaltyValue(p)))
					require.True(t, plan.LoyaltyDeduction.LessThanOrEqual(ceiling.Sub(plan.GameDeduction)))
					require.True(t, plan.GameDeduction.Add(plan.LoyaltyDeduction).Add(plan.FinalTotal).Equal(pricing.Round(ceiling)))
				}
			}
		}
	}
}

func TestPointsToDebitRoundsUp(t *testing.T) {
	require.EqualValues(t, 0, pricing.PointsToDebit(decimal.Zero))
	require.EqualValues(t, 1, pricing.PointsToDebit(d("0.001")))
	require.EqualValues(t, 2, pricing.PointsToDebit(d("0.051")))
	require.EqualValues(t, 240, pricing.PointsToDebit(d("12.000")))
}

func TestPointsEarnedFloors(t *testing.T) {
	require.EqualValues(t, 0, pricing.PointsEarned(d("0.999")))
	require.EqualValues(t, 17, pricing.PointsEarned(d("17.999")))
}

func TestMillsRoundTrip(t *testing.T) {
	require.EqualValues(t, 12500, pricing.ToMills(d("12.5")))
	requireAmount(t, "12.500", pricing.FromMills(12500))
	require.True(t, pricing.FromMills(pricing.ToMills(d("0.375"))).Equal(d("0.375")))
}
