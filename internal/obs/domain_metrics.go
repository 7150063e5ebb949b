package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout submissions by outcome.
	CheckoutTotal *prometheus.CounterVec
	// CheckoutQuoteTotal counts quote computations by outcome.
	CheckoutQuoteTotal *prometheus.CounterVec
	// WalletRedemptionAmount records redeemed currency per order and wallet.
	WalletRedemptionAmount *prometheus.HistogramVec
	// LoyaltyPointsEarnedTotal counts loyalty points credited at settlement.
	LoyaltyPointsEarnedTotal prometheus.Counter
	// LoyaltyPointsDebitedTotal counts loyalty points consumed at settlement.
	LoyaltyPointsDebitedTotal prometheus.Counter
	// GameTransitionsTotal counts rewards game state transitions.
	GameTransitionsTotal *prometheus.CounterVec
	// CatalogLookupsTotal counts product lookups against the remote catalog.
	CatalogLookupsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout submissions by outcome.",
		}, []string{"result"}))
		CheckoutQuoteTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quote_total",
			Help:      "Count of checkout quotes by outcome.",
		}, []string{"result"}))
		WalletRedemptionAmount = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wallet_redemption_amount",
			Help:      "Currency redeemed from a wallet on a settled order.",
			Buckets:   []float64{0.05, 0.25, 0.5, 1, 2, 3, 5, 10, 25, 50},
		}, []string{"wallet"}))
		LoyaltyPointsEarnedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_earned_total",
			Help:      "Loyalty points credited on settled orders.",
		}))
		LoyaltyPointsDebitedTotal = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loyalty_points_debited_total",
			Help:      "Loyalty points consumed on settled orders.",
		}))
		GameTransitionsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "game_transitions_total",
			Help:      "Rewards game state transitions.",
		}, []string{"from", "to"}))
		CatalogLookupsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Product lookups by source and outcome.",
		}, []string{"source", "result"}))
	})
}

// RecordCheckout increments the checkout outcome counter when metrics are registered.
func RecordCheckout(result string) {
	if CheckoutTotal != nil {
		CheckoutTotal.WithLabelValues(result).Inc()
	}
}

// RecordQuote increments the quote outcome counter when metrics are registered.
func RecordQuote(result string) {
	if CheckoutQuoteTotal != nil {
		CheckoutQuoteTotal.WithLabelValues(result).Inc()
	}
}

// RecordSettlement observes wallet usage and point movement for one settled order.
func RecordSettlement(game, loyalty float64, pointsDebited, pointsEarned int64) {
	if WalletRedemptionAmount != nil {
		if game > 0 {
			WalletRedemptionAmount.WithLabelValues("game").Observe(game)
		}
		if loyalty > 0 {
			WalletRedemptionAmount.WithLabelValues("loyalty").Observe(loyalty)
		}
	}
	if LoyaltyPointsEarnedTotal != nil && pointsEarned > 0 {
		LoyaltyPointsEarnedTotal.Add(float64(pointsEarned))
	}
	if LoyaltyPointsDebitedTotal != nil && pointsDebited > 0 {
		LoyaltyPointsDebitedTotal.Add(float64(pointsDebited))
	}
}

// RecordGameTransition counts a rewards game state change.
func RecordGameTransition(from, to string) {
	if GameTransitionsTotal != nil {
		GameTransitionsTotal.WithLabelValues(from, to).Inc()
	}
}

// RecordCatalogLookup counts a product lookup.
func RecordCatalogLookup(source, result string) {
	if CatalogLookupsTotal != nil {
		CatalogLookupsTotal.WithLabelValues(source, result).Inc()
	}
}
