package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BoostMetrics aggregates the counters and gauges exposed by the boost
// engines.
type BoostMetrics struct {
	deposits       *prometheus.CounterVec
	withdrawals    *prometheus.CounterVec
	feeClaims      *prometheus.CounterVec
	rewardPayouts  *prometheus.CounterVec
	poolBoostRatio *prometheus.GaugeVec
}

var (
	boostOnce     sync.Once
	boostRegistry *BoostMetrics
)

// Boost returns the process-wide boost metrics registry.
func Boost() *BoostMetrics {
	boostOnce.Do(func() {
		boostRegistry = &BoostMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "boost_vault_deposits_total",
				Help: "Count of vault deposits by vault kind.",
			}, []string{"kind"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "boost_vault_withdrawals_total",
				Help: "Count of vault withdrawals by vault kind.",
			}, []string{"kind"}),
			feeClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "boost_fee_claims_total",
				Help: "Count of fee collection cycles by category.",
			}, []string{"category"}),
			rewardPayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "boost_reward_payouts_total",
				Help: "Count of reward payouts by token.",
			}, []string{"token"}),
			poolBoostRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "boost_pool_ratio",
				Help: "Last observed ray-scaled boost ratio per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			boostRegistry.deposits,
			boostRegistry.withdrawals,
			boostRegistry.feeClaims,
			boostRegistry.rewardPayouts,
			boostRegistry.poolBoostRatio,
		)
	})
	return boostRegistry
}

// ObserveDeposit records a vault deposit for the given kind.
func (m *BoostMetrics) ObserveDeposit(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.deposits.WithLabelValues(kind).Inc()
}

// ObserveWithdrawal records a vault withdrawal for the given kind.
func (m *BoostMetrics) ObserveWithdrawal(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.withdrawals.WithLabelValues(kind).Inc()
}

// ObserveFeeClaim records a fee collection cycle for the given category.
func (m *BoostMetrics) ObserveFeeClaim(category string) {
	if m == nil {
		return
	}
	if category == "" {
		category = "unknown"
	}
	m.feeClaims.WithLabelValues(category).Inc()
}

// ObserveRewardPayout records a reward payout for the given token.
func (m *BoostMetrics) ObserveRewardPayout(token string) {
	if m == nil {
		return
	}
	if token == "" {
		token = "unknown"
	}
	m.rewardPayouts.WithLabelValues(token).Inc()
}

// SetPoolBoostRatio publishes the last computed ratio for a pool.
func (m *BoostMetrics) SetPoolBoostRatio(pool string, ratio float64) {
	if m == nil {
		return
	}
	m.poolBoostRatio.WithLabelValues(pool).Set(ratio)
}
