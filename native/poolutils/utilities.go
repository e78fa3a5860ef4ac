// Package poolutils bundles the read-only pool inspection helpers exposed to
// frontends and keepers. Everything here is derived on demand from the
// registry and the gauges; nothing is cached or persisted.
package poolutils

import (
	"errors"
	"math/big"
	"strconv"
	"time"

	"liquidlock/crypto"
	"liquidlock/native/gauge"
	"liquidlock/native/registry"
	"liquidlock/observability/metrics"
)

var (
	errNilPools = errors.New("pool utilities: registry not configured")

	ErrKindMismatch   = errors.New("pool utilities: query does not match vault kind")
	ErrNoEmissionPath = errors.New("pool utilities: no gauge bound to staking target")
)

// precision is the ray scale shared with the rewards engine.
var precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type poolSource interface {
	Pool(id uint64) (*registry.Pool, error)
}

// Utilities answers rate and boost queries for registered pools.
type Utilities struct {
	pools     poolSource
	proxy     crypto.Address
	erc20     func(target crypto.Address) gauge.ERC20Gauge
	rebalance func(target crypto.Address) gauge.RebalanceGauge
	nowFn     func() time.Time
}

// New constructs the query helper around the pool catalogue and the voter
// proxy address whose gauge position defines the protocol boost.
func New(pools poolSource, proxy crypto.Address) *Utilities {
	return &Utilities{pools: pools, proxy: proxy, nowFn: time.Now}
}

// SetERC20Resolver wires the lookup from staking target to its plain gauge.
func (u *Utilities) SetERC20Resolver(resolve func(target crypto.Address) gauge.ERC20Gauge) {
	u.erc20 = resolve
}

// SetRebalanceResolver wires the lookup from staking target to its rebalance
// gauge.
func (u *Utilities) SetRebalanceResolver(resolve func(target crypto.Address) gauge.RebalanceGauge) {
	u.rebalance = resolve
}

// SetNowFunc overrides the time source; passing nil restores the default.
func (u *Utilities) SetNowFunc(now func() time.Time) {
	if now == nil {
		u.nowFn = time.Now
		return
	}
	u.nowFn = now
}

func (u *Utilities) now() uint64 {
	return uint64(u.nowFn().Unix())
}

// GaugeRewardRates reports the live per-second emission rate of every reward
// token on the pool's plain gauge. Expired streams report zero rather than
// their stale configured rate.
func (u *Utilities) GaugeRewardRates(poolID uint64) (map[string]*big.Int, error) {
	g, err := u.erc20Gauge(poolID)
	if err != nil {
		return nil, err
	}
	return liveRates(g.ActiveRewardTokens(), g.RewardData, u.now()), nil
}

// PoolBoostRatioByID reports the ray-scaled boost multiplier the proxy
// currently earns on the pool's gauge: working balance over actual balance.
// A pool the proxy has no balance in reports zero.
func (u *Utilities) PoolBoostRatioByID(poolID uint64) (*big.Int, error) {
	g, err := u.erc20Gauge(poolID)
	if err != nil {
		return nil, err
	}
	balance := g.BalanceOf(u.proxy)
	if balance == nil || balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	working := g.WorkingBalanceOf(u.proxy)
	if working == nil {
		working = big.NewInt(0)
	}
	ratio := new(big.Int).Mul(working, precision)
	ratio.Quo(ratio, balance)
	u.publishRatio(poolID, ratio)
	return ratio, nil
}

// RebalancePoolRewardRates reports the live emission rates on the pool's
// rebalance gauge.
func (u *Utilities) RebalancePoolRewardRates(poolID uint64) (map[string]*big.Int, error) {
	g, err := u.rebalanceGauge(poolID)
	if err != nil {
		return nil, err
	}
	return liveRates(g.ActiveRewardTokens(), g.RewardData, u.now()), nil
}

// RebalancePoolBoostRatio reports the gauge's own ray-scaled boost figure for
// the proxy. Rebalance gauges publish the ratio directly, so no working
// balance derivation applies.
func (u *Utilities) RebalancePoolBoostRatio(poolID uint64) (*big.Int, error) {
	g, err := u.rebalanceGauge(poolID)
	if err != nil {
		return nil, err
	}
	ratio := g.BoostRatioOf(u.proxy)
	if ratio == nil {
		ratio = big.NewInt(0)
	} else {
		ratio = new(big.Int).Set(ratio)
	}
	u.publishRatio(poolID, ratio)
	return ratio, nil
}

func (u *Utilities) erc20Gauge(poolID uint64) (gauge.ERC20Gauge, error) {
	pool, err := u.pool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Implementation != registry.VaultERC20 {
		return nil, ErrKindMismatch
	}
	if u.erc20 == nil {
		return nil, ErrNoEmissionPath
	}
	g := u.erc20(pool.StakingAddress)
	if g == nil {
		return nil, ErrNoEmissionPath
	}
	return g, nil
}

func (u *Utilities) rebalanceGauge(poolID uint64) (gauge.RebalanceGauge, error) {
	pool, err := u.pool(poolID)
	if err != nil {
		return nil, err
	}
	if pool.Implementation != registry.VaultRebalance {
		return nil, ErrKindMismatch
	}
	if u.rebalance == nil {
		return nil, ErrNoEmissionPath
	}
	g := u.rebalance(pool.StakingAddress)
	if g == nil {
		return nil, ErrNoEmissionPath
	}
	return g, nil
}

func (u *Utilities) pool(poolID uint64) (*registry.Pool, error) {
	if u == nil || u.pools == nil {
		return nil, errNilPools
	}
	return u.pools.Pool(poolID)
}

func (u *Utilities) publishRatio(poolID uint64, ratio *big.Int) {
	scaled := new(big.Float).SetInt(ratio)
	scaled.Quo(scaled, new(big.Float).SetInt(precision))
	value, _ := scaled.Float64()
	metrics.Boost().SetPoolBoostRatio(strconv.FormatUint(poolID, 10), value)
}

func liveRates(tokens []string, data func(token string) (gauge.RewardData, bool), now uint64) map[string]*big.Int {
	rates := make(map[string]*big.Int, len(tokens))
	for _, token := range tokens {
		rd, ok := data(token)
		if !ok || rd.Rate == nil || now >= rd.PeriodFinish {
			rates[token] = big.NewInt(0)
			continue
		}
		rates[token] = new(big.Int).Set(rd.Rate)
	}
	return rates
}
