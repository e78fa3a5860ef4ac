// Package gauge declares the capability interfaces the boost engines need
// from external reward-emitting contracts. The interfaces are intentionally
// small so that alternate gauge implementations can satisfy them without a
// concrete binding.
package gauge

import (
	"errors"
	"math/big"

	"liquidlock/crypto"
)

// ErrSlippage is returned by converters when the minimum output cannot be
// met.
var ErrSlippage = errors.New("converter: minimum output not met")

// RewardData describes the streaming state of one reward token on a gauge.
type RewardData struct {
	// Rate is the emission rate in wei per second while the period is live.
	Rate *big.Int
	// PeriodFinish is the unix timestamp after which the rate drops to zero.
	PeriodFinish uint64
}

// ERC20Gauge models a plain staking gauge with working-balance boost
// accounting.
type ERC20Gauge interface {
	StakingToken() string
	BalanceOf(account crypto.Address) *big.Int
	TotalSupply() *big.Int
	WorkingBalanceOf(account crypto.Address) *big.Int
	SharedBalanceOf(account crypto.Address) *big.Int
	ActiveRewardTokens() []string
	RewardData(token string) (RewardData, bool)

	Deposit(account crypto.Address, amount *big.Int) error
	Withdraw(account crypto.Address, amount *big.Int) error
	// Claim settles pending emissions for the account and reports the paid
	// amount per reward token.
	Claim(account crypto.Address) (map[string]*big.Int, error)
	DepositReward(token string, amount *big.Int) error
}

// RebalanceGauge models a rebalance-pool gauge. It exposes its boost ratio
// directly instead of through working-balance sharing.
type RebalanceGauge interface {
	// Asset returns the token symbol the pool accepts.
	Asset() string
	BalanceOf(account crypto.Address) *big.Int
	TotalSupply() *big.Int
	// BoostRatioOf reports the ray-scaled boost multiplier for the account.
	BoostRatioOf(account crypto.Address) *big.Int
	ActiveRewardTokens() []string
	RewardData(token string) (RewardData, bool)

	Deposit(account crypto.Address, amount *big.Int) error
	Withdraw(account crypto.Address, amount *big.Int) error
	Claim(account crypto.Address) (map[string]*big.Int, error)
	DepositReward(token string, amount *big.Int) error
}

// Converter swaps between token denominations on the holder's ledger
// account, enforcing a minimum output. Implementations report how much of
// the input they actually consumed so the caller can refund dust, and must
// reject a conversion that cannot meet minOut before touching any balance.
type Converter interface {
	// Quote prices a conversion without executing it.
	Quote(from, to string, amount *big.Int) (*big.Int, error)
	Convert(holder crypto.Address, from, to string, amount, minOut *big.Int) (out *big.Int, consumed *big.Int, err error)
}
