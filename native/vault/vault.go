package vault

import (
	"errors"
	"math/big"

	"liquidlock/core/types"
	"liquidlock/crypto"
	nativecommon "liquidlock/native/common"
	"liquidlock/native/gauge"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
	"liquidlock/observability/metrics"
)

var (
	errNilState = errors.New("staking proxy: state not configured")
	errNilGauge = errors.New("staking proxy: gauge not configured")

	ErrUnauthorized        = errors.New("staking proxy: caller is not the vault owner")
	ErrPoolInactive        = errors.New("staking proxy: pool deactivated")
	ErrInsufficientBalance = errors.New("staking proxy: insufficient balance")
	ErrInsufficientStaked  = errors.New("staking proxy: amount exceeds staked balance")
	ErrWrongKind           = errors.New("staking proxy: operation not supported by vault kind")
)

const moduleName = "vault"

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetVaultBalance(vault crypto.Address) (*big.Int, error)
	PutVaultBalance(vault crypto.Address, amount *big.Int) error
}

// poolSource resolves catalogue entries; satisfied by the registry engine.
type poolSource interface {
	Pool(id uint64) (*registry.Pool, error)
}

// StakingProxy is the per-user vault mediating deposits into one external
// gauge. The kind is fixed at creation: plain ERC20 gauge staking, or the
// rebalance-pool flavor with multi-asset entry and exit.
type StakingProxy struct {
	state   engineState
	pools   poolSource
	rewards *rewards.Engine
	record  registry.VaultRecord
	gauge   gauge.ERC20Gauge
	rbGauge gauge.RebalanceGauge
	pauses  nativecommon.PauseView
}

// NewStakingProxy constructs a vault engine for an existing registry record.
func NewStakingProxy(record registry.VaultRecord, state engineState, pools poolSource, rewardsEngine *rewards.Engine) *StakingProxy {
	return &StakingProxy{state: state, pools: pools, rewards: rewardsEngine, record: record}
}

// SetGauge wires the plain staking gauge; required for ERC20 vaults.
func (v *StakingProxy) SetGauge(g gauge.ERC20Gauge) { v.gauge = g }

// SetRebalanceGauge wires the rebalance-pool gauge; required for rebalance
// vaults.
func (v *StakingProxy) SetRebalanceGauge(g gauge.RebalanceGauge) { v.rbGauge = g }

func (v *StakingProxy) SetPauses(p nativecommon.PauseView) {
	if v == nil {
		return
	}
	v.pauses = p
}

// Owner returns the single controlling account.
func (v *StakingProxy) Owner() crypto.Address { return v.record.Owner }

// Address returns the vault's module address.
func (v *StakingProxy) Address() crypto.Address { return v.record.Address }

// Kind returns the immutable vault template.
func (v *StakingProxy) Kind() registry.VaultKind { return v.record.Implementation }

// StakedBalance reports the amount currently deposited into the gauge on the
// vault's behalf.
func (v *StakingProxy) StakedBalance() (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	bal, err := v.state.GetVaultBalance(v.record.Address)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		bal = big.NewInt(0)
	}
	return bal, nil
}

// Deposit pulls the staking token from the owner and forwards it into the
// gauge. The lock flag only has meaning for staking tokens that are
// themselves governance deposits; plain gauges ignore it.
func (v *StakingProxy) Deposit(caller crypto.Address, amount *big.Int, lock bool) error {
	if err := v.checkMutable(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return rewards.ErrInvalidAmount
	}
	pool, err := v.activePool()
	if err != nil {
		return err
	}
	if err := v.transfer(caller, v.record.Address, pool.StakingToken, amount); err != nil {
		return err
	}
	if err := v.gaugeDeposit(amount); err != nil {
		return err
	}
	if err := v.creditStaked(amount); err != nil {
		return err
	}
	if err := v.rewards.Stake(pool.RewardsAddress, v.record.Owner, amount); err != nil {
		return err
	}
	metrics.Boost().ObserveDeposit(v.kindLabel())
	return nil
}

// Withdraw unstakes from the gauge and returns the staking token to the
// owner. Withdrawals keep working after pool deactivation and system
// shutdown.
func (v *StakingProxy) Withdraw(caller crypto.Address, amount *big.Int) error {
	if err := v.checkOwner(caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return rewards.ErrInvalidAmount
	}
	staked, err := v.StakedBalance()
	if err != nil {
		return err
	}
	if staked.Cmp(amount) < 0 {
		return ErrInsufficientStaked
	}
	pool, err := v.pool()
	if err != nil {
		return err
	}
	if err := v.gaugeWithdraw(amount); err != nil {
		return err
	}
	if err := v.state.PutVaultBalance(v.record.Address, new(big.Int).Sub(staked, amount)); err != nil {
		return err
	}
	if err := v.transfer(v.record.Address, caller, pool.StakingToken, amount); err != nil {
		return err
	}
	if err := v.rewards.Unstake(pool.RewardsAddress, v.record.Owner, amount); err != nil {
		return err
	}
	metrics.Boost().ObserveWithdrawal(v.kindLabel())
	return nil
}

// GetReward settles gauge emissions and the attached distributor stream to
// the owner. Zero pending rewards are a valid no-op.
func (v *StakingProxy) GetReward(caller crypto.Address) (map[string]*big.Int, error) {
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := v.pool()
	if err != nil {
		return nil, err
	}
	paid := make(map[string]*big.Int)
	claimed, err := v.gaugeClaim()
	if err != nil {
		return nil, err
	}
	for token, amount := range claimed {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		if err := v.transfer(v.record.Address, v.record.Owner, token, amount); err != nil {
			return nil, err
		}
		paid[token] = new(big.Int).Set(amount)
		metrics.Boost().ObserveRewardPayout(token)
	}
	streamed, err := v.rewards.GetReward(pool.RewardsAddress, v.record.Owner)
	if err != nil {
		return nil, err
	}
	for token, amount := range streamed {
		if prev, ok := paid[token]; ok {
			paid[token] = new(big.Int).Add(prev, amount)
		} else {
			paid[token] = new(big.Int).Set(amount)
		}
		metrics.Boost().ObserveRewardPayout(token)
	}
	return paid, nil
}

// Execute is the owner's recovery escape hatch: it forwards stray tokens off
// the vault address. Refused once the pool has been deactivated.
func (v *StakingProxy) Execute(caller, target crypto.Address, token string, amount *big.Int) error {
	if err := v.checkOwner(caller); err != nil {
		return err
	}
	if _, err := v.activePool(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return rewards.ErrInvalidAmount
	}
	return v.transfer(v.record.Address, target, token, amount)
}

func (v *StakingProxy) checkMutable(caller crypto.Address) error {
	if err := v.checkOwner(caller); err != nil {
		return err
	}
	return nativecommon.Guard(v.pauses, moduleName)
}

func (v *StakingProxy) checkOwner(caller crypto.Address) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if !caller.Equal(v.record.Owner) {
		return ErrUnauthorized
	}
	return nil
}

func (v *StakingProxy) pool() (*registry.Pool, error) {
	return v.pools.Pool(v.record.PoolID)
}

func (v *StakingProxy) activePool() (*registry.Pool, error) {
	pool, err := v.pool()
	if err != nil {
		return nil, err
	}
	if !pool.Active {
		return nil, ErrPoolInactive
	}
	return pool, nil
}

func (v *StakingProxy) gaugeDeposit(amount *big.Int) error {
	switch v.record.Implementation {
	case registry.VaultERC20:
		if v.gauge == nil {
			return errNilGauge
		}
		return v.gauge.Deposit(v.record.Address, amount)
	case registry.VaultRebalance:
		if v.rbGauge == nil {
			return errNilGauge
		}
		return v.rbGauge.Deposit(v.record.Address, amount)
	}
	return ErrWrongKind
}

func (v *StakingProxy) gaugeWithdraw(amount *big.Int) error {
	switch v.record.Implementation {
	case registry.VaultERC20:
		if v.gauge == nil {
			return errNilGauge
		}
		return v.gauge.Withdraw(v.record.Address, amount)
	case registry.VaultRebalance:
		if v.rbGauge == nil {
			return errNilGauge
		}
		return v.rbGauge.Withdraw(v.record.Address, amount)
	}
	return ErrWrongKind
}

func (v *StakingProxy) gaugeClaim() (map[string]*big.Int, error) {
	switch v.record.Implementation {
	case registry.VaultERC20:
		if v.gauge == nil {
			return nil, errNilGauge
		}
		return v.gauge.Claim(v.record.Address)
	case registry.VaultRebalance:
		if v.rbGauge == nil {
			return nil, errNilGauge
		}
		return v.rbGauge.Claim(v.record.Address)
	}
	return nil, ErrWrongKind
}

func (v *StakingProxy) creditStaked(amount *big.Int) error {
	staked, err := v.StakedBalance()
	if err != nil {
		return err
	}
	return v.state.PutVaultBalance(v.record.Address, new(big.Int).Add(staked, amount))
}

func (v *StakingProxy) kindLabel() string {
	switch v.record.Implementation {
	case registry.VaultERC20:
		return "erc20"
	case registry.VaultRebalance:
		return "rebalance"
	}
	return "unknown"
}

func (v *StakingProxy) transfer(from, to crypto.Address, token string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := v.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(token).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := v.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.SetBalance(token, new(big.Int).Sub(fromAcc.Balance(token), amount))
	toAcc.SetBalance(token, new(big.Int).Add(toAcc.Balance(token), amount))
	if err := v.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return v.state.PutAccount(to, toAcc)
}

func (v *StakingProxy) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := v.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}
