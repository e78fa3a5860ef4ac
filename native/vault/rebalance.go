package vault

import (
	"errors"
	"fmt"
	"math/big"

	"liquidlock/crypto"
	nativecommon "liquidlock/native/common"
	"liquidlock/native/gauge"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
	"liquidlock/observability/metrics"
)

var (
	ErrSlippageExceeded = errors.New("staking proxy: minimum output not met")
	ErrConversionFailed = errors.New("staking proxy: converter could not satisfy request")
)

// DepositStable deposits the rebalance pool's accepted asset directly, with
// no conversion step.
func (v *StakingProxy) DepositStable(caller crypto.Address, amount *big.Int) error {
	if err := v.checkRebalance(); err != nil {
		return err
	}
	return v.Deposit(caller, amount, false)
}

// DepositBase wraps a base collateral asset into the pool's accepted asset
// before staking, enforcing a minimum-output guard. The conversion runs on
// the caller's account before anything reaches the vault, so a refused quote
// leaves every balance untouched; input the converter does not consume never
// leaves the caller.
func (v *StakingProxy) DepositBase(caller crypto.Address, baseToken string, amount, minOut *big.Int, converter gauge.Converter) error {
	if err := v.checkRebalance(); err != nil {
		return err
	}
	if err := v.checkMutable(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return rewards.ErrInvalidAmount
	}
	if converter == nil {
		return ErrConversionFailed
	}
	pool, err := v.activePool()
	if err != nil {
		return err
	}
	// A zero-output conversion would consume input for nothing staked, so the
	// floor is one unit even when the caller passes no guard.
	floor := minOut
	if floor == nil || floor.Sign() <= 0 {
		floor = big.NewInt(1)
	}
	out, _, err := converter.Convert(caller, baseToken, v.rbGauge.Asset(), amount, floor)
	if err != nil {
		if errors.Is(err, gauge.ErrSlippage) {
			return ErrSlippageExceeded
		}
		return fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if out == nil || out.Sign() == 0 {
		return ErrSlippageExceeded
	}
	if err := v.transfer(caller, v.record.Address, v.rbGauge.Asset(), out); err != nil {
		return err
	}
	if err := v.rbGauge.Deposit(v.record.Address, out); err != nil {
		return err
	}
	if err := v.creditStaked(out); err != nil {
		return err
	}
	if err := v.rewards.Stake(pool.RewardsAddress, v.record.Owner, out); err != nil {
		return err
	}
	metrics.Boost().ObserveDeposit(v.kindLabel())
	return nil
}

// WithdrawAsBase redeems the staking position and converts the proceeds back
// into the requested base asset. The conversion is quoted before the position
// is unwound, so a refused quote leaves the stake intact. A vault with
// nothing staked is a valid no-op, since callers commonly sweep after a
// prior full withdrawal.
func (v *StakingProxy) WithdrawAsBase(caller crypto.Address, baseToken string, amount, minOut *big.Int, converter gauge.Converter) (*big.Int, error) {
	if err := v.checkRebalance(); err != nil {
		return nil, err
	}
	if err := v.checkOwner(caller); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(v.pauses, moduleName); err != nil {
		return nil, err
	}
	staked, err := v.StakedBalance()
	if err != nil {
		return nil, err
	}
	if staked.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, rewards.ErrInvalidAmount
	}
	if staked.Cmp(amount) < 0 {
		return nil, ErrInsufficientStaked
	}
	if converter == nil {
		return nil, ErrConversionFailed
	}
	pool, err := v.pool()
	if err != nil {
		return nil, err
	}
	quote, err := converter.Quote(v.rbGauge.Asset(), baseToken, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if minOut != nil && quote.Cmp(minOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	if err := v.rbGauge.Withdraw(v.record.Address, amount); err != nil {
		return nil, err
	}
	if err := v.state.PutVaultBalance(v.record.Address, new(big.Int).Sub(staked, amount)); err != nil {
		return nil, err
	}
	if err := v.rewards.Unstake(pool.RewardsAddress, v.record.Owner, amount); err != nil {
		return nil, err
	}
	out, _, err := converter.Convert(v.record.Address, v.rbGauge.Asset(), baseToken, amount, minOut)
	if err != nil {
		if errors.Is(err, gauge.ErrSlippage) {
			return nil, ErrSlippageExceeded
		}
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	if out == nil {
		out = big.NewInt(0)
	}
	if out.Sign() > 0 {
		if err := v.transfer(v.record.Address, caller, baseToken, out); err != nil {
			return nil, err
		}
	}
	metrics.Boost().ObserveWithdrawal(v.kindLabel())
	return out, nil
}

func (v *StakingProxy) checkRebalance() error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if v.record.Implementation != registry.VaultRebalance {
		return ErrWrongKind
	}
	if v.rbGauge == nil {
		return errNilGauge
	}
	return nil
}
