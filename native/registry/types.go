package registry

import (
	"liquidlock/crypto"
)

// VaultKind identifies the staking proxy template a pool uses. The kind is
// resolved once at vault creation and immutable thereafter.
type VaultKind uint8

const (
	// VaultERC20 is the plain gauge staking template.
	VaultERC20 VaultKind = iota + 1
	// VaultRebalance is the multi-asset rebalance-pool staking template.
	VaultRebalance
)

// Valid reports whether the kind names a known template.
func (k VaultKind) Valid() bool {
	return k == VaultERC20 || k == VaultRebalance
}

// Pool is the authoritative catalogue entry for a staking target. IDs are
// dense starting at zero and never reused; deactivated pools reject new
// vaults and deposits but keep withdrawals working.
type Pool struct {
	ID             uint64
	StakingAddress crypto.Address
	StakingToken   string
	RewardsAddress crypto.Address
	Implementation VaultKind
	Active         bool
}

// Clone returns a defensive copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// VaultRecord maps a (pool, owner) pair to its instantiated vault address.
// The record is written exactly once and never overwritten.
type VaultRecord struct {
	PoolID         uint64
	Owner          crypto.Address
	Address        crypto.Address
	Implementation VaultKind
}
