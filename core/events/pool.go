package events

import (
	"liquidlock/core/types"
)

const (
	// TypePoolAdded marks the registration of a new staking pool.
	TypePoolAdded = "pool.added"
	// TypePoolDeactivated marks a pool being closed to new deposits.
	TypePoolDeactivated = "pool.deactivated"
	// TypeVaultCreated marks the instantiation of a per-user vault.
	TypeVaultCreated = "pool.vault_created"
)

// PoolAdded records a freshly registered pool and its staking target.
type PoolAdded struct {
	PoolID         uint64
	StakingAddress [20]byte
	StakingToken   string
	RewardsAddress [20]byte
}

// EventType satisfies the events.Event interface.
func (PoolAdded) EventType() string { return TypePoolAdded }

// Event converts the structured payload into a broadcastable event.
func (e PoolAdded) Event() *types.Event {
	attrs := map[string]string{
		"poolId":       uintAttr(e.PoolID),
		"stakingToken": e.StakingToken,
	}
	if !zeroBytes(e.StakingAddress[:]) {
		attrs["stakingAddress"] = hexAttr(e.StakingAddress[:])
	}
	if !zeroBytes(e.RewardsAddress[:]) {
		attrs["rewardsAddress"] = hexAttr(e.RewardsAddress[:])
	}
	return &types.Event{Type: TypePoolAdded, Attributes: attrs}
}

// PoolDeactivated records a pool lifecycle closure.
type PoolDeactivated struct {
	PoolID uint64
}

func (PoolDeactivated) EventType() string { return TypePoolDeactivated }

// Event converts the structured payload into a broadcastable event.
func (e PoolDeactivated) Event() *types.Event {
	return &types.Event{Type: TypePoolDeactivated, Attributes: map[string]string{
		"poolId": uintAttr(e.PoolID),
	}}
}

// VaultCreated records the one-time vault instantiation for a (pool, owner)
// pair.
type VaultCreated struct {
	PoolID uint64
	Owner  [20]byte
	Vault  [20]byte
}

func (VaultCreated) EventType() string { return TypeVaultCreated }

// Event converts the structured payload into a broadcastable event.
func (e VaultCreated) Event() *types.Event {
	attrs := map[string]string{"poolId": uintAttr(e.PoolID)}
	if !zeroBytes(e.Owner[:]) {
		attrs["owner"] = hexAttr(e.Owner[:])
	}
	if !zeroBytes(e.Vault[:]) {
		attrs["vault"] = hexAttr(e.Vault[:])
	}
	return &types.Event{Type: TypeVaultCreated, Attributes: attrs}
}
