package events

import (
	"math/big"

	"liquidlock/core/types"
)

const (
	// TypeLockCreated marks the proxy's initial vote-escrow lock.
	TypeLockCreated = "locker.lock_created"
	// TypeLockExtended marks additional governance tokens entering the lock.
	TypeLockExtended = "locker.lock_extended"
	// TypeDeposited marks a user deposit minting the liquid derivative.
	TypeDeposited = "locker.deposited"
	// TypeBurned marks derivative supply leaving circulation.
	TypeBurned = "locker.burned"
)

// LockCreated records the proxy's first escrow lock.
type LockCreated struct {
	Amount     *big.Int
	UnlockTime uint64
}

func (LockCreated) EventType() string { return TypeLockCreated }

// Event converts the structured payload into a broadcastable event.
func (e LockCreated) Event() *types.Event {
	return &types.Event{Type: TypeLockCreated, Attributes: map[string]string{
		"amountWei":  amountAttr(e.Amount),
		"unlockTime": uintAttr(e.UnlockTime),
	}}
}

// LockExtended records governance tokens flushed into the escrow lock.
type LockExtended struct {
	Amount *big.Int
}

func (LockExtended) EventType() string { return TypeLockExtended }

// Event converts the structured payload into a broadcastable event.
func (e LockExtended) Event() *types.Event {
	return &types.Event{Type: TypeLockExtended, Attributes: map[string]string{
		"amountWei": amountAttr(e.Amount),
	}}
}

// Deposited records a governance-token deposit and the derivative split.
type Deposited struct {
	Depositor [20]byte
	Amount    *big.Int
	Minted    *big.Int
	Withheld  *big.Int
	Locked    bool
}

func (Deposited) EventType() string { return TypeDeposited }

// Event converts the structured payload into a broadcastable event.
func (e Deposited) Event() *types.Event {
	attrs := map[string]string{
		"amountWei":   amountAttr(e.Amount),
		"mintedWei":   amountAttr(e.Minted),
		"withheldWei": amountAttr(e.Withheld),
	}
	if !zeroBytes(e.Depositor[:]) {
		attrs["depositor"] = hexAttr(e.Depositor[:])
	}
	if e.Locked {
		attrs["locked"] = "true"
	}
	return &types.Event{Type: TypeDeposited, Attributes: attrs}
}

// Burned records derivative tokens destroyed by the burner.
type Burned struct {
	From   [20]byte
	Amount *big.Int
}

func (Burned) EventType() string { return TypeBurned }

// Event converts the structured payload into a broadcastable event.
func (e Burned) Event() *types.Event {
	attrs := map[string]string{"amountWei": amountAttr(e.Amount)}
	if !zeroBytes(e.From[:]) {
		attrs["from"] = hexAttr(e.From[:])
	}
	return &types.Event{Type: TypeBurned, Attributes: attrs}
}
