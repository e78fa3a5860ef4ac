package locker

import (
	"math/big"

	"liquidlock/crypto"
)

// Default token symbols used by the locker engines. Deployments may override
// them through the engine setters.
const (
	// GovToken is the base governance token accepted for locking.
	GovToken = "GOV"
	// LiquidToken is the liquid derivative minted against locked deposits.
	LiquidToken = "LGOV"
)

// MaxLockSeconds is the escrow commitment applied to proxy locks. The escrow
// rounds internally; renewal past expiry is an explicit governance action.
const MaxLockSeconds uint64 = 4 * 365 * 24 * 60 * 60

// Lock mirrors the externally held vote-escrow position of the proxy.
type Lock struct {
	Amount     *big.Int
	UnlockTime uint64
}

// LockManager is the vote-escrow capability the proxy needs: create, extend
// and inspect a time-locked governance position.
type LockManager interface {
	Lock(holder crypto.Address, amount *big.Int, until uint64) error
	ExtendLock(holder crypto.Address, amount *big.Int) error
	LockedBalance(holder crypto.Address) (*big.Int, uint64)
	Checkpoint() error
}

// FeeSource is the external fee distributor capability. Claim settles the
// holder's accrued fee tokens into their ledger account and reports the
// amount.
type FeeSource interface {
	Claim(holder crypto.Address) (*big.Int, error)
}

// WalletChecker is the escrow's smart-wallet whitelist. The proxy must be
// approved before it can interact with the escrow at all.
type WalletChecker interface {
	Check(addr crypto.Address) bool
}

// Operator is the restricted capability a booster presents to the proxy.
type Operator interface {
	Address() crypto.Address
	IsShutdown() bool
}
