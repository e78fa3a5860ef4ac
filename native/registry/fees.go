package registry

import (
	"errors"

	"liquidlock/crypto"
)

// FeeCategory enumerates the independently capped protocol fee rates.
type FeeCategory string

const (
	// FeePlatform is the skim applied to claimed vote-escrow fee revenue.
	FeePlatform FeeCategory = "platform"
	// FeeBoost is the skim applied to boosted gauge emissions.
	FeeBoost FeeCategory = "boost"
	// FeeCallIncentive is the caller reward for triggering fee collection.
	FeeCallIncentive FeeCategory = "call-incentive"
)

const bpsDenominator = 10_000

var (
	ErrFeeUnauthorized    = errors.New("fee registry: caller is not the owner")
	ErrFeeCapExceeded     = errors.New("fee registry: rate exceeds category cap")
	ErrUnknownFeeCategory = errors.New("fee registry: unknown category")
)

// FeeEntry holds one category's current rate and its immutable cap, both in
// basis points.
type FeeEntry struct {
	RateBps uint64
	CapBps  uint64
}

// FeeRegistry is the static table of protocol fee rates. Only the owner may
// mutate rates, and rate <= cap holds at all times.
type FeeRegistry struct {
	owner   crypto.Address
	entries map[FeeCategory]FeeEntry
}

// NewFeeRegistry constructs a registry with the protocol default rates and
// caps.
func NewFeeRegistry(owner crypto.Address) *FeeRegistry {
	return &FeeRegistry{
		owner: owner,
		entries: map[FeeCategory]FeeEntry{
			FeePlatform:      {RateBps: 1000, CapBps: 2000},
			FeeBoost:         {RateBps: 1500, CapBps: 2000},
			FeeCallIncentive: {RateBps: 10, CapBps: 100},
		},
	}
}

// Rate returns the current rate for the category in basis points. Unknown
// categories report zero.
func (r *FeeRegistry) Rate(category FeeCategory) uint64 {
	if r == nil {
		return 0
	}
	return r.entries[category].RateBps
}

// Cap returns the immutable cap for the category in basis points.
func (r *FeeRegistry) Cap(category FeeCategory) uint64 {
	if r == nil {
		return 0
	}
	return r.entries[category].CapBps
}

// SetRate updates a category rate. Fails when the caller is not the owner or
// the rate exceeds the category cap.
func (r *FeeRegistry) SetRate(caller crypto.Address, category FeeCategory, bps uint64) error {
	if r == nil {
		return ErrUnknownFeeCategory
	}
	if !caller.Equal(r.owner) {
		return ErrFeeUnauthorized
	}
	entry, ok := r.entries[category]
	if !ok {
		return ErrUnknownFeeCategory
	}
	if bps > entry.CapBps {
		return ErrFeeCapExceeded
	}
	entry.RateBps = bps
	r.entries[category] = entry
	return nil
}
