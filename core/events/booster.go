package events

import (
	"math/big"

	"liquidlock/core/types"
)

const (
	// TypeFeesClaimed marks a platform fee collection cycle.
	TypeFeesClaimed = "booster.fees_claimed"
	// TypeBoostFeesClaimed marks a gauge emission skim cycle.
	TypeBoostFeesClaimed = "booster.boost_fees_claimed"
	// TypeSystemShutdown marks the terminal booster transition.
	TypeSystemShutdown = "booster.shutdown"
	// TypeOperatorChanged marks the proxy operator being reassigned.
	TypeOperatorChanged = "booster.operator_changed"
)

// FeesClaimed records a fee distributor claim and the platform split.
type FeesClaimed struct {
	Token    string
	Claimed  *big.Int
	Withheld *big.Int
	Queued   *big.Int
}

func (FeesClaimed) EventType() string { return TypeFeesClaimed }

// Event converts the structured payload into a broadcastable event.
func (e FeesClaimed) Event() *types.Event {
	return &types.Event{Type: TypeFeesClaimed, Attributes: map[string]string{
		"token":       e.Token,
		"claimedWei":  amountAttr(e.Claimed),
		"withheldWei": amountAttr(e.Withheld),
		"queuedWei":   amountAttr(e.Queued),
	}}
}

// BoostFeesClaimed records a gauge emission claim and its routing.
type BoostFeesClaimed struct {
	PoolID   uint64
	Token    string
	Claimed  *big.Int
	Treasury *big.Int
	Queued   *big.Int
}

func (BoostFeesClaimed) EventType() string { return TypeBoostFeesClaimed }

// Event converts the structured payload into a broadcastable event.
func (e BoostFeesClaimed) Event() *types.Event {
	return &types.Event{Type: TypeBoostFeesClaimed, Attributes: map[string]string{
		"poolId":      uintAttr(e.PoolID),
		"token":       e.Token,
		"claimedWei":  amountAttr(e.Claimed),
		"treasuryWei": amountAttr(e.Treasury),
		"queuedWei":   amountAttr(e.Queued),
	}}
}

// SystemShutdown records the terminal state transition.
type SystemShutdown struct{}

func (SystemShutdown) EventType() string { return TypeSystemShutdown }

// Event converts the structured payload into a broadcastable event.
func (SystemShutdown) Event() *types.Event {
	return &types.Event{Type: TypeSystemShutdown, Attributes: map[string]string{}}
}

// OperatorChanged records an operator handover on the voter proxy.
type OperatorChanged struct {
	Previous [20]byte
	Current  [20]byte
}

func (OperatorChanged) EventType() string { return TypeOperatorChanged }

// Event converts the structured payload into a broadcastable event.
func (e OperatorChanged) Event() *types.Event {
	attrs := map[string]string{}
	if !zeroBytes(e.Previous[:]) {
		attrs["previous"] = hexAttr(e.Previous[:])
	}
	if !zeroBytes(e.Current[:]) {
		attrs["current"] = hexAttr(e.Current[:])
	}
	return &types.Event{Type: TypeOperatorChanged, Attributes: attrs}
}
