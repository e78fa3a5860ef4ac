package events

import (
	"math/big"

	"liquidlock/core/types"
)

const (
	// TypeRewardNotified marks new emissions entering a reward stream.
	TypeRewardNotified = "rewards.notified"
	// TypeRewardPaid marks accrued rewards leaving the distributor.
	TypeRewardPaid = "rewards.paid"
)

// RewardNotified records a reward deposit extending a streaming period.
type RewardNotified struct {
	Distributor [20]byte
	Token       string
	Amount      *big.Int
}

func (RewardNotified) EventType() string { return TypeRewardNotified }

// Event converts the structured payload into a broadcastable event.
func (e RewardNotified) Event() *types.Event {
	attrs := map[string]string{
		"token":     e.Token,
		"amountWei": amountAttr(e.Amount),
	}
	if !zeroBytes(e.Distributor[:]) {
		attrs["distributor"] = hexAttr(e.Distributor[:])
	}
	return &types.Event{Type: TypeRewardNotified, Attributes: attrs}
}

// RewardPaid records accrued rewards paid out to a staker.
type RewardPaid struct {
	Distributor [20]byte
	Account     [20]byte
	Token       string
	Amount      *big.Int
}

func (RewardPaid) EventType() string { return TypeRewardPaid }

// Event converts the structured payload into a broadcastable event.
func (e RewardPaid) Event() *types.Event {
	attrs := map[string]string{
		"token":     e.Token,
		"amountWei": amountAttr(e.Amount),
	}
	if !zeroBytes(e.Distributor[:]) {
		attrs["distributor"] = hexAttr(e.Distributor[:])
	}
	if !zeroBytes(e.Account[:]) {
		attrs["account"] = hexAttr(e.Account[:])
	}
	return &types.Event{Type: TypeRewardPaid, Attributes: attrs}
}
