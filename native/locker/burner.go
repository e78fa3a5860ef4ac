package locker

import (
	"math/big"

	"liquidlock/core/events"
	"liquidlock/core/types"
	"liquidlock/crypto"
)

// Burner destroys liquid derivative tokens transferred onto it, reducing the
// total supply. Anyone may trigger a burn.
type Burner struct {
	state       engineState
	address     crypto.Address
	liquidToken string
	emitter     events.Emitter
}

// NewBurner constructs a burner bound to its module address.
func NewBurner(address crypto.Address) *Burner {
	return &Burner{address: address, liquidToken: LiquidToken, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (b *Burner) SetState(state engineState) { b.state = state }

// SetToken overrides the derivative token symbol.
func (b *Burner) SetToken(token string) {
	if b == nil || token == "" {
		return
	}
	b.liquidToken = token
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (b *Burner) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		b.emitter = events.NoopEmitter{}
		return
	}
	b.emitter = emitter
}

// Address returns the burner's module address.
func (b *Burner) Address() crypto.Address {
	if b == nil {
		return crypto.Address{}
	}
	return b.address
}

// Burn destroys the burner's entire derivative balance. A zero balance is a
// valid no-op.
func (b *Burner) Burn() (*big.Int, error) {
	if b == nil || b.state == nil {
		return nil, errNilState
	}
	return b.burnFrom(b.address)
}

// BurnAtSender destroys the requested amount from the caller's own balance.
func (b *Burner) BurnAtSender(caller crypto.Address, amount *big.Int) error {
	if b == nil || b.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acc, err := b.state.GetAccount(caller)
	if err != nil {
		return err
	}
	if acc == nil || acc.Balance(b.liquidToken).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return b.burn(caller, acc, amount)
}

func (b *Burner) burnFrom(addr crypto.Address) (*big.Int, error) {
	acc, err := b.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return big.NewInt(0), nil
	}
	amount := acc.Balance(b.liquidToken)
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	amount = new(big.Int).Set(amount)
	if err := b.burn(addr, acc, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (b *Burner) burn(addr crypto.Address, acc *types.Account, amount *big.Int) error {
	acc.SetBalance(b.liquidToken, new(big.Int).Sub(acc.Balance(b.liquidToken), amount))
	if err := b.state.PutAccount(addr, acc); err != nil {
		return err
	}
	supply, err := b.state.GetTokenSupply(b.liquidToken)
	if err != nil {
		return err
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	next := new(big.Int).Sub(supply, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	if err := b.state.PutTokenSupply(b.liquidToken, next); err != nil {
		return err
	}
	var fromBytes [20]byte
	copy(fromBytes[:], addr.Bytes())
	b.emitter.Emit(lockerEvent{evt: events.Burned{From: fromBytes, Amount: amount}.Event()})
	return nil
}
