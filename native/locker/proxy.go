package locker

import (
	"errors"
	"math/big"

	"liquidlock/core/events"
	"liquidlock/core/types"
	"liquidlock/crypto"
)

var (
	errNilEscrow = errors.New("voter proxy: escrow not configured")

	ErrProxyUnauthorized = errors.New("voter proxy: caller lacks required role")
	ErrOperatorActive    = errors.New("voter proxy: current operator not shut down")
	ErrOperatorShutdown  = errors.New("voter proxy: candidate operator already shut down")
	ErrWalletNotApproved = errors.New("voter proxy: proxy wallet not whitelisted")
	ErrNoOpenLock        = errors.New("voter proxy: no open escrow position")
)

type proxyEvent struct {
	evt *types.Event
}

func (e proxyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e proxyEvent) Event() *types.Event { return e.evt }

// Proxy owns the protocol's single vote-escrow position. Exactly one operator
// (the booster) may direct it at a time; handing the role over requires the
// incumbent to be shut down first.
type Proxy struct {
	address   crypto.Address
	owner     crypto.Address
	depositor crypto.Address
	operator  Operator
	escrow    LockManager
	checker   WalletChecker
	emitter   events.Emitter
}

// NewProxy constructs a proxy bound to its module address and governance
// owner.
func NewProxy(address, owner crypto.Address) *Proxy {
	return &Proxy{address: address, owner: owner, emitter: events.NoopEmitter{}}
}

// SetEscrow wires the external vote-escrow contract.
func (p *Proxy) SetEscrow(escrow LockManager) { p.escrow = escrow }

// SetWalletChecker wires the escrow's smart-wallet whitelist.
func (p *Proxy) SetWalletChecker(checker WalletChecker) { p.checker = checker }

// SetDepositor installs the depositor module address allowed to drive lock
// mutations.
func (p *Proxy) SetDepositor(depositor crypto.Address) { p.depositor = depositor }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (p *Proxy) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// Address returns the proxy's module address.
func (p *Proxy) Address() crypto.Address {
	if p == nil {
		return crypto.Address{}
	}
	return p.address
}

// Operator returns the currently installed operator, or nil.
func (p *Proxy) Operator() Operator {
	if p == nil {
		return nil
	}
	return p.operator
}

// SetOperator redirects the proxy to a new operator. The transition function
// itself enforces the single-active-operator invariant: the incumbent must be
// shut down and the candidate must not be.
func (p *Proxy) SetOperator(caller crypto.Address, candidate Operator) error {
	if p == nil {
		return ErrProxyUnauthorized
	}
	if !caller.Equal(p.owner) {
		return ErrProxyUnauthorized
	}
	if p.operator != nil && !p.operator.IsShutdown() {
		return ErrOperatorActive
	}
	if candidate == nil || candidate.IsShutdown() {
		return ErrOperatorShutdown
	}
	var prev, curr [20]byte
	if p.operator != nil {
		copy(prev[:], p.operator.Address().Bytes())
	}
	copy(curr[:], candidate.Address().Bytes())
	p.operator = candidate
	p.emit(events.OperatorChanged{Previous: prev, Current: curr}.Event())
	return nil
}

func (p *Proxy) emit(evt *types.Event) {
	if p == nil || p.emitter == nil || evt == nil {
		return
	}
	p.emitter.Emit(proxyEvent{evt: evt})
}

func (p *Proxy) requireDepositor(caller crypto.Address) error {
	if p.depositor.IsZero() || !caller.Equal(p.depositor) {
		return ErrProxyUnauthorized
	}
	return nil
}

func (p *Proxy) requireApproved() error {
	if p.checker != nil && !p.checker.Check(p.address) {
		return ErrWalletNotApproved
	}
	return nil
}

// CreateLock opens the escrow position with the supplied amount and unlock
// time. Only the installed depositor may drive it.
func (p *Proxy) CreateLock(caller crypto.Address, amount *big.Int, until uint64) error {
	if p == nil || p.escrow == nil {
		return errNilEscrow
	}
	if err := p.requireDepositor(caller); err != nil {
		return err
	}
	if err := p.requireApproved(); err != nil {
		return err
	}
	if err := p.escrow.Lock(p.address, amount, until); err != nil {
		return err
	}
	p.emit(events.LockCreated{Amount: new(big.Int).Set(amount), UnlockTime: until}.Event())
	return nil
}

// PrepareLockExtension verifies that an IncreaseLock driven by the caller
// would be accepted right now, without touching the escrow. Callers use it to
// validate before moving any balances.
func (p *Proxy) PrepareLockExtension(caller crypto.Address) error {
	if p == nil || p.escrow == nil {
		return errNilEscrow
	}
	if err := p.requireDepositor(caller); err != nil {
		return err
	}
	if err := p.requireApproved(); err != nil {
		return err
	}
	amount, _ := p.escrow.LockedBalance(p.address)
	if amount == nil || amount.Sign() == 0 {
		return ErrNoOpenLock
	}
	return nil
}

// IncreaseLock folds additional governance tokens into the existing escrow
// position.
func (p *Proxy) IncreaseLock(caller crypto.Address, amount *big.Int) error {
	if p == nil || p.escrow == nil {
		return errNilEscrow
	}
	if err := p.requireDepositor(caller); err != nil {
		return err
	}
	if err := p.requireApproved(); err != nil {
		return err
	}
	if err := p.escrow.ExtendLock(p.address, amount); err != nil {
		return err
	}
	p.emit(events.LockExtended{Amount: new(big.Int).Set(amount)}.Event())
	return nil
}

// LockedBalance reports the proxy's current escrow position.
func (p *Proxy) LockedBalance() Lock {
	if p == nil || p.escrow == nil {
		return Lock{Amount: big.NewInt(0)}
	}
	amount, unlock := p.escrow.LockedBalance(p.address)
	if amount == nil {
		amount = big.NewInt(0)
	}
	return Lock{Amount: amount, UnlockTime: unlock}
}

// ClaimFees pulls accrued fee revenue from the distributor into the proxy's
// ledger account. Restricted to the installed operator; zero accrual is a
// valid no-op.
func (p *Proxy) ClaimFees(caller crypto.Address, source FeeSource) (*big.Int, error) {
	if p == nil {
		return nil, ErrProxyUnauthorized
	}
	if p.operator == nil || !caller.Equal(p.operator.Address()) {
		return nil, ErrProxyUnauthorized
	}
	if source == nil {
		return big.NewInt(0), nil
	}
	amount, err := source.Claim(p.address)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	return amount, nil
}
