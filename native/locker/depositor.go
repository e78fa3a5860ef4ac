package locker

import (
	"errors"
	"math/big"
	"time"

	"liquidlock/core/events"
	"liquidlock/core/types"
	"liquidlock/crypto"
	nativecommon "liquidlock/native/common"
)

var (
	errNilState = errors.New("depositor: state not configured")
	errNilProxy = errors.New("depositor: voter proxy not configured")

	ErrInvalidAmount       = errors.New("depositor: amount must be positive")
	ErrInsufficientBalance = errors.New("depositor: insufficient balance")
	ErrUnauthorized        = errors.New("depositor: caller lacks required role")
	ErrNothingToLock       = errors.New("depositor: no balance available to lock")
)

const moduleName = "locker"

var bpsDenominator = big.NewInt(10_000)

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetTokenSupply(token string) (*big.Int, error)
	PutTokenSupply(token string, supply *big.Int) error
	GetPendingLock() (*big.Int, error)
	PutPendingLock(amount *big.Int) error
}

type lockerEvent struct {
	evt *types.Event
}

func (e lockerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lockerEvent) Event() *types.Event { return e.evt }

// Depositor converts governance-token deposits into the liquid derivative.
// Deposits flow to the voter proxy; the lock flag decides whether they enter
// the escrow immediately or stage as pending until the next locking deposit.
type Depositor struct {
	state              engineState
	proxy              *Proxy
	address            crypto.Address
	owner              crypto.Address
	govToken           string
	liquidToken        string
	platformHoldingBps uint64
	platformRecipient  crypto.Address
	emitter            events.Emitter
	pauses             nativecommon.PauseView
	nowFn              func() int64
}

// NewDepositor constructs a depositor bound to its module address and
// governance owner.
func NewDepositor(address, owner crypto.Address) *Depositor {
	return &Depositor{
		address:     address,
		owner:       owner,
		govToken:    GovToken,
		liquidToken: LiquidToken,
		emitter:     events.NoopEmitter{},
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (d *Depositor) SetState(state engineState) { d.state = state }

// SetProxy wires the voter proxy the deposits flow through.
func (d *Depositor) SetProxy(proxy *Proxy) { d.proxy = proxy }

// SetTokens overrides the governance and derivative token symbols.
func (d *Depositor) SetTokens(gov, liquid string) {
	if d == nil {
		return
	}
	if gov != "" {
		d.govToken = gov
	}
	if liquid != "" {
		d.liquidToken = liquid
	}
}

// SetPlatformHolding configures the skim applied to minted derivative tokens
// and its recipient.
func (d *Depositor) SetPlatformHolding(bps uint64, recipient crypto.Address) {
	if d == nil {
		return
	}
	d.platformHoldingBps = bps
	d.platformRecipient = recipient
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (d *Depositor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		d.emitter = events.NoopEmitter{}
		return
	}
	d.emitter = emitter
}

func (d *Depositor) SetPauses(p nativecommon.PauseView) {
	if d == nil {
		return
	}
	d.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (d *Depositor) SetNowFunc(now func() int64) {
	if now == nil {
		d.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	d.nowFn = now
}

// Address returns the depositor's module address.
func (d *Depositor) Address() crypto.Address {
	if d == nil {
		return crypto.Address{}
	}
	return d.address
}

func (d *Depositor) emit(evt *types.Event) {
	if d == nil || d.emitter == nil || evt == nil {
		return
	}
	d.emitter.Emit(lockerEvent{evt: evt})
}

func (d *Depositor) now() uint64 {
	ts := d.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// InitialLock opens the proxy's escrow position with its entire governance
// balance. Governance-gated; used once at system bring-up and again after a
// lapsed lock is renewed.
func (d *Depositor) InitialLock(caller crypto.Address) error {
	if d == nil || d.state == nil {
		return errNilState
	}
	if d.proxy == nil {
		return errNilProxy
	}
	if !caller.Equal(d.owner) {
		return ErrUnauthorized
	}
	proxyAcc, err := d.loadAccount(d.proxy.Address())
	if err != nil {
		return err
	}
	pending, err := d.pendingLock()
	if err != nil {
		return err
	}
	amount := proxyAcc.Balance(d.govToken)
	if amount.Sign() == 0 {
		return ErrNothingToLock
	}
	if err := d.proxy.CreateLock(d.address, amount, d.now()+MaxLockSeconds); err != nil {
		return err
	}
	if pending.Sign() > 0 {
		if err := d.state.PutPendingLock(big.NewInt(0)); err != nil {
			return err
		}
	}
	return nil
}

// Deposit pulls governance tokens from the caller and mints the liquid
// derivative one-to-one, net of the platform-holding skim. With lock=false
// the tokens stage on the proxy; with lock=true the staged balance and the
// new amount enter the escrow together.
func (d *Depositor) Deposit(from crypto.Address, amount *big.Int, lock bool) error {
	if d == nil || d.state == nil {
		return errNilState
	}
	if d.proxy == nil {
		return errNilProxy
	}
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	fromAcc, err := d.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(d.govToken).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A locking deposit must be refused before the debit, or a closed escrow
	// would strand the caller's tokens on the proxy.
	if lock {
		if err := d.proxy.PrepareLockExtension(d.address); err != nil {
			return err
		}
	}
	proxyAcc, err := d.loadAccount(d.proxy.Address())
	if err != nil {
		return err
	}
	pending, err := d.pendingLock()
	if err != nil {
		return err
	}

	fromAcc.SetBalance(d.govToken, new(big.Int).Sub(fromAcc.Balance(d.govToken), amount))
	proxyAcc.SetBalance(d.govToken, new(big.Int).Add(proxyAcc.Balance(d.govToken), amount))
	if err := d.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	if err := d.state.PutAccount(d.proxy.Address(), proxyAcc); err != nil {
		return err
	}

	if lock {
		toLock := new(big.Int).Add(pending, amount)
		if err := d.proxy.IncreaseLock(d.address, toLock); err != nil {
			return err
		}
		if err := d.state.PutPendingLock(big.NewInt(0)); err != nil {
			return err
		}
	} else {
		if err := d.state.PutPendingLock(new(big.Int).Add(pending, amount)); err != nil {
			return err
		}
	}

	withheld := new(big.Int)
	if d.platformHoldingBps > 0 && !d.platformRecipient.IsZero() {
		withheld.Mul(amount, new(big.Int).SetUint64(d.platformHoldingBps))
		withheld.Quo(withheld, bpsDenominator)
	}
	minted := new(big.Int).Sub(amount, withheld)

	if err := d.mint(from, minted); err != nil {
		return err
	}
	if withheld.Sign() > 0 {
		if err := d.mint(d.platformRecipient, withheld); err != nil {
			return err
		}
	}

	var fromBytes [20]byte
	copy(fromBytes[:], from.Bytes())
	d.emit(events.Deposited{
		Depositor: fromBytes,
		Amount:    new(big.Int).Set(amount),
		Minted:    minted,
		Withheld:  withheld,
		Locked:    lock,
	}.Event())
	return nil
}

// LockPending flushes any staged governance balance into the escrow. Zero
// staged balance is a no-op.
func (d *Depositor) LockPending() error {
	if d == nil || d.state == nil {
		return errNilState
	}
	if d.proxy == nil {
		return errNilProxy
	}
	if err := nativecommon.Guard(d.pauses, moduleName); err != nil {
		return err
	}
	pending, err := d.pendingLock()
	if err != nil {
		return err
	}
	if pending.Sign() == 0 {
		return nil
	}
	if err := d.proxy.IncreaseLock(d.address, pending); err != nil {
		return err
	}
	return d.state.PutPendingLock(big.NewInt(0))
}

// PendingLock reports the staged, not yet escrowed governance balance.
func (d *Depositor) PendingLock() (*big.Int, error) {
	if d == nil || d.state == nil {
		return nil, errNilState
	}
	return d.pendingLock()
}

func (d *Depositor) pendingLock() (*big.Int, error) {
	pending, err := d.state.GetPendingLock()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return big.NewInt(0), nil
	}
	return pending, nil
}

func (d *Depositor) mint(to crypto.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	acc, err := d.loadAccount(to)
	if err != nil {
		return err
	}
	acc.SetBalance(d.liquidToken, new(big.Int).Add(acc.Balance(d.liquidToken), amount))
	if err := d.state.PutAccount(to, acc); err != nil {
		return err
	}
	supply, err := d.state.GetTokenSupply(d.liquidToken)
	if err != nil {
		return err
	}
	if supply == nil {
		supply = big.NewInt(0)
	}
	return d.state.PutTokenSupply(d.liquidToken, new(big.Int).Add(supply, amount))
}

func (d *Depositor) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := d.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}
