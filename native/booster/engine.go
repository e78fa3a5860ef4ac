package booster

import (
	"errors"
	"math/big"
	"sort"

	"liquidlock/core/events"
	"liquidlock/core/types"
	"liquidlock/crypto"
	nativecommon "liquidlock/native/common"
	"liquidlock/native/locker"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
	"liquidlock/observability/metrics"
)

var (
	errNilState    = errors.New("booster: state not configured")
	errNilProxy    = errors.New("booster: voter proxy not configured")
	errNilRegistry = errors.New("booster: pool registry not configured")
	errNilRewards  = errors.New("booster: rewards engine not configured")

	ErrUnauthorized   = errors.New("booster: caller lacks required role")
	ErrSystemShutdown = errors.New("booster: system is shut down")
	ErrNoEmissionPath = errors.New("booster: no emission source for staking target")
)

const moduleName = "booster"

// defaultRewardDuration is the streaming window applied when a claimed
// emission token has not been configured on the pool's distributor yet.
const defaultRewardDuration uint64 = 7 * 24 * 60 * 60

var bpsDenominator = big.NewInt(10_000)

type engineState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// EmissionSource settles pending gauge emissions for an account. Both gauge
// kinds satisfy it.
type EmissionSource interface {
	Claim(account crypto.Address) (map[string]*big.Int, error)
}

type boosterEvent struct {
	evt *types.Event
}

func (e boosterEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e boosterEvent) Event() *types.Event { return e.evt }

// Engine orchestrates pool lifecycle, vault creation and protocol fee
// collection. It is the single point of truth for who operates the locked
// governance position; its lifecycle is Active -> Shutdown with no
// intermediate draining phase, and Shutdown is terminal.
type Engine struct {
	state             engineState
	address           crypto.Address
	owner             crypto.Address
	registry          *registry.Engine
	fees              *registry.FeeRegistry
	proxy             *locker.Proxy
	rewards           *rewards.Engine
	feeSource         locker.FeeSource
	emissions         func(target crypto.Address) EmissionSource
	feeToken          string
	feeQueue          crypto.Address
	treasury          crypto.Address
	platformRecipient crypto.Address
	shutdown          bool
	emitter           events.Emitter
	pauses            nativecommon.PauseView
}

// NewEngine constructs a booster bound to its module address and governance
// owner.
func NewEngine(address, owner crypto.Address) *Engine {
	return &Engine{address: address, owner: owner, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry wires the pool catalogue the booster administers.
func (e *Engine) SetRegistry(reg *registry.Engine) { e.registry = reg }

// SetFeeRegistry wires the protocol fee table.
func (e *Engine) SetFeeRegistry(fees *registry.FeeRegistry) { e.fees = fees }

// SetProxy wires the voter proxy holding the escrow position.
func (e *Engine) SetProxy(proxy *locker.Proxy) { e.proxy = proxy }

// SetRewards wires the shared multi-rewards engine.
func (e *Engine) SetRewards(rew *rewards.Engine) { e.rewards = rew }

// SetFeeSource wires the external vote-escrow fee distributor.
func (e *Engine) SetFeeSource(source locker.FeeSource) { e.feeSource = source }

// SetEmissionResolver wires the lookup from staking target to its emission
// source.
func (e *Engine) SetEmissionResolver(resolve func(target crypto.Address) EmissionSource) {
	e.emissions = resolve
}

// SetFeeToken configures the token symbol the fee distributor pays in.
func (e *Engine) SetFeeToken(token string) { e.feeToken = token }

// SetFeeQueue configures the downstream queue receiving unskimmed fees.
func (e *Engine) SetFeeQueue(addr crypto.Address) { e.feeQueue = addr }

// SetTreasury configures the recipient of boost fee skims.
func (e *Engine) SetTreasury(addr crypto.Address) { e.treasury = addr }

// SetPlatformRecipient configures the recipient of platform fee skims.
func (e *Engine) SetPlatformRecipient(addr crypto.Address) { e.platformRecipient = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Address implements locker.Operator.
func (e *Engine) Address() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.address
}

// IsShutdown implements locker.Operator.
func (e *Engine) IsShutdown() bool {
	if e == nil {
		return true
	}
	return e.shutdown
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(boosterEvent{evt: evt})
}

func (e *Engine) requireOwner(caller crypto.Address) error {
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireActive() error {
	if e.shutdown {
		return ErrSystemShutdown
	}
	return nil
}

// ClaimOperator installs this booster as the registry operator once the
// proxy has accepted it.
func (e *Engine) ClaimOperator(caller crypto.Address) error {
	if e == nil || e.registry == nil {
		return errNilRegistry
	}
	if e.proxy == nil {
		return errNilProxy
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if op := e.proxy.Operator(); op == nil || !op.Address().Equal(e.address) {
		return ErrUnauthorized
	}
	e.registry.SetOperator(e.address)
	return nil
}

// AddPool registers a new pool for the staking target.
func (e *Engine) AddPool(caller crypto.Address, kind registry.VaultKind, stakingTarget crypto.Address, stakingToken string) (uint64, error) {
	if e == nil || e.registry == nil {
		return 0, errNilRegistry
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	if err := e.requireActive(); err != nil {
		return 0, err
	}
	return e.registry.AddPool(e.address, kind, stakingTarget, stakingToken)
}

// DeactivatePool closes a pool to new vaults and deposits.
func (e *Engine) DeactivatePool(caller crypto.Address, poolID uint64) error {
	if e == nil || e.registry == nil {
		return errNilRegistry
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return e.registry.DeactivatePool(e.address, poolID)
}

// AddPoolReward configures a reward token stream on the pool's distributor.
func (e *Engine) AddPoolReward(caller crypto.Address, poolID uint64, token string, duration uint64) error {
	if e == nil || e.registry == nil {
		return errNilRegistry
	}
	if e.rewards == nil {
		return errNilRewards
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	pool, err := e.registry.Pool(poolID)
	if err != nil {
		return err
	}
	return e.rewards.AddReward(pool.RewardsAddress, token, duration)
}

// CreateVault instantiates the caller's vault for the pool.
func (e *Engine) CreateVault(caller crypto.Address, poolID uint64) (crypto.Address, error) {
	if e == nil || e.registry == nil {
		return crypto.Address{}, errNilRegistry
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return crypto.Address{}, err
	}
	if err := e.requireActive(); err != nil {
		return crypto.Address{}, err
	}
	return e.registry.CreateVault(e.address, poolID, caller)
}

// ClaimFees pulls accrued fee-token revenue through the proxy, withholds the
// platform rate and forwards the remainder to the fee queue. Zero accrual is
// a valid no-op, including when called repeatedly.
func (e *Engine) ClaimFees() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.proxy == nil {
		return nil, errNilProxy
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	claimed, err := e.proxy.ClaimFees(e.address, e.feeSource)
	if err != nil {
		return nil, err
	}
	if claimed.Sign() == 0 {
		return big.NewInt(0), nil
	}
	rate := uint64(0)
	if e.fees != nil {
		rate = e.fees.Rate(registry.FeePlatform)
	}
	withheld := new(big.Int).Mul(claimed, new(big.Int).SetUint64(rate))
	withheld.Quo(withheld, bpsDenominator)
	queued := new(big.Int).Sub(claimed, withheld)

	proxyAddr := e.proxy.Address()
	if withheld.Sign() > 0 {
		if err := e.transfer(proxyAddr, e.platformRecipient, e.feeToken, withheld); err != nil {
			return nil, err
		}
	}
	if queued.Sign() > 0 {
		if err := e.transfer(proxyAddr, e.feeQueue, e.feeToken, queued); err != nil {
			return nil, err
		}
	}
	e.emit(events.FeesClaimed{Token: e.feeToken, Claimed: claimed, Withheld: withheld, Queued: queued}.Event())
	metrics.Boost().ObserveFeeClaim("platform")
	return claimed, nil
}

// ClaimBoostFees claims the pool's gauge emissions through the proxy, skims
// the boost rate to the treasury and streams the remainder into the pool's
// reward distributor.
func (e *Engine) ClaimBoostFees(poolID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.proxy == nil {
		return errNilProxy
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if e.rewards == nil {
		return errNilRewards
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.registry.Pool(poolID)
	if err != nil {
		return err
	}
	if e.emissions == nil {
		return ErrNoEmissionPath
	}
	source := e.emissions(pool.StakingAddress)
	if source == nil {
		return ErrNoEmissionPath
	}
	claimed, err := source.Claim(e.proxy.Address())
	if err != nil {
		return err
	}
	rate := uint64(0)
	if e.fees != nil {
		rate = e.fees.Rate(registry.FeeBoost)
	}
	// Token order must be stable so event order and any mid-claim failure are
	// reproducible across runs.
	tokens := make([]string, 0, len(claimed))
	for token, amount := range claimed {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	split := func(amount *big.Int) (*big.Int, *big.Int) {
		skim := new(big.Int).Mul(amount, new(big.Int).SetUint64(rate))
		skim.Quo(skim, bpsDenominator)
		return skim, new(big.Int).Sub(amount, skim)
	}
	// Configure every stream up front so a token the distributor cannot
	// accept fails the claim before any balance moves.
	for _, token := range tokens {
		if _, queued := split(claimed[token]); queued.Sign() > 0 {
			if err := e.rewards.AddReward(pool.RewardsAddress, token, defaultRewardDuration); err != nil {
				return err
			}
		}
	}

	proxyAddr := e.proxy.Address()
	for _, token := range tokens {
		amount := claimed[token]
		skim, queued := split(amount)
		if skim.Sign() > 0 {
			if err := e.transfer(proxyAddr, e.treasury, token, skim); err != nil {
				return err
			}
		}
		if queued.Sign() > 0 {
			if err := e.rewards.NotifyRewardAmount(proxyAddr, pool.RewardsAddress, token, queued); err != nil {
				return err
			}
		}
		e.emit(events.BoostFeesClaimed{PoolID: poolID, Token: token, Claimed: amount, Treasury: skim, Queued: queued}.Event())
	}
	metrics.Boost().ObserveFeeClaim("boost")
	return nil
}

// ShutdownSystem performs the terminal state transition. Existing vault
// withdrawals keep working; pool and vault creation stop permanently.
func (e *Engine) ShutdownSystem(caller crypto.Address) error {
	if e == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.shutdown {
		return nil
	}
	e.shutdown = true
	e.emit(events.SystemShutdown{}.Event())
	return nil
}

func (e *Engine) transfer(from, to crypto.Address, token string, amount *big.Int) error {
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(token).Cmp(amount) < 0 {
		return errors.New("booster: insufficient module balance")
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.SetBalance(token, new(big.Int).Sub(fromAcc.Balance(token), amount))
	toAcc.SetBalance(token, new(big.Int).Add(toAcc.Balance(token), amount))
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	return acc, nil
}
