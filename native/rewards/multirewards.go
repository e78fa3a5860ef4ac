package rewards

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
	errNilState = errors.New("multi rewards: state not configured")

	ErrInvalidAmount       = errors.New("multi rewards: amount must be positive")
	ErrInvalidDuration     = errors.New("multi rewards: duration must be positive")
	ErrRewardNotConfigured = errors.New("multi rewards: reward token not configured")
	ErrInsufficientStake   = errors.New("multi rewards: stake below requested amount")
	ErrInsufficientFunds   = errors.New("multi rewards: distributor balance below payout")
)

const moduleName = "rewards"

var precision = big.NewInt(1_000_000_000_000_000_000)

// RewardState is the persisted streaming accumulator for one reward token on
// one distributor.
type RewardState struct {
	Token                string
	Duration             uint64
	PeriodFinish         uint64
	RewardRate           *big.Int
	LastUpdateTime       uint64
	RewardPerTokenStored *big.Int
}

// UserRewardState holds the per-user accumulator checkpoints.
type UserRewardState struct {
	RewardPerTokenPaid *big.Int
	Accrued            *big.Int
}

type engineState interface {
	GetRewardState(distributor crypto.Address, token string) (*RewardState, error)
	PutRewardState(distributor crypto.Address, state *RewardState) error
	RewardTokens(distributor crypto.Address) ([]string, error)
	GetUserReward(distributor crypto.Address, token string, account crypto.Address) (*UserRewardState, error)
	PutUserReward(distributor crypto.Address, token string, account crypto.Address, state *UserRewardState) error
	GetStake(distributor, account crypto.Address) (*big.Int, error)
	PutStake(distributor, account crypto.Address, amount *big.Int) error
	GetTotalStaked(distributor crypto.Address) (*big.Int, error)
	PutTotalStaked(distributor crypto.Address, amount *big.Int) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

type rewardsEvent struct {
	evt *types.Event
}

func (e rewardsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rewardsEvent) Event() *types.Event { return e.evt }

// Engine implements the multi-token reward-per-share accumulator attached to
// each vault's rewards address. One engine instance serves every distributor;
// the distributor address keys the persisted state.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine constructs a rewards engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(rewardsEvent{evt: evt})
}

// AddReward registers a reward token with its streaming duration. Re-adding
// an existing token is a no-op so pool wiring stays idempotent.
func (e *Engine) AddReward(distributor crypto.Address, token string, duration uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if duration == 0 {
		return ErrInvalidDuration
	}
	existing, err := e.state.GetRewardState(distributor, token)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return e.state.PutRewardState(distributor, &RewardState{
		Token:                token,
		Duration:             duration,
		RewardRate:           big.NewInt(0),
		RewardPerTokenStored: big.NewInt(0),
	})
}

// NotifyRewardAmount moves new emissions from the funder onto the distributor
// and folds them into the streaming rate. Any undistributed remainder of the
// current period rolls into the new one.
func (e *Engine) NotifyRewardAmount(funder, distributor crypto.Address, token string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	state, err := e.loadRewardState(distributor, token)
	if err != nil {
		return err
	}
	total, err := e.totalStaked(distributor)
	if err != nil {
		return err
	}
	now := e.now()
	e.checkpoint(state, total, now)

	if err := e.transfer(funder, distributor, token, amount); err != nil {
		return err
	}

	pending := new(big.Int).Set(amount)
	if now < state.PeriodFinish {
		remaining := new(big.Int).SetUint64(state.PeriodFinish - now)
		leftover := new(big.Int).Mul(remaining, state.RewardRate)
		pending.Add(pending, leftover)
	}
	state.RewardRate = new(big.Int).Quo(pending, new(big.Int).SetUint64(state.Duration))
	state.LastUpdateTime = now
	state.PeriodFinish = now + state.Duration

	if err := e.state.PutRewardState(distributor, state); err != nil {
		return err
	}
	var distBytes [20]byte
	copy(distBytes[:], distributor.Bytes())
	e.emit(events.RewardNotified{Distributor: distBytes, Token: token, Amount: new(big.Int).Set(amount)}.Event())
	return nil
}

// Stake credits staking balance to the account, settling accruals first so
// the new balance only earns from this point forward.
func (e *Engine) Stake(distributor, account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.settle(distributor, account); err != nil {
		return err
	}
	stake, err := e.state.GetStake(distributor, account)
	if err != nil {
		return err
	}
	total, err := e.totalStaked(distributor)
	if err != nil {
		return err
	}
	if err := e.state.PutStake(distributor, account, new(big.Int).Add(safeInt(stake), amount)); err != nil {
		return err
	}
	return e.state.PutTotalStaked(distributor, new(big.Int).Add(total, amount))
}

// Unstake debits staking balance from the account after settling accruals.
func (e *Engine) Unstake(distributor, account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	stake, err := e.state.GetStake(distributor, account)
	if err != nil {
		return err
	}
	if safeInt(stake).Cmp(amount) < 0 {
		return ErrInsufficientStake
	}
	if err := e.settle(distributor, account); err != nil {
		return err
	}
	total, err := e.totalStaked(distributor)
	if err != nil {
		return err
	}
	if err := e.state.PutStake(distributor, account, new(big.Int).Sub(safeInt(stake), amount)); err != nil {
		return err
	}
	next := new(big.Int).Sub(total, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return e.state.PutTotalStaked(distributor, next)
}

// StakedBalance reports the account's mirrored stake on the distributor.
func (e *Engine) StakedBalance(distributor, account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	stake, err := e.state.GetStake(distributor, account)
	if err != nil {
		return nil, err
	}
	return safeInt(stake), nil
}

// Earned reports the claimable amount of one reward token for the account.
func (e *Engine) Earned(distributor crypto.Address, token string, account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, err := e.loadRewardState(distributor, token)
	if err != nil {
		return nil, err
	}
	total, err := e.totalStaked(distributor)
	if err != nil {
		return nil, err
	}
	stake, err := e.state.GetStake(distributor, account)
	if err != nil {
		return nil, err
	}
	user, err := e.loadUserReward(distributor, token, account)
	if err != nil {
		return nil, err
	}
	perToken := e.rewardPerToken(state, total, e.now())
	return earned(safeInt(stake), perToken, user), nil
}

// GetReward pays out every pending reward token to the account. Zero pending
// balances are a no-op, not an error.
func (e *Engine) GetReward(distributor, account crypto.Address) (map[string]*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.settle(distributor, account); err != nil {
		return nil, err
	}
	tokens, err := e.state.RewardTokens(distributor)
	if err != nil {
		return nil, err
	}
	paid := make(map[string]*big.Int)
	var distBytes, accBytes [20]byte
	copy(distBytes[:], distributor.Bytes())
	copy(accBytes[:], account.Bytes())
	for _, token := range tokens {
		user, err := e.loadUserReward(distributor, token, account)
		if err != nil {
			return nil, err
		}
		if user.Accrued.Sign() == 0 {
			continue
		}
		amount := new(big.Int).Set(user.Accrued)
		if err := e.transfer(distributor, account, token, amount); err != nil {
			return nil, err
		}
		user.Accrued = big.NewInt(0)
		if err := e.state.PutUserReward(distributor, token, account, user); err != nil {
			return nil, err
		}
		paid[token] = amount
		e.emit(events.RewardPaid{Distributor: distBytes, Account: accBytes, Token: token, Amount: amount}.Event())
	}
	return paid, nil
}

// RewardStateOf returns a copy of the streaming state for one reward token.
func (e *Engine) RewardStateOf(distributor crypto.Address, token string) (*RewardState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	state, err := e.loadRewardState(distributor, token)
	if err != nil {
		return nil, err
	}
	clone := *state
	clone.RewardRate = new(big.Int).Set(state.RewardRate)
	clone.RewardPerTokenStored = new(big.Int).Set(state.RewardPerTokenStored)
	return &clone, nil
}

// settle checkpoints every reward token and folds the account's accrual into
// its stored balance.
func (e *Engine) settle(distributor, account crypto.Address) error {
	tokens, err := e.state.RewardTokens(distributor)
	if err != nil {
		return err
	}
	total, err := e.totalStaked(distributor)
	if err != nil {
		return err
	}
	stake, err := e.state.GetStake(distributor, account)
	if err != nil {
		return err
	}
	now := e.now()
	for _, token := range tokens {
		state, err := e.loadRewardState(distributor, token)
		if err != nil {
			return err
		}
		e.checkpoint(state, total, now)
		if err := e.state.PutRewardState(distributor, state); err != nil {
			return err
		}
		user, err := e.loadUserReward(distributor, token, account)
		if err != nil {
			return err
		}
		user.Accrued = earned(safeInt(stake), state.RewardPerTokenStored, user)
		user.RewardPerTokenPaid = new(big.Int).Set(state.RewardPerTokenStored)
		if err := e.state.PutUserReward(distributor, token, account, user); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint advances the global accumulator. While total supply is zero the
// last-update timestamp is frozen, so emissions over an empty window stay
// claimable once supply resumes instead of being discarded.
func (e *Engine) checkpoint(state *RewardState, totalStaked *big.Int, now uint64) {
	if totalStaked == nil || totalStaked.Sign() == 0 {
		return
	}
	state.RewardPerTokenStored = e.rewardPerToken(state, totalStaked, now)
	applicable := now
	if applicable > state.PeriodFinish {
		applicable = state.PeriodFinish
	}
	if applicable > state.LastUpdateTime {
		state.LastUpdateTime = applicable
	}
}

func (e *Engine) rewardPerToken(state *RewardState, totalStaked *big.Int, now uint64) *big.Int {
	stored := new(big.Int).Set(state.RewardPerTokenStored)
	if totalStaked == nil || totalStaked.Sign() == 0 {
		return stored
	}
	applicable := now
	if applicable > state.PeriodFinish {
		applicable = state.PeriodFinish
	}
	if applicable <= state.LastUpdateTime {
		return stored
	}
	elapsed := new(big.Int).SetUint64(applicable - state.LastUpdateTime)
	accrued := new(big.Int).Mul(elapsed, state.RewardRate)
	accrued.Mul(accrued, precision)
	accrued.Quo(accrued, totalStaked)
	return stored.Add(stored, accrued)
}

func earned(stake, perToken *big.Int, user *UserRewardState) *big.Int {
	delta := new(big.Int).Sub(perToken, user.RewardPerTokenPaid)
	if delta.Sign() < 0 {
		delta = big.NewInt(0)
	}
	gain := new(big.Int).Mul(safeInt(stake), delta)
	gain.Quo(gain, precision)
	return gain.Add(gain, user.Accrued)
}

func (e *Engine) loadRewardState(distributor crypto.Address, token string) (*RewardState, error) {
	state, err := e.state.GetRewardState(distributor, token)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrRewardNotConfigured
	}
	if state.RewardRate == nil {
		state.RewardRate = big.NewInt(0)
	}
	if state.RewardPerTokenStored == nil {
		state.RewardPerTokenStored = big.NewInt(0)
	}
	return state, nil
}

func (e *Engine) loadUserReward(distributor crypto.Address, token string, account crypto.Address) (*UserRewardState, error) {
	user, err := e.state.GetUserReward(distributor, token, account)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &UserRewardState{}
	}
	if user.RewardPerTokenPaid == nil {
		user.RewardPerTokenPaid = big.NewInt(0)
	}
	if user.Accrued == nil {
		user.Accrued = big.NewInt(0)
	}
	return user, nil
}

func (e *Engine) totalStaked(distributor crypto.Address) (*big.Int, error) {
	total, err := e.state.GetTotalStaked(distributor)
	if err != nil {
		return nil, err
	}
	return safeInt(total), nil
}

func (e *Engine) transfer(from, to crypto.Address, token string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance(token).Cmp(amount) < 0 {
		return ErrInsufficientFunds
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

func safeInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
