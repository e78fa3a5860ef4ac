package rewards

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"liquidlock/core/types"
	"liquidlock/crypto"
)

type mockState struct {
	rewardStates map[string]*RewardState
	tokens       map[string][]string
	userRewards  map[string]*UserRewardState
	stakes       map[string]*big.Int
	totals       map[string]*big.Int
	accounts     map[string]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		rewardStates: make(map[string]*RewardState),
		tokens:       make(map[string][]string),
		userRewards:  make(map[string]*UserRewardState),
		stakes:       make(map[string]*big.Int),
		totals:       make(map[string]*big.Int),
		accounts:     make(map[string]*types.Account),
	}
}

func testAddress(fill byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{fill}, 20))
}

func key(parts ...interface{}) string {
	return fmt.Sprint(parts...)
}

func (m *mockState) GetRewardState(distributor crypto.Address, token string) (*RewardState, error) {
	state, ok := m.rewardStates[key(distributor.String(), token)]
	if !ok {
		return nil, nil
	}
	clone := *state
	clone.RewardRate = new(big.Int).Set(state.RewardRate)
	clone.RewardPerTokenStored = new(big.Int).Set(state.RewardPerTokenStored)
	return &clone, nil
}

func (m *mockState) PutRewardState(distributor crypto.Address, state *RewardState) error {
	k := key(distributor.String(), state.Token)
	if _, exists := m.rewardStates[k]; !exists {
		m.tokens[distributor.String()] = append(m.tokens[distributor.String()], state.Token)
	}
	clone := *state
	clone.RewardRate = new(big.Int).Set(state.RewardRate)
	clone.RewardPerTokenStored = new(big.Int).Set(state.RewardPerTokenStored)
	m.rewardStates[k] = &clone
	return nil
}

func (m *mockState) RewardTokens(distributor crypto.Address) ([]string, error) {
	return append([]string(nil), m.tokens[distributor.String()]...), nil
}

func (m *mockState) GetUserReward(distributor crypto.Address, token string, account crypto.Address) (*UserRewardState, error) {
	user, ok := m.userRewards[key(distributor.String(), token, account.String())]
	if !ok {
		return nil, nil
	}
	return &UserRewardState{
		RewardPerTokenPaid: new(big.Int).Set(user.RewardPerTokenPaid),
		Accrued:            new(big.Int).Set(user.Accrued),
	}, nil
}

func (m *mockState) PutUserReward(distributor crypto.Address, token string, account crypto.Address, state *UserRewardState) error {
	m.userRewards[key(distributor.String(), token, account.String())] = &UserRewardState{
		RewardPerTokenPaid: new(big.Int).Set(state.RewardPerTokenPaid),
		Accrued:            new(big.Int).Set(state.Accrued),
	}
	return nil
}

func (m *mockState) GetStake(distributor, account crypto.Address) (*big.Int, error) {
	stake, ok := m.stakes[key(distributor.String(), account.String())]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(stake), nil
}

func (m *mockState) PutStake(distributor, account crypto.Address, amount *big.Int) error {
	m.stakes[key(distributor.String(), account.String())] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetTotalStaked(distributor crypto.Address) (*big.Int, error) {
	total, ok := m.totals[distributor.String()]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(total), nil
}

func (m *mockState) PutTotalStaked(distributor crypto.Address, amount *big.Int) error {
	m.totals[distributor.String()] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) GetAccount(addr crypto.Address) (*types.Account, error) {
	acc, ok := m.accounts[addr.String()]
	if !ok {
		return nil, nil
	}
	clone := types.NewAccount()
	for token, amount := range acc.Balances {
		clone.Balances[token] = new(big.Int).Set(amount)
	}
	return clone, nil
}

func (m *mockState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[addr.String()] = account
	return nil
}

func (m *mockState) fund(addr crypto.Address, token string, amount int64) {
	acc, ok := m.accounts[addr.String()]
	if !ok {
		acc = types.NewAccount()
		m.accounts[addr.String()] = acc
	}
	acc.SetBalance(token, new(big.Int).Add(acc.Balance(token), big.NewInt(amount)))
}

func newTestEngine(start int64) (*Engine, *mockState, *int64) {
	state := newMockState()
	clock := start
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return clock })
	return engine, state, &clock
}

func TestAddRewardIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine(1_000)
	dist := testAddress(0xD1)

	if err := engine.AddReward(dist, "CRV", 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("zero duration: %v, want ErrInvalidDuration", err)
	}
	if err := engine.AddReward(dist, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	if err := engine.AddReward(dist, "CRV", 900); err != nil {
		t.Fatalf("re-add reward: %v", err)
	}
	state, err := engine.RewardStateOf(dist, "CRV")
	if err != nil {
		t.Fatalf("reward state: %v", err)
	}
	if state.Duration != 700 {
		t.Fatalf("re-add must not change duration: %d, want 700", state.Duration)
	}
}

func TestNotifyAndAccrue(t *testing.T) {
	engine, state, clock := newTestEngine(1_000)
	dist := testAddress(0xD1)
	funder := testAddress(0xF1)
	alice := testAddress(0x0A)

	if err := engine.AddReward(dist, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	if err := engine.Stake(dist, alice, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	state.fund(funder, "CRV", 700)
	if err := engine.NotifyRewardAmount(funder, dist, "CRV", big.NewInt(700)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	*clock += 350
	earned, err := engine.Earned(dist, "CRV", alice)
	if err != nil {
		t.Fatalf("earned: %v", err)
	}
	if earned.Cmp(big.NewInt(350)) != 0 {
		t.Fatalf("earned at half period = %s, want 350", earned)
	}

	// Past the period finish the accrual stops at the full amount.
	*clock += 10_000
	earned, err = engine.Earned(dist, "CRV", alice)
	if err != nil {
		t.Fatalf("earned after finish: %v", err)
	}
	if earned.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("earned after finish = %s, want 700", earned)
	}

	paid, err := engine.GetReward(dist, alice)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if paid["CRV"].Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("paid = %s, want 700", paid["CRV"])
	}
	acc, _ := state.GetAccount(alice)
	if acc.Balance("CRV").Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("alice balance = %s, want 700", acc.Balance("CRV"))
	}

	// A second claim is a paid-nothing no-op.
	paid, err = engine.GetReward(dist, alice)
	if err != nil {
		t.Fatalf("second get reward: %v", err)
	}
	if len(paid) != 0 {
		t.Fatalf("second claim paid %v, want nothing", paid)
	}
}

func TestZeroSupplyWindowKeepsEmissions(t *testing.T) {
	engine, state, clock := newTestEngine(1_000)
	dist := testAddress(0xD1)
	funder := testAddress(0xF1)
	alice := testAddress(0x0A)

	if err := engine.AddReward(dist, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	state.fund(funder, "CRV", 700)
	if err := engine.NotifyRewardAmount(funder, dist, "CRV", big.NewInt(700)); err != nil {
		t.Fatalf("notify: %v", err)
	}

	// Nobody staked for the first half of the period.
	*clock += 350
	if err := engine.Stake(dist, alice, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	*clock += 10_000
	earned, err := engine.Earned(dist, "CRV", alice)
	if err != nil {
		t.Fatalf("earned: %v", err)
	}
	if earned.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("earned = %s, want the full 700 despite the empty window", earned)
	}
}

func TestNotifyRollsLeftoverIntoNewPeriod(t *testing.T) {
	engine, state, clock := newTestEngine(1_000)
	dist := testAddress(0xD1)
	funder := testAddress(0xF1)
	alice := testAddress(0x0A)

	if err := engine.AddReward(dist, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	if err := engine.Stake(dist, alice, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	state.fund(funder, "CRV", 1_750)
	if err := engine.NotifyRewardAmount(funder, dist, "CRV", big.NewInt(700)); err != nil {
		t.Fatalf("first notify: %v", err)
	}

	// Half the period passes, then a second notification arrives. The 350
	// undistributed units fold into the new period's rate.
	*clock += 350
	if err := engine.NotifyRewardAmount(funder, dist, "CRV", big.NewInt(1_050)); err != nil {
		t.Fatalf("second notify: %v", err)
	}
	st, err := engine.RewardStateOf(dist, "CRV")
	if err != nil {
		t.Fatalf("reward state: %v", err)
	}
	if st.RewardRate.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("rate = %s, want 2 after rollover", st.RewardRate)
	}
	if st.PeriodFinish != 2_050 {
		t.Fatalf("period finish = %d, want 2050", st.PeriodFinish)
	}

	*clock += 10_000
	earned, err := engine.Earned(dist, "CRV", alice)
	if err != nil {
		t.Fatalf("earned: %v", err)
	}
	if earned.Cmp(big.NewInt(1_750)) != 0 {
		t.Fatalf("earned = %s, want 1750", earned)
	}
}

func TestStakeAndUnstakeGuards(t *testing.T) {
	engine, _, _ := newTestEngine(1_000)
	dist := testAddress(0xD1)
	alice := testAddress(0x0A)

	if err := engine.Stake(dist, alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero stake: %v, want ErrInvalidAmount", err)
	}
	if err := engine.Stake(dist, alice, big.NewInt(100)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := engine.Unstake(dist, alice, big.NewInt(101)); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("overdraw: %v, want ErrInsufficientStake", err)
	}
	if err := engine.Unstake(dist, alice, big.NewInt(100)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	balance, err := engine.StakedBalance(dist, alice)
	if err != nil {
		t.Fatalf("staked balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance = %s, want 0", balance)
	}
}

func TestNotifyRequiresFunderBalance(t *testing.T) {
	engine, _, _ := newTestEngine(1_000)
	dist := testAddress(0xD1)
	funder := testAddress(0xF1)

	if err := engine.AddReward(dist, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	err := engine.NotifyRewardAmount(funder, dist, "CRV", big.NewInt(700))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("unfunded notify: %v, want ErrInsufficientFunds", err)
	}
	if err := engine.NotifyRewardAmount(funder, dist, "SDT", big.NewInt(1)); !errors.Is(err, ErrRewardNotConfigured) {
		t.Fatalf("unconfigured token: %v, want ErrRewardNotConfigured", err)
	}
}
