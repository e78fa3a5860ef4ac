package vault

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"liquidlock/core/types"
	"liquidlock/crypto"
	"liquidlock/native/gauge"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
)

// mockLedger backs both the vault engine and the rewards engine in tests.
type mockLedger struct {
	accounts      map[string]*types.Account
	vaultBalances map[string]*big.Int
	rewardStates  map[string]*rewards.RewardState
	rewardTokens  map[string][]string
	userRewards   map[string]*rewards.UserRewardState
	stakes        map[string]*big.Int
	totals        map[string]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		accounts:      make(map[string]*types.Account),
		vaultBalances: make(map[string]*big.Int),
		rewardStates:  make(map[string]*rewards.RewardState),
		rewardTokens:  make(map[string][]string),
		userRewards:   make(map[string]*rewards.UserRewardState),
		stakes:        make(map[string]*big.Int),
		totals:        make(map[string]*big.Int),
	}
}

func (m *mockLedger) GetAccount(addr crypto.Address) (*types.Account, error) {
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

func (m *mockLedger) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[addr.String()] = account
	return nil
}

func (m *mockLedger) GetVaultBalance(vault crypto.Address) (*big.Int, error) {
	bal, ok := m.vaultBalances[vault.String()]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockLedger) PutVaultBalance(vault crypto.Address, amount *big.Int) error {
	m.vaultBalances[vault.String()] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedger) GetRewardState(distributor crypto.Address, token string) (*rewards.RewardState, error) {
	state, ok := m.rewardStates[distributor.String()+"/"+token]
	if !ok {
		return nil, nil
	}
	clone := *state
	return &clone, nil
}

func (m *mockLedger) PutRewardState(distributor crypto.Address, state *rewards.RewardState) error {
	k := distributor.String() + "/" + state.Token
	if _, exists := m.rewardStates[k]; !exists {
		m.rewardTokens[distributor.String()] = append(m.rewardTokens[distributor.String()], state.Token)
	}
	clone := *state
	m.rewardStates[k] = &clone
	return nil
}

func (m *mockLedger) RewardTokens(distributor crypto.Address) ([]string, error) {
	return append([]string(nil), m.rewardTokens[distributor.String()]...), nil
}

func (m *mockLedger) GetUserReward(distributor crypto.Address, token string, account crypto.Address) (*rewards.UserRewardState, error) {
	user, ok := m.userRewards[distributor.String()+"/"+token+"/"+account.String()]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (m *mockLedger) PutUserReward(distributor crypto.Address, token string, account crypto.Address, state *rewards.UserRewardState) error {
	clone := *state
	m.userRewards[distributor.String()+"/"+token+"/"+account.String()] = &clone
	return nil
}

func (m *mockLedger) GetStake(distributor, account crypto.Address) (*big.Int, error) {
	stake, ok := m.stakes[distributor.String()+"/"+account.String()]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(stake), nil
}

func (m *mockLedger) PutStake(distributor, account crypto.Address, amount *big.Int) error {
	m.stakes[distributor.String()+"/"+account.String()] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedger) GetTotalStaked(distributor crypto.Address) (*big.Int, error) {
	total, ok := m.totals[distributor.String()]
	if !ok {
		return nil, nil
	}
	return new(big.Int).Set(total), nil
}

func (m *mockLedger) PutTotalStaked(distributor crypto.Address, amount *big.Int) error {
	m.totals[distributor.String()] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedger) fund(addr crypto.Address, token string, amount int64) {
	acc, ok := m.accounts[addr.String()]
	if !ok {
		acc = types.NewAccount()
		m.accounts[addr.String()] = acc
	}
	acc.SetBalance(token, new(big.Int).Add(acc.Balance(token), big.NewInt(amount)))
}

func (m *mockLedger) balance(addr crypto.Address, token string) *big.Int {
	acc, ok := m.accounts[addr.String()]
	if !ok {
		return big.NewInt(0)
	}
	return acc.Balance(token)
}

type mockPools struct {
	pools map[uint64]*registry.Pool
}

func (m *mockPools) Pool(id uint64) (*registry.Pool, error) {
	pool, ok := m.pools[id]
	if !ok {
		return nil, registry.ErrPoolNotFound
	}
	return pool.Clone(), nil
}

type mockGauge struct {
	ledger   *mockLedger
	token    string
	balances map[string]*big.Int
	pending  map[string]map[string]*big.Int
}

func newMockGauge(ledger *mockLedger, token string) *mockGauge {
	return &mockGauge{
		ledger:   ledger,
		token:    token,
		balances: make(map[string]*big.Int),
		pending:  make(map[string]map[string]*big.Int),
	}
}

func (g *mockGauge) StakingToken() string { return g.token }

func (g *mockGauge) BalanceOf(account crypto.Address) *big.Int {
	bal := g.balances[account.String()]
	if bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (g *mockGauge) TotalSupply() *big.Int { return big.NewInt(0) }

func (g *mockGauge) WorkingBalanceOf(account crypto.Address) *big.Int { return g.BalanceOf(account) }

func (g *mockGauge) SharedBalanceOf(account crypto.Address) *big.Int { return g.BalanceOf(account) }

func (g *mockGauge) ActiveRewardTokens() []string { return nil }

func (g *mockGauge) RewardData(token string) (gauge.RewardData, bool) {
	return gauge.RewardData{}, false
}

func (g *mockGauge) Deposit(account crypto.Address, amount *big.Int) error {
	bal := g.balances[account.String()]
	if bal == nil {
		bal = big.NewInt(0)
	}
	g.balances[account.String()] = new(big.Int).Add(bal, amount)
	return nil
}

func (g *mockGauge) Withdraw(account crypto.Address, amount *big.Int) error {
	bal := g.balances[account.String()]
	if bal == nil || bal.Cmp(amount) < 0 {
		return errors.New("gauge balance too low")
	}
	g.balances[account.String()] = new(big.Int).Sub(bal, amount)
	return nil
}

func (g *mockGauge) Claim(account crypto.Address) (map[string]*big.Int, error) {
	paid := make(map[string]*big.Int)
	for token, amount := range g.pending[account.String()] {
		g.ledger.fund(account, token, amount.Int64())
		paid[token] = new(big.Int).Set(amount)
	}
	delete(g.pending, account.String())
	return paid, nil
}

func (g *mockGauge) DepositReward(token string, amount *big.Int) error { return nil }

func (g *mockGauge) queueEmission(account crypto.Address, token string, amount int64) {
	byToken := g.pending[account.String()]
	if byToken == nil {
		byToken = make(map[string]*big.Int)
		g.pending[account.String()] = byToken
	}
	byToken[token] = big.NewInt(amount)
}

type mockRebalanceGauge struct {
	mockGauge
	asset string
}

func newMockRebalanceGauge(ledger *mockLedger, asset string) *mockRebalanceGauge {
	return &mockRebalanceGauge{mockGauge: *newMockGauge(ledger, asset), asset: asset}
}

func (g *mockRebalanceGauge) Asset() string { return g.asset }

func (g *mockRebalanceGauge) BoostRatioOf(account crypto.Address) *big.Int { return big.NewInt(0) }

// mockConverter swaps one-to-one but only consumes a configurable fraction of
// the input, in basis points.
type mockConverter struct {
	ledger     *mockLedger
	consumeBps int64
	failWith   error
}

func (c *mockConverter) Quote(from, to string, amount *big.Int) (*big.Int, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	out := new(big.Int).Mul(amount, big.NewInt(c.consumeBps))
	out.Quo(out, big.NewInt(10_000))
	return out, nil
}

func (c *mockConverter) Convert(holder crypto.Address, from, to string, amount, minOut *big.Int) (*big.Int, *big.Int, error) {
	if c.failWith != nil {
		return nil, nil, c.failWith
	}
	consumed := new(big.Int).Mul(amount, big.NewInt(c.consumeBps))
	consumed.Quo(consumed, big.NewInt(10_000))
	out := new(big.Int).Set(consumed)
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, nil, gauge.ErrSlippage
	}
	acc, err := c.ledger.GetAccount(holder)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil {
		acc = types.NewAccount()
	}
	acc.SetBalance(from, new(big.Int).Sub(acc.Balance(from), consumed))
	acc.SetBalance(to, new(big.Int).Add(acc.Balance(to), out))
	if err := c.ledger.PutAccount(holder, acc); err != nil {
		return nil, nil, err
	}
	return out, consumed, nil
}

func testAddress(fill byte) crypto.Address {
	return crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{fill}, 20))
}

type testFixture struct {
	ledger  *mockLedger
	pools   *mockPools
	rewards *rewards.Engine
	vault   *StakingProxy
	gauge   *mockGauge
	rbGauge *mockRebalanceGauge
	owner   crypto.Address
	pool    *registry.Pool
	clock   *int64
}

func newFixture(t *testing.T, kind registry.VaultKind) *testFixture {
	t.Helper()
	ledger := newMockLedger()
	owner := testAddress(0x0A)
	pool := &registry.Pool{
		ID:             0,
		StakingAddress: testAddress(0xA1),
		StakingToken:   "LP",
		RewardsAddress: crypto.NewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0xD0}, 20)),
		Implementation: kind,
		Active:         true,
	}
	pools := &mockPools{pools: map[uint64]*registry.Pool{0: pool}}

	clock := int64(1_000)
	rewardsEng := rewards.NewEngine()
	rewardsEng.SetState(ledger)
	rewardsEng.SetNowFunc(func() int64 { return clock })

	record := registry.VaultRecord{
		PoolID:         0,
		Owner:          owner,
		Address:        crypto.NewAddress(crypto.ModulePrefix, bytes.Repeat([]byte{0xEE}, 20)),
		Implementation: kind,
	}
	v := NewStakingProxy(record, ledger, pools, rewardsEng)

	f := &testFixture{
		ledger:  ledger,
		pools:   pools,
		rewards: rewardsEng,
		vault:   v,
		owner:   owner,
		pool:    pool,
		clock:   &clock,
	}
	switch kind {
	case registry.VaultERC20:
		f.gauge = newMockGauge(ledger, "LP")
		v.SetGauge(f.gauge)
	case registry.VaultRebalance:
		pool.StakingToken = "USD"
		f.rbGauge = newMockRebalanceGauge(ledger, "USD")
		v.SetRebalanceGauge(f.rbGauge)
	}
	return f
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	f.ledger.fund(f.owner, "LP", 100)

	if err := f.vault.Deposit(f.owner, big.NewInt(60), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	staked, err := f.vault.StakedBalance()
	if err != nil {
		t.Fatalf("staked: %v", err)
	}
	if staked.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("staked = %s, want 60", staked)
	}
	if got := f.gauge.BalanceOf(f.vault.Address()); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("gauge balance = %s, want 60", got)
	}
	mirror, err := f.rewards.StakedBalance(f.pool.RewardsAddress, f.owner)
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if mirror.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("reward mirror = %s, want 60", mirror)
	}

	if err := f.vault.Withdraw(f.owner, big.NewInt(61)); !errors.Is(err, ErrInsufficientStaked) {
		t.Fatalf("overdraw: %v, want ErrInsufficientStaked", err)
	}
	if err := f.vault.Withdraw(f.owner, big.NewInt(60)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := f.ledger.balance(f.owner, "LP"); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("owner LP = %s, want 100 back", got)
	}
	staked, _ = f.vault.StakedBalance()
	if staked.Sign() != 0 {
		t.Fatalf("staked after withdraw = %s, want 0", staked)
	}
}

func TestDepositRequiresOwnerAndActivePool(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	f.ledger.fund(f.owner, "LP", 100)

	if err := f.vault.Deposit(testAddress(0x0B), big.NewInt(10), false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger deposit: %v, want ErrUnauthorized", err)
	}

	f.pool.Active = false
	if err := f.vault.Deposit(f.owner, big.NewInt(10), false); !errors.Is(err, ErrPoolInactive) {
		t.Fatalf("deposit into inactive pool: %v, want ErrPoolInactive", err)
	}
}

func TestWithdrawSurvivesDeactivation(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	f.ledger.fund(f.owner, "LP", 100)
	if err := f.vault.Deposit(f.owner, big.NewInt(100), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	f.pool.Active = false
	if err := f.vault.Withdraw(f.owner, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw after deactivation: %v", err)
	}
}

func TestGetRewardForwardsGaugeAndStream(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	f.ledger.fund(f.owner, "LP", 100)
	if err := f.vault.Deposit(f.owner, big.NewInt(100), false); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Stream 700 CRV over 700 seconds and let the period run out.
	funder := testAddress(0xF1)
	f.ledger.fund(funder, "CRV", 700)
	if err := f.rewards.AddReward(f.pool.RewardsAddress, "CRV", 700); err != nil {
		t.Fatalf("add reward: %v", err)
	}
	if err := f.rewards.NotifyRewardAmount(funder, f.pool.RewardsAddress, "CRV", big.NewInt(700)); err != nil {
		t.Fatalf("notify: %v", err)
	}
	*f.clock += 1_000

	// Gauge emissions are pending on the vault address.
	f.gauge.queueEmission(f.vault.Address(), "EXTRA", 50)

	paid, err := f.vault.GetReward(f.owner)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if paid["CRV"].Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("streamed = %s, want 700", paid["CRV"])
	}
	if paid["EXTRA"].Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("gauge emission = %s, want 50", paid["EXTRA"])
	}
	if got := f.ledger.balance(f.owner, "EXTRA"); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("owner EXTRA = %s, want 50", got)
	}
	if got := f.ledger.balance(f.vault.Address(), "EXTRA"); got.Sign() != 0 {
		t.Fatalf("vault must not retain emissions, has %s", got)
	}
}

func TestExecuteRecoversStrays(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	f.ledger.fund(f.vault.Address(), "DUST", 5)
	target := testAddress(0x0C)

	if err := f.vault.Execute(f.owner, target, "DUST", big.NewInt(5)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := f.ledger.balance(target, "DUST"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("target = %s, want 5", got)
	}

	f.pool.Active = false
	f.ledger.fund(f.vault.Address(), "DUST", 5)
	if err := f.vault.Execute(f.owner, target, "DUST", big.NewInt(5)); !errors.Is(err, ErrPoolInactive) {
		t.Fatalf("execute on inactive pool: %v, want ErrPoolInactive", err)
	}
}

func TestDepositBaseRefundsDust(t *testing.T) {
	f := newFixture(t, registry.VaultRebalance)
	f.ledger.fund(f.owner, "WETH", 100)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 9_000}

	if err := f.vault.DepositBase(f.owner, "WETH", big.NewInt(100), big.NewInt(1), conv); err != nil {
		t.Fatalf("deposit base: %v", err)
	}
	// 90% consumed, converted 1:1 and staked; the 10 WETH dust went back.
	staked, _ := f.vault.StakedBalance()
	if staked.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("staked = %s, want 90", staked)
	}
	if got := f.ledger.balance(f.owner, "WETH"); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("owner WETH = %s, want the 10 dust back", got)
	}
}

func TestDepositBaseSlippage(t *testing.T) {
	f := newFixture(t, registry.VaultRebalance)
	f.ledger.fund(f.owner, "WETH", 200)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 10_000}

	err := f.vault.DepositBase(f.owner, "WETH", big.NewInt(100), big.NewInt(101), conv)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("slippage: %v, want ErrSlippageExceeded", err)
	}
	// The refused quote must leave every balance where it was.
	if got := f.ledger.balance(f.owner, "WETH"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("owner WETH after refused deposit = %s, want 200", got)
	}
	if got := f.ledger.balance(f.vault.Address(), "WETH"); got.Sign() != 0 {
		t.Fatalf("vault WETH after refused deposit = %s, want 0", got)
	}
	staked, _ := f.vault.StakedBalance()
	if staked.Sign() != 0 {
		t.Fatalf("staked after refused deposit = %s, want 0", staked)
	}

	conv.failWith = errors.New("venue offline")
	err = f.vault.DepositBase(f.owner, "WETH", big.NewInt(100), big.NewInt(1), conv)
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("converter failure: %v, want ErrConversionFailed", err)
	}
	if got := f.ledger.balance(f.owner, "WETH"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("owner WETH after converter outage = %s, want 200", got)
	}
}

func TestWithdrawAsBaseSlippageKeepsPosition(t *testing.T) {
	f := newFixture(t, registry.VaultRebalance)
	f.ledger.fund(f.owner, "USD", 100)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 9_000}

	if err := f.vault.DepositStable(f.owner, big.NewInt(100)); err != nil {
		t.Fatalf("deposit stable: %v", err)
	}

	// 40 in quotes to 36 out; a 37 floor must refuse before unstaking
	// anything.
	_, err := f.vault.WithdrawAsBase(f.owner, "WETH", big.NewInt(40), big.NewInt(37), conv)
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("slippage: %v, want ErrSlippageExceeded", err)
	}
	staked, _ := f.vault.StakedBalance()
	if staked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("staked after refused withdrawal = %s, want 100", staked)
	}
	if got := f.rbGauge.BalanceOf(f.vault.Address()); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("gauge position = %s, want 100", got)
	}
	mirror, err := f.rewards.StakedBalance(f.pool.RewardsAddress, f.owner)
	if err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if mirror.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("reward mirror = %s, want 100", mirror)
	}
	if got := f.ledger.balance(f.owner, "WETH"); got.Sign() != 0 {
		t.Fatalf("owner WETH after refused withdrawal = %s, want 0", got)
	}

	// A converter outage is refused up front the same way.
	conv.failWith = errors.New("venue offline")
	_, err = f.vault.WithdrawAsBase(f.owner, "WETH", big.NewInt(40), big.NewInt(1), conv)
	if !errors.Is(err, ErrConversionFailed) {
		t.Fatalf("converter failure: %v, want ErrConversionFailed", err)
	}
	staked, _ = f.vault.StakedBalance()
	if staked.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("staked after outage = %s, want 100", staked)
	}
}

func TestWithdrawAsBase(t *testing.T) {
	f := newFixture(t, registry.VaultRebalance)
	f.ledger.fund(f.owner, "USD", 100)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 10_000}

	if err := f.vault.DepositStable(f.owner, big.NewInt(100)); err != nil {
		t.Fatalf("deposit stable: %v", err)
	}
	out, err := f.vault.WithdrawAsBase(f.owner, "WETH", big.NewInt(40), big.NewInt(1), conv)
	if err != nil {
		t.Fatalf("withdraw as base: %v", err)
	}
	if out.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("out = %s, want 40", out)
	}
	if got := f.ledger.balance(f.owner, "WETH"); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("owner WETH = %s, want 40", got)
	}
	staked, _ := f.vault.StakedBalance()
	if staked.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("staked = %s, want 60", staked)
	}
}

func TestWithdrawAsBaseEmptyVaultNoOp(t *testing.T) {
	f := newFixture(t, registry.VaultRebalance)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 10_000}

	out, err := f.vault.WithdrawAsBase(f.owner, "WETH", big.NewInt(40), big.NewInt(1), conv)
	if err != nil {
		t.Fatalf("empty withdraw: %v", err)
	}
	if out.Sign() != 0 {
		t.Fatalf("out = %s, want 0", out)
	}
}

func TestKindMismatch(t *testing.T) {
	f := newFixture(t, registry.VaultERC20)
	conv := &mockConverter{ledger: f.ledger, consumeBps: 10_000}

	if err := f.vault.DepositStable(f.owner, big.NewInt(10)); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("stable deposit on erc20 vault: %v, want ErrWrongKind", err)
	}
	if _, err := f.vault.WithdrawAsBase(f.owner, "WETH", big.NewInt(1), nil, conv); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("base withdraw on erc20 vault: %v, want ErrWrongKind", err)
	}
}
