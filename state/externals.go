package state

import (
	"errors"
	"math/big"
	"sync"

	"liquidlock/crypto"
	"liquidlock/native/gauge"
)

// The types below stand in for the external contracts the protocol integrates
// with: the vote-escrow, its fee distributor, the staking gauges and the asset
// converter. They are deterministic so simulation runs and integration tests
// reproduce exactly.

var (
	ErrNoPosition        = errors.New("state: no escrow position for holder")
	ErrPositionExists    = errors.New("state: escrow position already open")
	ErrInsufficientFunds = errors.New("state: balance below requested amount")
)

// Escrow simulates the vote-escrow contract: one time-locked position per
// holder. It also serves as its own wallet whitelist.
type Escrow struct {
	mu        sync.Mutex
	amounts   map[string]*big.Int
	unlocks   map[string]uint64
	approved  map[string]bool
	openGates bool
}

// NewEscrow constructs an escrow that rejects every wallet until approved.
func NewEscrow() *Escrow {
	return &Escrow{
		amounts:  make(map[string]*big.Int),
		unlocks:  make(map[string]uint64),
		approved: make(map[string]bool),
	}
}

// Approve whitelists a wallet for escrow interaction.
func (e *Escrow) Approve(addr crypto.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.approved[addrKey(addr)] = true
}

// AllowAll disables the whitelist entirely.
func (e *Escrow) AllowAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openGates = true
}

// Check implements the wallet whitelist capability.
func (e *Escrow) Check(addr crypto.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openGates || e.approved[addrKey(addr)]
}

// Lock opens a new position for the holder.
func (e *Escrow) Lock(holder crypto.Address, amount *big.Int, until uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := addrKey(holder)
	if existing := e.amounts[key]; existing != nil && existing.Sign() > 0 {
		return ErrPositionExists
	}
	e.amounts[key] = new(big.Int).Set(amount)
	e.unlocks[key] = until
	return nil
}

// ExtendLock folds additional tokens into the holder's open position.
func (e *Escrow) ExtendLock(holder crypto.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := addrKey(holder)
	existing := e.amounts[key]
	if existing == nil || existing.Sign() == 0 {
		return ErrNoPosition
	}
	e.amounts[key] = new(big.Int).Add(existing, amount)
	return nil
}

// LockedBalance reports the holder's position.
func (e *Escrow) LockedBalance(holder crypto.Address) (*big.Int, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := addrKey(holder)
	amount := e.amounts[key]
	if amount == nil {
		return big.NewInt(0), 0
	}
	return new(big.Int).Set(amount), e.unlocks[key]
}

// Checkpoint is a no-op in the simulation.
func (e *Escrow) Checkpoint() error { return nil }

// FeeDistributor simulates the escrow's revenue share. Accrued amounts sit
// until claimed, at which point they are minted onto the holder's ledger
// account.
type FeeDistributor struct {
	mu      sync.Mutex
	ledger  *Ledger
	token   string
	pending map[string]*big.Int
}

// NewFeeDistributor constructs a distributor paying the given token.
func NewFeeDistributor(ledger *Ledger, token string) *FeeDistributor {
	return &FeeDistributor{ledger: ledger, token: token, pending: make(map[string]*big.Int)}
}

// Accrue queues fee revenue for the holder.
func (f *FeeDistributor) Accrue(holder crypto.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := addrKey(holder)
	existing := f.pending[key]
	if existing == nil {
		existing = big.NewInt(0)
	}
	f.pending[key] = new(big.Int).Add(existing, amount)
}

// Claim settles the holder's accrued fees onto their ledger account.
func (f *FeeDistributor) Claim(holder crypto.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := addrKey(holder)
	amount := f.pending[key]
	if amount == nil || amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	delete(f.pending, key)
	f.ledger.Mint(holder, f.token, amount)
	return new(big.Int).Set(amount), nil
}

// GaugeSim simulates a plain staking gauge with working-balance boost
// accounting. The working factor approximates the veToken boost the proxy
// position earns and applies uniformly to all stakers.
type GaugeSim struct {
	mu           sync.Mutex
	ledger       *Ledger
	stakingToken string
	balances     map[string]*big.Int
	total        *big.Int
	workingBps   uint64
	tokens       []string
	rewardData   map[string]gauge.RewardData
	pending      map[string]map[string]*big.Int
}

// NewGaugeSim constructs a gauge staking the given token with a neutral
// working factor.
func NewGaugeSim(ledger *Ledger, stakingToken string) *GaugeSim {
	return &GaugeSim{
		ledger:       ledger,
		stakingToken: stakingToken,
		balances:     make(map[string]*big.Int),
		total:        big.NewInt(0),
		workingBps:   10_000,
		rewardData:   make(map[string]gauge.RewardData),
		pending:      make(map[string]map[string]*big.Int),
	}
}

// SetWorkingFactor configures the boost applied to working balances, in basis
// points of the raw balance. 25_000 models the full 2.5x veToken boost.
func (g *GaugeSim) SetWorkingFactor(bps uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.workingBps = bps
}

// SetRewardData publishes a streaming schedule for the token.
func (g *GaugeSim) SetRewardData(token string, rate *big.Int, periodFinish uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rewardData[token]; !ok {
		g.tokens = append(g.tokens, token)
	}
	g.rewardData[token] = gauge.RewardData{Rate: new(big.Int).Set(rate), PeriodFinish: periodFinish}
}

// FundEmission queues claimable emissions for the account.
func (g *GaugeSim) FundEmission(account crypto.Address, token string, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rewardData[token]; !ok {
		g.tokens = append(g.tokens, token)
		g.rewardData[token] = gauge.RewardData{Rate: big.NewInt(0)}
	}
	key := addrKey(account)
	byToken := g.pending[key]
	if byToken == nil {
		byToken = make(map[string]*big.Int)
		g.pending[key] = byToken
	}
	existing := byToken[token]
	if existing == nil {
		existing = big.NewInt(0)
	}
	byToken[token] = new(big.Int).Add(existing, amount)
}

func (g *GaugeSim) StakingToken() string { return g.stakingToken }

func (g *GaugeSim) BalanceOf(account crypto.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	bal := g.balances[addrKey(account)]
	if bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (g *GaugeSim) TotalSupply() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.total)
}

func (g *GaugeSim) WorkingBalanceOf(account crypto.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	bal := g.balances[addrKey(account)]
	if bal == nil {
		return big.NewInt(0)
	}
	working := new(big.Int).Mul(bal, new(big.Int).SetUint64(g.workingBps))
	return working.Quo(working, big.NewInt(10_000))
}

func (g *GaugeSim) SharedBalanceOf(account crypto.Address) *big.Int {
	return g.BalanceOf(account)
}

func (g *GaugeSim) ActiveRewardTokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.tokens))
	copy(out, g.tokens)
	return out
}

func (g *GaugeSim) RewardData(token string) (gauge.RewardData, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rd, ok := g.rewardData[token]
	if !ok {
		return gauge.RewardData{}, false
	}
	return gauge.RewardData{Rate: new(big.Int).Set(rd.Rate), PeriodFinish: rd.PeriodFinish}, true
}

func (g *GaugeSim) Deposit(account crypto.Address, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	bal := g.balances[key]
	if bal == nil {
		bal = big.NewInt(0)
	}
	g.balances[key] = new(big.Int).Add(bal, amount)
	g.total = new(big.Int).Add(g.total, amount)
	return nil
}

func (g *GaugeSim) Withdraw(account crypto.Address, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	bal := g.balances[key]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	g.balances[key] = new(big.Int).Sub(bal, amount)
	g.total = new(big.Int).Sub(g.total, amount)
	return nil
}

func (g *GaugeSim) Claim(account crypto.Address) (map[string]*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	paid := make(map[string]*big.Int)
	for token, amount := range g.pending[key] {
		if amount.Sign() == 0 {
			continue
		}
		g.ledger.Mint(account, token, amount)
		paid[token] = new(big.Int).Set(amount)
	}
	delete(g.pending, key)
	return paid, nil
}

func (g *GaugeSim) DepositReward(token string, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rd, ok := g.rewardData[token]
	if !ok {
		g.tokens = append(g.tokens, token)
		rd = gauge.RewardData{Rate: big.NewInt(0)}
	}
	g.rewardData[token] = rd
	return nil
}

// RebalanceGaugeSim simulates a rebalance-pool gauge. Boost ratios are
// published per account rather than derived from working balances.
type RebalanceGaugeSim struct {
	mu          sync.Mutex
	ledger      *Ledger
	asset       string
	balances    map[string]*big.Int
	total       *big.Int
	boostRatios map[string]*big.Int
	tokens      []string
	rewardData  map[string]gauge.RewardData
	pending     map[string]map[string]*big.Int
}

// NewRebalanceGaugeSim constructs a rebalance gauge accepting the given asset.
func NewRebalanceGaugeSim(ledger *Ledger, asset string) *RebalanceGaugeSim {
	return &RebalanceGaugeSim{
		ledger:      ledger,
		asset:       asset,
		balances:    make(map[string]*big.Int),
		total:       big.NewInt(0),
		boostRatios: make(map[string]*big.Int),
		rewardData:  make(map[string]gauge.RewardData),
		pending:     make(map[string]map[string]*big.Int),
	}
}

// SetBoostRatio publishes the ray-scaled boost ratio for the account.
func (g *RebalanceGaugeSim) SetBoostRatio(account crypto.Address, ratio *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.boostRatios[addrKey(account)] = new(big.Int).Set(ratio)
}

// SetRewardData publishes a streaming schedule for the token.
func (g *RebalanceGaugeSim) SetRewardData(token string, rate *big.Int, periodFinish uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rewardData[token]; !ok {
		g.tokens = append(g.tokens, token)
	}
	g.rewardData[token] = gauge.RewardData{Rate: new(big.Int).Set(rate), PeriodFinish: periodFinish}
}

// FundEmission queues claimable emissions for the account.
func (g *RebalanceGaugeSim) FundEmission(account crypto.Address, token string, amount *big.Int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rewardData[token]; !ok {
		g.tokens = append(g.tokens, token)
		g.rewardData[token] = gauge.RewardData{Rate: big.NewInt(0)}
	}
	key := addrKey(account)
	byToken := g.pending[key]
	if byToken == nil {
		byToken = make(map[string]*big.Int)
		g.pending[key] = byToken
	}
	existing := byToken[token]
	if existing == nil {
		existing = big.NewInt(0)
	}
	byToken[token] = new(big.Int).Add(existing, amount)
}

func (g *RebalanceGaugeSim) Asset() string { return g.asset }

func (g *RebalanceGaugeSim) BalanceOf(account crypto.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	bal := g.balances[addrKey(account)]
	if bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

func (g *RebalanceGaugeSim) TotalSupply() *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return new(big.Int).Set(g.total)
}

func (g *RebalanceGaugeSim) BoostRatioOf(account crypto.Address) *big.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	ratio := g.boostRatios[addrKey(account)]
	if ratio == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(ratio)
}

func (g *RebalanceGaugeSim) ActiveRewardTokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.tokens))
	copy(out, g.tokens)
	return out
}

func (g *RebalanceGaugeSim) RewardData(token string) (gauge.RewardData, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rd, ok := g.rewardData[token]
	if !ok {
		return gauge.RewardData{}, false
	}
	return gauge.RewardData{Rate: new(big.Int).Set(rd.Rate), PeriodFinish: rd.PeriodFinish}, true
}

func (g *RebalanceGaugeSim) Deposit(account crypto.Address, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	bal := g.balances[key]
	if bal == nil {
		bal = big.NewInt(0)
	}
	g.balances[key] = new(big.Int).Add(bal, amount)
	g.total = new(big.Int).Add(g.total, amount)
	return nil
}

func (g *RebalanceGaugeSim) Withdraw(account crypto.Address, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	bal := g.balances[key]
	if bal == nil || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	g.balances[key] = new(big.Int).Sub(bal, amount)
	g.total = new(big.Int).Sub(g.total, amount)
	return nil
}

func (g *RebalanceGaugeSim) Claim(account crypto.Address) (map[string]*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := addrKey(account)
	paid := make(map[string]*big.Int)
	for token, amount := range g.pending[key] {
		if amount.Sign() == 0 {
			continue
		}
		g.ledger.Mint(account, token, amount)
		paid[token] = new(big.Int).Set(amount)
	}
	delete(g.pending, key)
	return paid, nil
}

func (g *RebalanceGaugeSim) DepositReward(token string, amount *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rd, ok := g.rewardData[token]
	if !ok {
		g.tokens = append(g.tokens, token)
		rd = gauge.RewardData{Rate: big.NewInt(0)}
	}
	g.rewardData[token] = rd
	return nil
}

// Converter simulates a fixed-rate swap venue operating directly on ledger
// balances. Rates are configured per (from, to) pair as a rational; the
// consume fraction models venues that cannot use the full input.
type Converter struct {
	mu         sync.Mutex
	ledger     *Ledger
	rates      map[string]struct{ num, den *big.Int }
	consumeBps map[string]uint64
}

// NewConverter constructs a converter with no routes.
func NewConverter(ledger *Ledger) *Converter {
	return &Converter{
		ledger:     ledger,
		rates:      make(map[string]struct{ num, den *big.Int }),
		consumeBps: make(map[string]uint64),
	}
}

func routeKey(from, to string) string { return from + "->" + to }

// SetRate configures the output per input for a route as num/den.
func (c *Converter) SetRate(from, to string, num, den int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[routeKey(from, to)] = struct{ num, den *big.Int }{big.NewInt(num), big.NewInt(den)}
	if _, ok := c.consumeBps[routeKey(from, to)]; !ok {
		c.consumeBps[routeKey(from, to)] = 10_000
	}
}

// SetConsumeFraction configures how much of the input the route actually
// consumes, in basis points. The remainder is left on the holder for the
// caller to refund.
func (c *Converter) SetConsumeFraction(from, to string, bps uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumeBps[routeKey(from, to)] = bps
}

func (c *Converter) price(from, to string, amount *big.Int) (*big.Int, *big.Int, error) {
	c.mu.Lock()
	rate, ok := c.rates[routeKey(from, to)]
	consume := c.consumeBps[routeKey(from, to)]
	c.mu.Unlock()
	if !ok {
		return nil, nil, errors.New("state: no conversion route")
	}
	consumed := new(big.Int).Mul(amount, new(big.Int).SetUint64(consume))
	consumed.Quo(consumed, big.NewInt(10_000))
	out := new(big.Int).Mul(consumed, rate.num)
	out.Quo(out, rate.den)
	return out, consumed, nil
}

// Quote prices a conversion without executing it.
func (c *Converter) Quote(from, to string, amount *big.Int) (*big.Int, error) {
	out, _, err := c.price(from, to, amount)
	return out, err
}

// Convert swaps on the holder's ledger account, enforcing the minimum output.
func (c *Converter) Convert(holder crypto.Address, from, to string, amount, minOut *big.Int) (*big.Int, *big.Int, error) {
	out, consumed, err := c.price(from, to, amount)
	if err != nil {
		return nil, nil, err
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, nil, gauge.ErrSlippage
	}

	acc, err := c.ledger.GetAccount(holder)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil || acc.Balance(from).Cmp(consumed) < 0 {
		return nil, nil, ErrInsufficientFunds
	}
	acc.SetBalance(from, new(big.Int).Sub(acc.Balance(from), consumed))
	acc.SetBalance(to, new(big.Int).Add(acc.Balance(to), out))
	if err := c.ledger.PutAccount(holder, acc); err != nil {
		return nil, nil, err
	}
	return out, consumed, nil
}
