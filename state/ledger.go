// Package state provides the in-memory ledger backing every boost engine, plus
// deterministic stand-ins for the external escrow, fee distributor and gauges.
package state

import (
	"fmt"
	"math/big"
	"sync"

	"liquidlock/core/types"
	"liquidlock/crypto"
	"liquidlock/native/registry"
	"liquidlock/native/rewards"
)

// Ledger is a process-local key/value store satisfying the persistence
// interfaces of every engine. All accessors copy on the way in and out so the
// engines never alias stored records.
type Ledger struct {
	mu sync.RWMutex

	accounts    map[string]*types.Account
	supplies    map[string]*big.Int
	pendingLock *big.Int

	pools  []*registry.Pool
	vaults map[string]*registry.VaultRecord

	vaultBalances map[string]*big.Int

	rewardStates map[string]map[string]*rewards.RewardState
	rewardTokens map[string][]string
	userRewards  map[string]*rewards.UserRewardState
	stakes       map[string]*big.Int
	totalStaked  map[string]*big.Int
}

// NewLedger constructs an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts:      make(map[string]*types.Account),
		supplies:      make(map[string]*big.Int),
		vaults:        make(map[string]*registry.VaultRecord),
		vaultBalances: make(map[string]*big.Int),
		rewardStates:  make(map[string]map[string]*rewards.RewardState),
		rewardTokens:  make(map[string][]string),
		userRewards:   make(map[string]*rewards.UserRewardState),
		stakes:        make(map[string]*big.Int),
		totalStaked:   make(map[string]*big.Int),
	}
}

func addrKey(addr crypto.Address) string {
	return string(addr.Bytes())
}

func vaultKey(poolID uint64, owner crypto.Address) string {
	return fmt.Sprintf("%d/%s", poolID, addrKey(owner))
}

func rewardKey(distributor crypto.Address, token string, account crypto.Address) string {
	return fmt.Sprintf("%s/%s/%s", addrKey(distributor), token, addrKey(account))
}

func stakeKey(distributor, account crypto.Address) string {
	return fmt.Sprintf("%s/%s", addrKey(distributor), addrKey(account))
}

func cloneAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return nil
	}
	clone := types.NewAccount()
	clone.Nonce = acc.Nonce
	for token, amount := range acc.Balances {
		clone.Balances[token] = new(big.Int).Set(amount)
	}
	return clone
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneRewardState(s *rewards.RewardState) *rewards.RewardState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.RewardRate = cloneInt(s.RewardRate)
	clone.RewardPerTokenStored = cloneInt(s.RewardPerTokenStored)
	return &clone
}

func cloneUserReward(s *rewards.UserRewardState) *rewards.UserRewardState {
	if s == nil {
		return nil
	}
	return &rewards.UserRewardState{
		RewardPerTokenPaid: cloneInt(s.RewardPerTokenPaid),
		Accrued:            cloneInt(s.Accrued),
	}
}

// --- accounts and token supplies ---

func (l *Ledger) GetAccount(addr crypto.Address) (*types.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAccount(l.accounts[addrKey(addr)]), nil
}

func (l *Ledger) PutAccount(addr crypto.Address, account *types.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[addrKey(addr)] = cloneAccount(account)
	return nil
}

func (l *Ledger) GetTokenSupply(token string) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneInt(l.supplies[token]), nil
}

func (l *Ledger) PutTokenSupply(token string, supply *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supplies[token] = cloneInt(supply)
	return nil
}

// --- staged lock ---

func (l *Ledger) GetPendingLock() (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneInt(l.pendingLock), nil
}

func (l *Ledger) PutPendingLock(amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingLock = cloneInt(amount)
	return nil
}

// --- pool catalogue ---

func (l *Ledger) PoolCount() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.pools)), nil
}

func (l *Ledger) GetPool(id uint64) (*registry.Pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id >= uint64(len(l.pools)) {
		return nil, nil
	}
	return l.pools[id].Clone(), nil
}

func (l *Ledger) PutPool(pool *registry.Pool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pool.ID == uint64(len(l.pools)) {
		l.pools = append(l.pools, pool.Clone())
		return nil
	}
	if pool.ID > uint64(len(l.pools)) {
		return fmt.Errorf("state: pool id %d is not dense", pool.ID)
	}
	l.pools[pool.ID] = pool.Clone()
	return nil
}

func (l *Ledger) GetVault(poolID uint64, owner crypto.Address) (*registry.VaultRecord, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	record, ok := l.vaults[vaultKey(poolID, owner)]
	if !ok {
		return nil, false, nil
	}
	clone := *record
	return &clone, true, nil
}

func (l *Ledger) PutVault(record *registry.VaultRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *record
	l.vaults[vaultKey(record.PoolID, record.Owner)] = &clone
	return nil
}

// --- vault balances ---

func (l *Ledger) GetVaultBalance(vault crypto.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneInt(l.vaultBalances[addrKey(vault)]), nil
}

func (l *Ledger) PutVaultBalance(vault crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vaultBalances[addrKey(vault)] = cloneInt(amount)
	return nil
}

// --- reward streams ---

func (l *Ledger) GetRewardState(distributor crypto.Address, token string) (*rewards.RewardState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneRewardState(l.rewardStates[addrKey(distributor)][token]), nil
}

func (l *Ledger) PutRewardState(distributor crypto.Address, state *rewards.RewardState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := addrKey(distributor)
	byToken, ok := l.rewardStates[key]
	if !ok {
		byToken = make(map[string]*rewards.RewardState)
		l.rewardStates[key] = byToken
	}
	if _, exists := byToken[state.Token]; !exists {
		l.rewardTokens[key] = append(l.rewardTokens[key], state.Token)
	}
	byToken[state.Token] = cloneRewardState(state)
	return nil
}

// RewardTokens reports the distributor's configured tokens in registration
// order, which keeps payouts deterministic.
func (l *Ledger) RewardTokens(distributor crypto.Address) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tokens := l.rewardTokens[addrKey(distributor)]
	out := make([]string, len(tokens))
	copy(out, tokens)
	return out, nil
}

func (l *Ledger) GetUserReward(distributor crypto.Address, token string, account crypto.Address) (*rewards.UserRewardState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneUserReward(l.userRewards[rewardKey(distributor, token, account)]), nil
}

func (l *Ledger) PutUserReward(distributor crypto.Address, token string, account crypto.Address, state *rewards.UserRewardState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userRewards[rewardKey(distributor, token, account)] = cloneUserReward(state)
	return nil
}

func (l *Ledger) GetStake(distributor, account crypto.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneInt(l.stakes[stakeKey(distributor, account)]), nil
}

func (l *Ledger) PutStake(distributor, account crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stakes[stakeKey(distributor, account)] = cloneInt(amount)
	return nil
}

func (l *Ledger) GetTotalStaked(distributor crypto.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneInt(l.totalStaked[addrKey(distributor)]), nil
}

func (l *Ledger) PutTotalStaked(distributor crypto.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalStaked[addrKey(distributor)] = cloneInt(amount)
	return nil
}

// Mint credits a balance outside any engine flow; used by genesis wiring and
// tests to fund accounts.
func (l *Ledger) Mint(addr crypto.Address, token string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accounts[addrKey(addr)]
	if acc == nil {
		acc = types.NewAccount()
		l.accounts[addrKey(addr)] = acc
	}
	acc.SetBalance(token, new(big.Int).Add(acc.Balance(token), amount))
	supply := l.supplies[token]
	if supply == nil {
		supply = big.NewInt(0)
	}
	l.supplies[token] = new(big.Int).Add(supply, amount)
}

// BalanceOf reads a balance without going through an engine.
func (l *Ledger) BalanceOf(addr crypto.Address, token string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc := l.accounts[addrKey(addr)]
	if acc == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance(token))
}
