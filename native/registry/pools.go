package registry

import (
	"encoding/binary"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"liquidlock/core/events"
	"liquidlock/core/types"
	"liquidlock/crypto"
	nativecommon "liquidlock/native/common"
)

var (
	errNilState = errors.New("pool registry: state not configured")

	ErrUnauthorized           = errors.New("pool registry: caller is not the operator")
	ErrDuplicateStakingTarget = errors.New("pool registry: active pool already targets gauge")
	ErrPoolNotFound           = errors.New("pool registry: pool not found")
	ErrPoolInactive           = errors.New("pool registry: pool deactivated")
	ErrVaultExists            = errors.New("pool registry: vault already exists for owner")
	ErrInvalidVaultKind       = errors.New("pool registry: unknown vault implementation")
)

const moduleName = "registry"

type engineState interface {
	PoolCount() (uint64, error)
	GetPool(id uint64) (*Pool, error)
	PutPool(pool *Pool) error
	GetVault(poolID uint64, owner crypto.Address) (*VaultRecord, bool, error)
	PutVault(record *VaultRecord) error
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Engine is the authoritative pool catalogue. All mutations are gated on the
// installed operator, which the booster claims when it takes over the voter
// proxy.
type Engine struct {
	state    engineState
	operator crypto.Address
	emitter  events.Emitter
	pauses   nativecommon.PauseView
}

// NewEngine constructs a registry engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

// SetOperator installs the account allowed to mutate the catalogue.
func (e *Engine) SetOperator(operator crypto.Address) {
	if e == nil {
		return
	}
	e.operator = operator
}

// Operator returns the currently installed operator.
func (e *Engine) Operator() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.operator
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: evt})
}

func (e *Engine) requireOperator(caller crypto.Address) error {
	if e.operator.IsZero() || !caller.Equal(e.operator) {
		return ErrUnauthorized
	}
	return nil
}

// AddPool appends a new active pool targeting the supplied gauge and derives
// a fresh rewards-distribution address for it. Fails when the caller is not
// the operator or an active pool already targets the gauge.
func (e *Engine) AddPool(caller crypto.Address, kind VaultKind, stakingTarget crypto.Address, stakingToken string) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.requireOperator(caller); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, ErrInvalidVaultKind
	}
	count, err := e.state.PoolCount()
	if err != nil {
		return 0, err
	}
	for id := uint64(0); id < count; id++ {
		pool, err := e.state.GetPool(id)
		if err != nil {
			return 0, err
		}
		if pool != nil && pool.Active && pool.StakingAddress.Equal(stakingTarget) {
			return 0, ErrDuplicateStakingTarget
		}
	}
	pool := &Pool{
		ID:             count,
		StakingAddress: stakingTarget,
		StakingToken:   stakingToken,
		RewardsAddress: deriveRewardsAddress(count, stakingTarget),
		Implementation: kind,
		Active:         true,
	}
	if err := e.state.PutPool(pool); err != nil {
		return 0, err
	}
	var staking, rewards [20]byte
	copy(staking[:], stakingTarget.Bytes())
	copy(rewards[:], pool.RewardsAddress.Bytes())
	e.emit(events.PoolAdded{
		PoolID:         pool.ID,
		StakingAddress: staking,
		StakingToken:   stakingToken,
		RewardsAddress: rewards,
	}.Event())
	return pool.ID, nil
}

// DeactivatePool flips a pool inactive. The transition is idempotent and
// leaves existing vault balances untouched.
func (e *Engine) DeactivatePool(caller crypto.Address, id uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return err
	}
	if !pool.Active {
		return nil
	}
	pool.Active = false
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(events.PoolDeactivated{PoolID: id}.Event())
	return nil
}

// CreateVault registers the one-and-only vault for the (pool, owner) pair and
// returns its derived address. A duplicate request fails with ErrVaultExists
// even after the pool has been deactivated; the existence check deliberately
// precedes the active check so accidental re-initialisation stays auditable.
func (e *Engine) CreateVault(caller crypto.Address, poolID uint64, owner crypto.Address) (crypto.Address, error) {
	if e == nil || e.state == nil {
		return crypto.Address{}, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return crypto.Address{}, err
	}
	if err := e.requireOperator(caller); err != nil {
		return crypto.Address{}, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return crypto.Address{}, err
	}
	if _, exists, err := e.state.GetVault(poolID, owner); err != nil {
		return crypto.Address{}, err
	} else if exists {
		return crypto.Address{}, ErrVaultExists
	}
	if !pool.Active {
		return crypto.Address{}, ErrPoolInactive
	}
	record := &VaultRecord{
		PoolID:         poolID,
		Owner:          owner,
		Address:        deriveVaultAddress(pool.Implementation, poolID, owner),
		Implementation: pool.Implementation,
	}
	if err := e.state.PutVault(record); err != nil {
		return crypto.Address{}, err
	}
	var ownerBytes, vaultBytes [20]byte
	copy(ownerBytes[:], owner.Bytes())
	copy(vaultBytes[:], record.Address.Bytes())
	e.emit(events.VaultCreated{PoolID: poolID, Owner: ownerBytes, Vault: vaultBytes}.Event())
	return record.Address, nil
}

// Pool returns a copy of the catalogue entry for the given id.
func (e *Engine) Pool(id uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(id)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// PoolCount reports how many pools the catalogue holds.
func (e *Engine) PoolCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.PoolCount()
}

// VaultFor resolves the vault record for a (pool, owner) pair.
func (e *Engine) VaultFor(poolID uint64, owner crypto.Address) (*VaultRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.GetVault(poolID, owner)
}

func (e *Engine) loadPool(id uint64) (*Pool, error) {
	count, err := e.state.PoolCount()
	if err != nil {
		return nil, err
	}
	if id >= count {
		return nil, ErrPoolNotFound
	}
	pool, err := e.state.GetPool(id)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func deriveRewardsAddress(poolID uint64, stakingTarget crypto.Address) crypto.Address {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], poolID)
	hash := ethcrypto.Keccak256Hash([]byte("rewards"), idBytes[:], stakingTarget.Bytes())
	return crypto.NewAddress(crypto.ModulePrefix, hash.Bytes()[12:])
}

func deriveVaultAddress(kind VaultKind, poolID uint64, owner crypto.Address) crypto.Address {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], poolID)
	hash := ethcrypto.Keccak256Hash([]byte("vault"), []byte{byte(kind)}, idBytes[:], owner.Bytes())
	return crypto.NewAddress(crypto.ModulePrefix, hash.Bytes()[12:])
}
