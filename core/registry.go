package core

import (
	"math/big"
	"sync"

	"evregistry/core/events"
	"evregistry/core/state"
	"evregistry/native/bond"
	"evregistry/native/passport"
	"evregistry/native/roles"
	"evregistry/storage"
)

// Config carries the facade's policy knobs.
type Config struct {
	// CollateralFiat is the fiat-denominated minimum bond requirement.
	CollateralFiat string
	// RefundDepositOnRemoval zeroes a manufacturer's deposit when the role
	// is withdrawn instead of preserving the balance.
	RefundDepositOnRemoval bool
}

// Registry is the single entry point sequencing every operation across the
// role, bond, and passport engines. Each mutation runs against a staging
// overlay that commits only when the whole operation succeeds, so callers
// never observe partial effects. Events are buffered during the operation and
// forwarded to the configured sink after commit.
type Registry struct {
	mu      sync.RWMutex
	db      storage.Database
	oracle  bond.PriceOracle
	emitter events.Emitter
	cfg     Config
	nowFn   func() int64
}

func NewRegistry(db storage.Database, cfg Config) *Registry {
	return &Registry{
		db:      db,
		emitter: events.NoopEmitter{},
		cfg:     cfg,
	}
}

// SetOracle wires the price feed consumed by the bond ledger.
func (r *Registry) SetOracle(oracle bond.PriceOracle) {
	r.mu.Lock()
	r.oracle = oracle
	r.mu.Unlock()
}

// SetEmitter configures the external event sink. Nil restores the no-op sink.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	r.mu.Lock()
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
	r.mu.Unlock()
}

// SetNowFunc overrides the mint timestamp source, primarily for tests.
func (r *Registry) SetNowFunc(now func() int64) {
	r.mu.Lock()
	r.nowFn = now
	r.mu.Unlock()
}

// bufferEmitter collects events raised during an operation so they are only
// published once the overlay has committed.
type bufferEmitter struct {
	buffered []events.Event
}

func (b *bufferEmitter) Emit(evt events.Event) {
	b.buffered = append(b.buffered, evt)
}

// session wires the three engines to a shared state view for the duration of
// one operation.
type session struct {
	roles     *roles.Engine
	bond      *bond.Engine
	passports *passport.Engine
}

func (r *Registry) newSession(db storage.Database, emitter events.Emitter) *session {
	access := newStateAccess(state.NewManager(db))

	rolesEngine := roles.NewEngine()
	rolesEngine.SetState(access)
	rolesEngine.SetEmitter(emitter)

	bondEngine := bond.NewEngine()
	bondEngine.SetState(access)
	bondEngine.SetEmitter(emitter)
	bondEngine.SetOracle(r.oracle)
	bondEngine.SetCollateral(r.cfg.CollateralFiat)

	passportEngine := passport.NewEngine()
	passportEngine.SetState(access)
	passportEngine.SetEmitter(emitter)
	if r.nowFn != nil {
		passportEngine.SetNowFunc(r.nowFn)
	}

	return &session{roles: rolesEngine, bond: bondEngine, passports: passportEngine}
}

// write runs fn against a staging overlay and commits only on success. Events
// buffered by fn are forwarded to the sink after the commit lands.
func (r *Registry) write(fn func(s *session) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	overlay := storage.NewOverlay(r.db)
	buffer := &bufferEmitter{}
	sess := r.newSession(overlay, buffer)

	if err := fn(sess); err != nil {
		overlay.Discard()
		return err
	}
	if err := overlay.Commit(); err != nil {
		overlay.Discard()
		return err
	}
	for _, evt := range buffer.buffered {
		r.emitter.Emit(evt)
	}
	return nil
}

// read runs fn against the committed store under the shared read lock.
func (r *Registry) read(fn func(s *session) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.newSession(r.db, events.NoopEmitter{}))
}

// Bootstrap provisions the initial government principal. It can only run once.
func (r *Registry) Bootstrap(government [20]byte) error {
	return r.write(func(s *session) error {
		return s.roles.BootstrapGovernment(government)
	})
}

// --- Role operations ---

func (r *Registry) GrantRole(caller [20]byte, role string, principal [20]byte) error {
	return r.write(func(s *session) error {
		return s.roles.Grant(caller, role, principal)
	})
}

func (r *Registry) RevokeRole(caller [20]byte, role string, principal [20]byte) error {
	return r.write(func(s *session) error {
		return s.roles.Revoke(caller, role, principal)
	})
}

func (r *Registry) HasRole(role string, principal [20]byte) (bool, error) {
	var held bool
	err := r.read(func(s *session) error {
		var err error
		held, err = s.roles.HasRole(role, principal)
		return err
	})
	return held, err
}

func (r *Registry) RoleMembers(role string) ([][20]byte, error) {
	var members [][20]byte
	err := r.read(func(s *session) error {
		var err error
		members, err = s.roles.Members(role)
		return err
	})
	return members, err
}

func (r *Registry) AddManufacturer(caller, principal [20]byte) error {
	return r.write(func(s *session) error {
		return s.roles.AddManufacturer(caller, principal)
	})
}

// RemoveManufacturer withdraws the manufacturer role, resets the bond lock,
// and applies the removal deposit policy, all in one atomic step.
func (r *Registry) RemoveManufacturer(caller, principal [20]byte) error {
	return r.write(func(s *session) error {
		held, err := s.roles.HasRole(roles.RoleManufacturer, principal)
		if err != nil {
			return err
		}
		if !held {
			// Gate check and idempotent no-op live in the engine.
			return s.roles.RemoveManufacturer(caller, principal, false)
		}
		refunded, err := s.bond.ResetAccount(caller, principal, r.cfg.RefundDepositOnRemoval)
		if err != nil {
			return err
		}
		return s.roles.RemoveManufacturer(caller, principal, refunded.Sign() > 0)
	})
}

// --- Bond operations ---

func (r *Registry) MinimumDeposit() (*big.Int, error) {
	var minimum *big.Int
	err := r.read(func(s *session) error {
		var err error
		minimum, err = s.bond.MinimumDeposit()
		return err
	})
	return minimum, err
}

func (r *Registry) Deposit(caller [20]byte, amount *big.Int) error {
	return r.write(func(s *session) error {
		return s.bond.Deposit(caller, amount)
	})
}

func (r *Registry) LockDeposit(caller [20]byte) error {
	return r.write(func(s *session) error {
		return s.bond.Lock(caller)
	})
}

func (r *Registry) Penalize(caller, manufacturer [20]byte, amount *big.Int) (*big.Int, error) {
	var applied *big.Int
	err := r.write(func(s *session) error {
		var err error
		applied, err = s.bond.Penalize(caller, manufacturer, amount)
		return err
	})
	return applied, err
}

func (r *Registry) BondAccount(principal [20]byte) (*bond.Account, error) {
	var account *bond.Account
	err := r.read(func(s *session) error {
		var err error
		account, err = s.bond.Account(principal)
		return err
	})
	return account, err
}

// --- Passport operations ---

func (r *Registry) Mint(caller [20]byte, req passport.MintRequest) (*passport.Passport, error) {
	var minted *passport.Passport
	err := r.write(func(s *session) error {
		var err error
		minted, err = s.passports.Mint(caller, req)
		return err
	})
	return minted, err
}

func (r *Registry) MintBatch(caller [20]byte, reqs []passport.MintRequest) ([]*passport.Passport, error) {
	var minted []*passport.Passport
	err := r.write(func(s *session) error {
		var err error
		minted, err = s.passports.MintBatch(caller, reqs)
		return err
	})
	return minted, err
}

func (r *Registry) Transfer(caller, from, to [20]byte, tokenID string) error {
	return r.write(func(s *session) error {
		return s.passports.Transfer(caller, from, to, tokenID)
	})
}

func (r *Registry) UpdateSupplyChain(caller [20]byte, tokenID, info string) error {
	return r.write(func(s *session) error {
		return s.passports.UpdateSupplyChain(caller, tokenID, info)
	})
}

func (r *Registry) MarkRecycled(caller [20]byte, tokenID string) error {
	return r.write(func(s *session) error {
		return s.passports.MarkRecycled(caller, tokenID)
	})
}

func (r *Registry) MarkReturned(caller [20]byte, tokenID string) error {
	return r.write(func(s *session) error {
		return s.passports.MarkReturned(caller, tokenID)
	})
}

func (r *Registry) View(caller [20]byte, tokenID string) (*passport.Passport, error) {
	var record *passport.Passport
	err := r.read(func(s *session) error {
		var err error
		record, err = s.passports.View(caller, tokenID)
		return err
	})
	return record, err
}

func (r *Registry) OwnerOf(tokenID string) ([20]byte, error) {
	var owner [20]byte
	err := r.read(func(s *session) error {
		var err error
		owner, err = s.passports.OwnerOf(tokenID)
		return err
	})
	return owner, err
}

func (r *Registry) TokensOf(principal [20]byte) ([]string, error) {
	var tokens []string
	err := r.read(func(s *session) error {
		var err error
		tokens, err = s.passports.TokensOf(principal)
		return err
	})
	return tokens, err
}
