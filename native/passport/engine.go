package passport

import (
	"fmt"
	"time"

	"evregistry/core/events"
	"evregistry/native/roles"
)

// State is the narrow view of registry storage the passport engine needs.
// BondLocked reads the compliance gate owned by the bond ledger.
type State interface {
	HasRole(role string, addr [20]byte) (bool, error)
	BondLocked(addr [20]byte) (bool, error)
	PassportGet(tokenID string) (*Passport, bool, error)
	PassportPut(p *Passport) error
	OwnerTokenAdd(owner [20]byte, tokenID string) error
	OwnerTokenRemove(owner [20]byte, tokenID string) error
	OwnerTokens(owner [20]byte) ([]string, error)
}

// Engine owns the per-asset lifecycle: mint by a locked manufacturer,
// owner-authorized transfer, and role-gated field mutation. Records are never
// deleted and the recycled flag only ever moves false to true.
type Engine struct {
	state   State
	emitter events.Emitter
	nowFn   func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the registry state.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the sink for passport events. Nil restores the no-op
// emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the timestamp source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) requireRole(role string, caller [20]byte) error {
	ok, err := e.state.HasRole(role, caller)
	if err != nil {
		return fmt.Errorf("passport: check role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: requires %s", ErrUnauthorized, role)
	}
	return nil
}

func (e *Engine) requireLockedManufacturer(caller [20]byte) error {
	if err := e.requireRole(roles.RoleManufacturer, caller); err != nil {
		return err
	}
	locked, err := e.state.BondLocked(caller)
	if err != nil {
		return fmt.Errorf("passport: check bond lock: %w", err)
	}
	if !locked {
		return ErrDepositNotLocked
	}
	return nil
}

func validateRequest(req MintRequest) error {
	if req.TokenID == "" {
		return fmt.Errorf("%w: token id required", ErrInvalidArgument)
	}
	return nil
}

// Mint creates the passport for a single token. The caller must be a
// manufacturer whose bond is locked, and the token identifier must be unused.
func (e *Engine) Mint(caller [20]byte, req MintRequest) (*Passport, error) {
	if err := e.requireLockedManufacturer(caller); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.PassportGet(req.TokenID); err != nil {
		return nil, fmt.Errorf("passport: load token: %w", err)
	} else if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, req.TokenID)
	}
	record, err := e.create(caller, req)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// MintBatch creates passports for every request or none. The batch is
// validated in full, including duplicates within the batch itself, before the
// first record is written; events are emitted per token in request order.
func (e *Engine) MintBatch(caller [20]byte, reqs []MintRequest) ([]*Passport, error) {
	if err := e.requireLockedManufacturer(caller); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidArgument)
	}
	seen := make(map[string]struct{}, len(reqs))
	for _, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, err
		}
		if _, dup := seen[req.TokenID]; dup {
			return nil, fmt.Errorf("%w: %s duplicated in batch", ErrAlreadyExists, req.TokenID)
		}
		seen[req.TokenID] = struct{}{}
		if _, exists, err := e.state.PassportGet(req.TokenID); err != nil {
			return nil, fmt.Errorf("passport: load token: %w", err)
		} else if exists {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, req.TokenID)
		}
	}
	minted := make([]*Passport, 0, len(reqs))
	for _, req := range reqs {
		record, err := e.create(caller, req)
		if err != nil {
			return nil, err
		}
		minted = append(minted, record.Clone())
	}
	return minted, nil
}

func (e *Engine) create(caller [20]byte, req MintRequest) (*Passport, error) {
	record := &Passport{
		TokenID:           req.TokenID,
		Owner:             caller,
		BatteryModel:      req.BatteryModel,
		BatteryType:       req.BatteryType,
		ProductName:       req.ProductName,
		ManufacturingSite: req.ManufacturingSite,
		OffChainDataHash:  req.OffChainDataHash,
		MintedAt:          uint64(e.nowFn()),
	}
	if err := e.state.PassportPut(record); err != nil {
		return nil, fmt.Errorf("passport: store token: %w", err)
	}
	if err := e.state.OwnerTokenAdd(caller, record.TokenID); err != nil {
		return nil, fmt.Errorf("passport: index token: %w", err)
	}
	e.emitter.Emit(events.PassportMinted{
		TokenID:      record.TokenID,
		Manufacturer: caller,
		BatteryModel: record.BatteryModel,
		BatteryType:  record.BatteryType,
		ProductName:  record.ProductName,
		MintedAt:     int64(record.MintedAt),
	})
	return record, nil
}

// Transfer moves custody of tokenID from its current owner to another
// principal. The caller must be the stated sender and the sender must own the
// token; no role is required to receive.
func (e *Engine) Transfer(caller, from, to [20]byte, tokenID string) error {
	if tokenID == "" {
		return fmt.Errorf("%w: token id required", ErrInvalidArgument)
	}
	if to == ([20]byte{}) {
		return fmt.Errorf("%w: recipient required", ErrInvalidArgument)
	}
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	if caller != from || record.Owner != from {
		return fmt.Errorf("%w: only the owner may transfer", ErrUnauthorized)
	}
	record.Owner = to
	if err := e.state.PassportPut(record); err != nil {
		return fmt.Errorf("passport: store token: %w", err)
	}
	if err := e.state.OwnerTokenRemove(from, tokenID); err != nil {
		return fmt.Errorf("passport: reindex token: %w", err)
	}
	if err := e.state.OwnerTokenAdd(to, tokenID); err != nil {
		return fmt.Errorf("passport: reindex token: %w", err)
	}
	e.emitter.Emit(events.PassportTransferred{TokenID: tokenID, From: from, To: to})
	return nil
}

// UpdateSupplyChain overwrites the supply chain annotation. A supplier
// capability, deliberately independent of ownership.
func (e *Engine) UpdateSupplyChain(caller [20]byte, tokenID, info string) error {
	if err := e.requireRole(roles.RoleSupplier, caller); err != nil {
		return err
	}
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	record.SupplyChainInfo = info
	if err := e.state.PassportPut(record); err != nil {
		return fmt.Errorf("passport: store token: %w", err)
	}
	e.emitter.Emit(events.SupplyChainUpdated{TokenID: tokenID, Supplier: caller, Info: info})
	return nil
}

// MarkRecycled flags the token as recycled. Marking an already-recycled
// token succeeds silently without a second event.
func (e *Engine) MarkRecycled(caller [20]byte, tokenID string) error {
	if err := e.requireRole(roles.RoleRecycler, caller); err != nil {
		return err
	}
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	if record.Recycled {
		return nil
	}
	record.Recycled = true
	if err := e.state.PassportPut(record); err != nil {
		return fmt.Errorf("passport: store token: %w", err)
	}
	e.emitter.Emit(events.PassportRecycled{TokenID: tokenID, Recycler: caller})
	return nil
}

// MarkReturned records the unit as taken back by its manufacturer. The flag
// is orthogonal to Recycled and likewise idempotent.
func (e *Engine) MarkReturned(caller [20]byte, tokenID string) error {
	if err := e.requireRole(roles.RoleManufacturer, caller); err != nil {
		return err
	}
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	if record.ReturnedToManufacturer {
		return nil
	}
	record.ReturnedToManufacturer = true
	if err := e.state.PassportPut(record); err != nil {
		return fmt.Errorf("passport: store token: %w", err)
	}
	e.emitter.Emit(events.PassportReturned{TokenID: tokenID, Manufacturer: caller})
	return nil
}

// View returns the full record including the off-chain reference. Gated on
// the consumer role, with government able to read everything.
func (e *Engine) View(caller [20]byte, tokenID string) (*Passport, error) {
	consumer, err := e.state.HasRole(roles.RoleConsumer, caller)
	if err != nil {
		return nil, fmt.Errorf("passport: check role: %w", err)
	}
	if !consumer {
		government, err := e.state.HasRole(roles.RoleGovernment, caller)
		if err != nil {
			return nil, fmt.Errorf("passport: check role: %w", err)
		}
		if !government {
			return nil, fmt.Errorf("%w: requires %s", ErrUnauthorized, roles.RoleConsumer)
		}
	}
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return nil, fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	return record.Clone(), nil
}

// OwnerOf returns the current owner. Ownership is public and requires no
// role check.
func (e *Engine) OwnerOf(tokenID string) ([20]byte, error) {
	record, exists, err := e.state.PassportGet(tokenID)
	if err != nil {
		return [20]byte{}, fmt.Errorf("passport: load token: %w", err)
	}
	if !exists {
		return [20]byte{}, fmt.Errorf("%w: %s", ErrNotFound, tokenID)
	}
	return record.Owner, nil
}

// TokensOf lists the token identifiers currently owned by principal, sorted.
func (e *Engine) TokensOf(principal [20]byte) ([]string, error) {
	tokens, err := e.state.OwnerTokens(principal)
	if err != nil {
		return nil, fmt.Errorf("passport: list tokens: %w", err)
	}
	return tokens, nil
}
