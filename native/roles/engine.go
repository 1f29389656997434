package roles

import (
	"fmt"

	"evregistry/core/events"
)

// Role names recognized by the registry. RoleGovernment is the sole
// administrative role and the only grantor of every other role.
const (
	RoleGovernment   = "ROLE_GOVERNMENT"
	RoleManufacturer = "ROLE_MANUFACTURER"
	RoleSupplier     = "ROLE_SUPPLIER"
	RoleConsumer     = "ROLE_CONSUMER"
	RoleRecycler     = "ROLE_RECYCLER"
)

var knownRoles = map[string]struct{}{
	RoleGovernment:   {},
	RoleManufacturer: {},
	RoleSupplier:     {},
	RoleConsumer:     {},
	RoleRecycler:     {},
}

// KnownRole reports whether name is one of the fixed role constants.
func KnownRole(name string) bool {
	_, ok := knownRoles[name]
	return ok
}

// State is the narrow view of registry storage the engine needs.
type State interface {
	SetRole(role string, addr [20]byte) error
	UnsetRole(role string, addr [20]byte) error
	HasRole(role string, addr [20]byte) (bool, error)
	RoleMembers(role string) ([][20]byte, error)
}

// Engine owns the principal-to-role mapping. Every mutation is gated on the
// caller holding RoleGovernment; membership reads are open.
type Engine struct {
	state   State
	emitter events.Emitter
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the registry state. Must be invoked before
// engine operations are used.
func (e *Engine) SetState(state State) { e.state = state }

// SetEmitter configures the sink used for role lifecycle events. Passing nil
// restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) requireGovernment(caller [20]byte) error {
	ok, err := e.state.HasRole(RoleGovernment, caller)
	if err != nil {
		return fmt.Errorf("roles: check government membership: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// Grant assigns role to principal. Granting an already-held role succeeds
// without emitting a duplicate event.
func (e *Engine) Grant(caller [20]byte, role string, principal [20]byte) error {
	if !KnownRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err := e.requireGovernment(caller); err != nil {
		return err
	}
	held, err := e.state.HasRole(role, principal)
	if err != nil {
		return fmt.Errorf("roles: check membership: %w", err)
	}
	if held {
		return nil
	}
	if err := e.state.SetRole(role, principal); err != nil {
		return fmt.Errorf("roles: grant: %w", err)
	}
	e.emitter.Emit(events.RoleGranted{Role: role, Principal: principal, GrantedBy: caller})
	return nil
}

// Revoke removes role from principal. Revoking an absent membership succeeds
// silently.
func (e *Engine) Revoke(caller [20]byte, role string, principal [20]byte) error {
	if !KnownRole(role) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	if err := e.requireGovernment(caller); err != nil {
		return err
	}
	held, err := e.state.HasRole(role, principal)
	if err != nil {
		return fmt.Errorf("roles: check membership: %w", err)
	}
	if !held {
		return nil
	}
	if err := e.state.UnsetRole(role, principal); err != nil {
		return fmt.Errorf("roles: revoke: %w", err)
	}
	e.emitter.Emit(events.RoleRevoked{Role: role, Principal: principal, RevokedBy: caller})
	return nil
}

// HasRole is an ungated membership read.
func (e *Engine) HasRole(role string, principal [20]byte) (bool, error) {
	if !KnownRole(role) {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return e.state.HasRole(role, principal)
}

// Members returns the sorted membership of role.
func (e *Engine) Members(role string) ([][20]byte, error) {
	if !KnownRole(role) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return e.state.RoleMembers(role)
}

// AddManufacturer grants RoleManufacturer and emits a dedicated
// manufacturer_added event alongside the raw grant.
func (e *Engine) AddManufacturer(caller, principal [20]byte) error {
	if err := e.requireGovernment(caller); err != nil {
		return err
	}
	held, err := e.state.HasRole(RoleManufacturer, principal)
	if err != nil {
		return fmt.Errorf("roles: check membership: %w", err)
	}
	if held {
		return nil
	}
	if err := e.state.SetRole(RoleManufacturer, principal); err != nil {
		return fmt.Errorf("roles: add manufacturer: %w", err)
	}
	e.emitter.Emit(events.ManufacturerAdded{Manufacturer: principal, AddedBy: caller})
	return nil
}

// RemoveManufacturer revokes RoleManufacturer. The caller reports via
// depositRefunded whether the removal policy also zeroed the bond deposit;
// the flag is forwarded on the event unchanged.
func (e *Engine) RemoveManufacturer(caller, principal [20]byte, depositRefunded bool) error {
	if err := e.requireGovernment(caller); err != nil {
		return err
	}
	held, err := e.state.HasRole(RoleManufacturer, principal)
	if err != nil {
		return fmt.Errorf("roles: check membership: %w", err)
	}
	if !held {
		return nil
	}
	if err := e.state.UnsetRole(RoleManufacturer, principal); err != nil {
		return fmt.Errorf("roles: remove manufacturer: %w", err)
	}
	e.emitter.Emit(events.ManufacturerRemoved{Manufacturer: principal, RemovedBy: caller, DepositRefunded: depositRefunded})
	return nil
}

// BootstrapGovernment grants RoleGovernment without an authorization gate. It
// is reserved for the one-time bootstrap path and refuses to run once any
// government principal exists.
func (e *Engine) BootstrapGovernment(principal [20]byte) error {
	members, err := e.state.RoleMembers(RoleGovernment)
	if err != nil {
		return fmt.Errorf("roles: read government membership: %w", err)
	}
	if len(members) > 0 {
		// Re-running with the already-provisioned principal is a no-op.
		if len(members) == 1 && members[0] == principal {
			return nil
		}
		return ErrAlreadyBootstrapped
	}
	if err := e.state.SetRole(RoleGovernment, principal); err != nil {
		return fmt.Errorf("roles: bootstrap government: %w", err)
	}
	e.emitter.Emit(events.RegistryBootstrapped{Government: principal})
	return nil
}
