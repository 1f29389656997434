package events

import "evregistry/core/types"

const (
	TypeRoleGranted         = "roles.granted"
	TypeRoleRevoked         = "roles.revoked"
	TypeManufacturerAdded   = "roles.manufacturer_added"
	TypeManufacturerRemoved = "roles.manufacturer_removed"
)

// RoleGranted is emitted when a principal newly acquires a role.
type RoleGranted struct {
	Role      string
	Principal [20]byte
	GrantedBy [20]byte
}

func (RoleGranted) EventType() string { return TypeRoleGranted }

func (e RoleGranted) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleGranted,
		Attributes: map[string]string{
			"role":      e.Role,
			"principal": addrToString(e.Principal),
			"grantedBy": addrToString(e.GrantedBy),
		},
	}
}

// RoleRevoked is emitted when an existing role assignment is removed.
type RoleRevoked struct {
	Role      string
	Principal [20]byte
	RevokedBy [20]byte
}

func (RoleRevoked) EventType() string { return TypeRoleRevoked }

func (e RoleRevoked) Event() *types.Event {
	return &types.Event{
		Type: TypeRoleRevoked,
		Attributes: map[string]string{
			"role":      e.Role,
			"principal": addrToString(e.Principal),
			"revokedBy": addrToString(e.RevokedBy),
		},
	}
}

// ManufacturerAdded is emitted by the addManufacturer convenience path.
type ManufacturerAdded struct {
	Manufacturer [20]byte
	AddedBy      [20]byte
}

func (ManufacturerAdded) EventType() string { return TypeManufacturerAdded }

func (e ManufacturerAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeManufacturerAdded,
		Attributes: map[string]string{
			"manufacturer": addrToString(e.Manufacturer),
			"addedBy":      addrToString(e.AddedBy),
		},
	}
}

// ManufacturerRemoved is emitted when a manufacturer role is withdrawn. The
// lock on the associated bond account is always reset; DepositRefunded
// reports whether the removal policy also zeroed the deposit.
type ManufacturerRemoved struct {
	Manufacturer    [20]byte
	RemovedBy       [20]byte
	DepositRefunded bool
}

func (ManufacturerRemoved) EventType() string { return TypeManufacturerRemoved }

func (e ManufacturerRemoved) Event() *types.Event {
	return &types.Event{
		Type: TypeManufacturerRemoved,
		Attributes: map[string]string{
			"manufacturer":    addrToString(e.Manufacturer),
			"removedBy":       addrToString(e.RemovedBy),
			"depositRefunded": boolToString(e.DepositRefunded),
		},
	}
}
