package roles

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the government role.
	ErrUnauthorized = errors.New("roles: caller is not a government principal")
	// ErrUnknownRole is returned for role names outside the fixed set.
	ErrUnknownRole = errors.New("roles: unknown role")
	// ErrAlreadyBootstrapped is returned when a government principal has
	// already been provisioned.
	ErrAlreadyBootstrapped = errors.New("roles: government role already provisioned")
)
