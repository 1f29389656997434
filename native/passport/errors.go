package passport

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the role or
	// ownership an operation requires.
	ErrUnauthorized = errors.New("passport: caller not authorized")
	// ErrDepositNotLocked is returned when a manufacturer mints before its
	// compliance bond has passed the lock gate.
	ErrDepositNotLocked = errors.New("passport: manufacturer deposit not locked")
	// ErrAlreadyExists is returned when a token identifier has been minted
	// before.
	ErrAlreadyExists = errors.New("passport: token already exists")
	// ErrNotFound is returned for operations on unknown token identifiers.
	ErrNotFound = errors.New("passport: token not found")
	// ErrInvalidArgument is returned for malformed input such as an empty
	// token identifier or an empty batch.
	ErrInvalidArgument = errors.New("passport: invalid argument")
)
