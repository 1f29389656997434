package bond

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the role a bond
	// operation requires.
	ErrUnauthorized = errors.New("bond: caller lacks required role")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("bond: amount must be positive")
	// ErrInsufficientDeposit is returned when a lock is attempted below the
	// oracle-derived minimum.
	ErrInsufficientDeposit = errors.New("bond: deposit below required minimum")
	// ErrAlreadyLocked is returned when a locked account attempts to lock
	// again.
	ErrAlreadyLocked = errors.New("bond: deposit already locked")
	// ErrOracleUnavailable is returned when no fresh, valid price is
	// available to derive the minimum deposit.
	ErrOracleUnavailable = errors.New("bond: price oracle unavailable")
)
