package rpc

import (
	"errors"
	"net/http"

	"evregistry/native/bond"
	"evregistry/native/passport"
	"evregistry/native/roles"
)

// Stable registry error codes. Clients dispatch on these, so new failure
// kinds get new codes rather than reusing existing ones.
const (
	codeForbidden           = -32021
	codeNotFound            = -32022
	codeConflict            = -32023
	codeInsufficientDeposit = -32024
	codeOracleUnavailable   = -32025
	codeAlreadyLocked       = -32026
)

// writeRegistryError maps the engines' typed errors onto the wire codes.
func writeRegistryError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, roles.ErrUnauthorized),
		errors.Is(err, bond.ErrUnauthorized),
		errors.Is(err, passport.ErrUnauthorized),
		errors.Is(err, passport.ErrDepositNotLocked):
		writeError(w, http.StatusForbidden, id, codeForbidden, "forbidden", err.Error())
	case errors.Is(err, passport.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeNotFound, "not_found", err.Error())
	case errors.Is(err, passport.ErrAlreadyExists):
		writeError(w, http.StatusConflict, id, codeConflict, "already_exists", err.Error())
	case errors.Is(err, bond.ErrInsufficientDeposit):
		writeError(w, http.StatusConflict, id, codeInsufficientDeposit, "insufficient_deposit", err.Error())
	case errors.Is(err, bond.ErrAlreadyLocked):
		writeError(w, http.StatusConflict, id, codeAlreadyLocked, "already_locked", err.Error())
	case errors.Is(err, bond.ErrOracleUnavailable):
		writeError(w, http.StatusServiceUnavailable, id, codeOracleUnavailable, "oracle_unavailable", err.Error())
	case errors.Is(err, roles.ErrUnknownRole),
		errors.Is(err, bond.ErrInvalidAmount),
		errors.Is(err, passport.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}
