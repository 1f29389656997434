package core

import (
	"math/big"

	"evregistry/core/state"
	"evregistry/native/bond"
	"evregistry/native/passport"
)

// stateAccess adapts the generic state manager to the narrow interfaces the
// engines consume. One instance backs all three engines within a session so
// cross-module reads (the passport engine checking the bond lock) observe the
// same staged view.
type stateAccess struct {
	manager *state.Manager
}

func newStateAccess(manager *state.Manager) *stateAccess {
	return &stateAccess{manager: manager}
}

func bondKey(addr [20]byte) []byte {
	return append([]byte("bond/"), addr[:]...)
}

func passportKey(tokenID string) []byte {
	return append([]byte("passport/"), []byte(tokenID)...)
}

func ownerKey(addr [20]byte) []byte {
	return append([]byte("owner-tokens/"), addr[:]...)
}

// --- roles.State ---

func (s *stateAccess) SetRole(role string, addr [20]byte) error {
	return s.manager.SetRole(role, addr)
}

func (s *stateAccess) UnsetRole(role string, addr [20]byte) error {
	return s.manager.UnsetRole(role, addr)
}

func (s *stateAccess) HasRole(role string, addr [20]byte) (bool, error) {
	return s.manager.HasRole(role, addr)
}

func (s *stateAccess) RoleMembers(role string) ([][20]byte, error) {
	return s.manager.RoleMembers(role)
}

// --- bond.State ---

func (s *stateAccess) BondAccount(addr [20]byte) (*bond.Account, error) {
	var account bond.Account
	ok, err := s.manager.KVGet(bondKey(addr), &account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &bond.Account{Balance: big.NewInt(0)}, nil
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return &account, nil
}

func (s *stateAccess) PutBondAccount(addr [20]byte, account *bond.Account) error {
	return s.manager.KVPut(bondKey(addr), account)
}

// --- passport.State ---

func (s *stateAccess) BondLocked(addr [20]byte) (bool, error) {
	account, err := s.BondAccount(addr)
	if err != nil {
		return false, err
	}
	return account.Locked, nil
}

func (s *stateAccess) PassportGet(tokenID string) (*passport.Passport, bool, error) {
	var record passport.Passport
	ok, err := s.manager.KVGet(passportKey(tokenID), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

func (s *stateAccess) PassportPut(p *passport.Passport) error {
	return s.manager.KVPut(passportKey(p.TokenID), p)
}

func (s *stateAccess) OwnerTokenAdd(owner [20]byte, tokenID string) error {
	return s.manager.KVAppend(ownerKey(owner), []byte(tokenID))
}

func (s *stateAccess) OwnerTokenRemove(owner [20]byte, tokenID string) error {
	return s.manager.KVRemove(ownerKey(owner), []byte(tokenID))
}

func (s *stateAccess) OwnerTokens(owner [20]byte) ([]string, error) {
	var raw [][]byte
	if err := s.manager.KVGetList(ownerKey(owner), &raw); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(raw))
	for _, entry := range raw {
		tokens = append(tokens, string(entry))
	}
	return tokens, nil
}
