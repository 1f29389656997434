package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"evregistry/storage"
)

// Manager provides typed access to the registry's key-value store. Every
// logical key is hashed with keccak256 before hitting the backend so key
// lengths stay uniform and no raw identifier leaks into the store.
type Manager struct {
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func roleStorageKey(role string) []byte {
	return ethcrypto.Keccak256([]byte("role:" + role))
}

func kvStorageKey(key []byte) []byte {
	prefixed := make([]byte, 0, len("kv:")+len(key))
	prefixed = append(prefixed, []byte("kv:")...)
	prefixed = append(prefixed, key...)
	return ethcrypto.Keccak256(prefixed)
}

// KVPut RLP-encodes value and stores it under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return m.db.Put(kvStorageKey(key), encoded)
}

// KVGet decodes the stored value into out. The boolean reports whether the
// key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, err := m.db.Get(kvStorageKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("decode value: %w", err)
	}
	return true, nil
}

// KVDelete removes the value stored under key. Absent keys are a no-op.
func (m *Manager) KVDelete(key []byte) error {
	return m.db.Delete(kvStorageKey(key))
}

// KVAppend adds value to the byte-slice list stored under key, keeping the
// list sorted and deduplicated.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	idx := sort.Search(len(list), func(i int) bool { return bytes.Compare(list[i], value) >= 0 })
	if idx < len(list) && bytes.Equal(list[idx], value) {
		return nil
	}
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = append([]byte(nil), value...)
	return m.KVPut(key, list)
}

// KVRemove deletes value from the byte-slice list stored under key.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	idx := sort.Search(len(list), func(i int) bool { return bytes.Compare(list[i], value) >= 0 })
	if idx >= len(list) || !bytes.Equal(list[idx], value) {
		return nil
	}
	list = append(list[:idx], list[idx+1:]...)
	return m.KVPut(key, list)
}

// KVGetList decodes the byte-slice list stored under key. A missing key
// yields an empty list.
func (m *Manager) KVGetList(key []byte, out *[][]byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	*out = list
	return nil
}

// --- Role membership ---

// SetRole records addr as a member of role. Granting an already-held role is
// idempotent.
func (m *Manager) SetRole(role string, addr [20]byte) error {
	members, err := m.roleList(role)
	if err != nil {
		return err
	}
	idx := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr[:]) >= 0 })
	if idx < len(members) && bytes.Equal(members[idx], addr[:]) {
		return nil
	}
	members = append(members, nil)
	copy(members[idx+1:], members[idx:])
	members[idx] = append([]byte(nil), addr[:]...)
	return m.putRoleList(role, members)
}

// UnsetRole removes addr from role. Revoking an absent membership is
// idempotent.
func (m *Manager) UnsetRole(role string, addr [20]byte) error {
	members, err := m.roleList(role)
	if err != nil {
		return err
	}
	idx := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr[:]) >= 0 })
	if idx >= len(members) || !bytes.Equal(members[idx], addr[:]) {
		return nil
	}
	members = append(members[:idx], members[idx+1:]...)
	return m.putRoleList(role, members)
}

// HasRole reports whether addr is a member of role.
func (m *Manager) HasRole(role string, addr [20]byte) (bool, error) {
	members, err := m.roleList(role)
	if err != nil {
		return false, err
	}
	idx := sort.Search(len(members), func(i int) bool { return bytes.Compare(members[i], addr[:]) >= 0 })
	return idx < len(members) && bytes.Equal(members[idx], addr[:]), nil
}

// RoleMembers returns the sorted membership of role.
func (m *Manager) RoleMembers(role string) ([][20]byte, error) {
	members, err := m.roleList(role)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(members))
	for _, member := range members {
		if len(member) != 20 {
			return nil, fmt.Errorf("corrupted role member entry for %q", role)
		}
		var addr [20]byte
		copy(addr[:], member)
		out = append(out, addr)
	}
	return out, nil
}

func (m *Manager) roleList(role string) ([][]byte, error) {
	encoded, err := m.db.Get(roleStorageKey(role))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var members [][]byte
	if err := rlp.DecodeBytes(encoded, &members); err != nil {
		return nil, fmt.Errorf("decode role members: %w", err)
	}
	return members, nil
}

func (m *Manager) putRoleList(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return fmt.Errorf("encode role members: %w", err)
	}
	return m.db.Put(roleStorageKey(role), encoded)
}
