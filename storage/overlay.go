package storage

import "sync"

// Overlay is a write buffer layered over a backing Database. Reads consult the
// buffer first and fall through to the backing store; writes and deletes stay
// in the buffer until Commit. Discard drops the buffer, leaving the backing
// store untouched. This is how the registry gets all-or-nothing operations
// without a transactional backend.
type Overlay struct {
	mu      sync.RWMutex
	backing Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func NewOverlay(backing Database) *Overlay {
	return &Overlay{
		backing: backing,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deletes, string(key))
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, gone := o.deletes[string(key)]; gone {
		return nil, ErrNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.backing.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

// Commit flushes buffered writes and deletes to the backing store. On error
// the overlay is left as-is so the caller can retry or discard.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.deletes {
		if err := o.backing.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.writes {
		if err := o.backing.Put([]byte(key), value); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}

// Discard drops all buffered mutations.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// Dirty reports whether the overlay holds uncommitted mutations.
func (o *Overlay) Dirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.writes) > 0 || len(o.deletes) > 0
}

// Close satisfies the Database interface; closing an overlay never closes the
// backing store.
func (o *Overlay) Close() {}
