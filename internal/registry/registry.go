// Package registry keeps the append-only directory of deployed agreements.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

// Registry is an append-only set of agreement ids with a hard capacity.
// Entries are never removed.
type Registry struct {
	mu       sync.RWMutex
	capacity int
	ids      []uuid.UUID
	index    map[uuid.UUID]int
}

// New returns a registry holding at most capacity ids. A non-positive
// capacity means unbounded.
func New(capacity int) *Registry {
	return &Registry{capacity: capacity, index: make(map[uuid.UUID]int)}
}

// Insert appends id.
func (r *Registry) Insert(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; ok {
		return model.ErrAgreementAlreadyRegistered.Wrap(id.String())
	}
	if r.capacity > 0 && len(r.ids) >= r.capacity {
		return model.ErrRegistryFull.Wrapf("capacity %d", r.capacity)
	}
	r.index[id] = len(r.ids)
	r.ids = append(r.ids, id)
	return nil
}

// Contains reports whether id was inserted.
func (r *Registry) Contains(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// Len returns the number of ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Capacity returns the configured bound.
func (r *Registry) Capacity() int { return r.capacity }

// IDs returns the ids in insertion order.
func (r *Registry) IDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, len(r.ids))
	copy(out, r.ids)
	return out
}
