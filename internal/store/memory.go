package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"SlaEscrow/internal/model"
)

// Memory keeps agreements in process. Values are cloned on the way in and
// out so callers never share state with the store.
type Memory struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*model.Agreement
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[uuid.UUID]*model.Agreement)}
}

func (m *Memory) Create(_ context.Context, ag *model.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[ag.ID]; ok {
		return model.ErrAgreementAlreadyRegistered.Wrap(ag.ID.String())
	}
	m.byID[ag.ID] = ag.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*model.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ag, ok := m.byID[id]
	if !ok {
		return nil, notFound(id)
	}
	return ag.Clone(), nil
}

func (m *Memory) Save(_ context.Context, ag *model.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[ag.ID]
	if !ok {
		return notFound(ag.ID)
	}
	if cur.Version != ag.Version {
		return conflict(ag.ID, ag.Version)
	}
	next := ag.Clone()
	next.Version++
	m.byID[ag.ID] = next
	ag.Version = next.Version
	return nil
}

func (m *Memory) List(_ context.Context) ([]*model.Agreement, error) {
	m.mu.RLock()
	out := make([]*model.Agreement, 0, len(m.byID))
	for _, ag := range m.byID {
		out = append(out, ag.Clone())
	}
	m.mu.RUnlock()
	sortAgreements(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func sortAgreements(ags []*model.Agreement) {
	sort.Slice(ags, func(i, j int) bool {
		if !ags[i].CreatedAt.Equal(ags[j].CreatedAt) {
			return ags[i].CreatedAt.Before(ags[j].CreatedAt)
		}
		return ags[i].ID.String() < ags[j].ID.String()
	})
}
