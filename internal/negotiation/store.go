package negotiation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrStateNotFound indicates no negotiation exists for the key.
var ErrStateNotFound = errors.New("negotiation: state not found")

// Store persists negotiation state. The dispatcher serializes writes per key,
// so implementations only need to keep concurrent reads of other keys safe;
// distributed implementations preserve single-writer-per-key with
// compare-and-set on State.Version.
type Store interface {
	// GetOrCreate loads the state for key, opening a fresh negotiation at
	// the listing price when none exists.
	GetOrCreate(ctx context.Context, key Key, listingPrice int64) (*State, error)
	// Get loads existing state or returns ErrStateNotFound.
	Get(ctx context.Context, key Key) (*State, error)
	// Save persists a mutated state.
	Save(ctx context.Context, state *State) error
	// RecordFact upserts a seller-supplied fact, reopening the thread when
	// it answers the pending escalation. Idempotent.
	RecordFact(ctx context.Context, key Key, factKey, value string) error
	// ListByProduct returns every thread negotiating the given product.
	ListByProduct(ctx context.Context, productID string) ([]*State, error)
	// EvictIdle removes threads not updated since olderThan and returns
	// the evicted keys. Calling it again with the same cutoff evicts
	// nothing new.
	EvictIdle(ctx context.Context, olderThan time.Time) ([]Key, error)
}

// MemoryStore is the in-process Store used for single-instance deployments
// and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[Key]*State
	clock  func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states: make(map[Key]*State),
		clock:  time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// GetOrCreate returns a copy of the stored state, creating it when absent.
func (m *MemoryStore) GetOrCreate(_ context.Context, key Key, listingPrice int64) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.states[key]; ok {
		return st.Clone(), nil
	}
	st := NewState(key, listingPrice, m.clock().UTC())
	m.states[key] = st
	return st.Clone(), nil
}

// Get returns a copy of the stored state.
func (m *MemoryStore) Get(_ context.Context, key Key) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st.Clone(), nil
}

// Save stores a copy of the state and bumps its version.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil {
		return errors.New("negotiation: cannot save nil state")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := state.Clone()
	cp.Version++
	m.states[state.Key] = cp
	state.Version = cp.Version
	return nil
}

// RecordFact upserts a fact on the stored state.
func (m *MemoryStore) RecordFact(_ context.Context, key Key, factKey, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[key]
	if !ok {
		return ErrStateNotFound
	}
	st.RecordFact(factKey, value)
	st.UpdatedAt = m.clock().UTC()
	st.Version++
	return nil
}

// ListByProduct returns copies of all threads for a product id.
func (m *MemoryStore) ListByProduct(_ context.Context, productID string) ([]*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*State
	for key, st := range m.states {
		if key.ProductID == productID {
			out = append(out, st.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ThreadID < out[j].Key.ThreadID })
	return out, nil
}

// EvictIdle removes threads whose last update predates olderThan.
func (m *MemoryStore) EvictIdle(_ context.Context, olderThan time.Time) ([]Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []Key
	for key, st := range m.states {
		if st.UpdatedAt.Before(olderThan) {
			evicted = append(evicted, key)
			delete(m.states, key)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].String() < evicted[j].String() })
	return evicted, nil
}

// Len reports the number of stored threads, for the stats endpoint.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
