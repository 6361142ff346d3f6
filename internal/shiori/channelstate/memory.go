package channelstate

import (
	"context"
	"sync"
)

// MemoryPersister keeps records in process memory. It backs tests and runs
// without a database.
type MemoryPersister struct {
	mu      sync.Mutex
	records map[string]*ChannelState
	saves   int
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{records: make(map[string]*ChannelState)}
}

// Load implements Persister.
func (m *MemoryPersister) Load(_ context.Context, channelID string) (*ChannelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.records[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

// Save implements Persister.
func (m *MemoryPersister) Save(_ context.Context, channelID string, state *ChannelState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[channelID] = state.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
