package catalog

import (
	"context"
	"sync"

	"github.com/celt313/gamequest/schema"
)

// MemoryStore is an in-memory Store for tests and local fixtures.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]schema.Game
}

// NewMemoryStore creates a MemoryStore holding the given games.
func NewMemoryStore(games ...schema.Game) *MemoryStore {
	m := &MemoryStore{games: make(map[string]schema.Game, len(games))}
	for _, g := range games {
		m.games[g.ID] = g
	}
	return m
}

// Put inserts or replaces a game.
func (m *MemoryStore) Put(g schema.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g
}

// FilterIDs resolves a filter spec to the set of eligible item ids.
func (m *MemoryStore) FilterIDs(ctx context.Context, f *schema.FilterSpec) (schema.IDSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := schema.NewIDSet()
	for id, g := range m.games {
		if f.Matches(g) {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// Get fetches games by id.
func (m *MemoryStore) Get(ctx context.Context, ids []string) (map[string]schema.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]schema.Game, len(ids))
	for _, id := range ids {
		if g, ok := m.games[id]; ok {
			out[id] = g
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
