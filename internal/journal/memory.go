package journal

import (
	"context"
	"sort"
	"sync"

	"github.com/Adamant-im/adamant-coinoptimus-sub001/internal/core"
)

// MemoryStore is an in-memory Store and core.IParamStore used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*OrderRecord
	params  core.LadderParams
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*OrderRecord)}
}

// LiveOrders returns copies of non-processed records, ordered by side then index.
func (m *MemoryStore) LiveOrders(ctx context.Context, purpose, pair, exchange string) ([]*OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*OrderRecord
	for _, rec := range m.records {
		if rec.IsProcessed || rec.Purpose != purpose || rec.Pair != pair || rec.Exchange != exchange {
			continue
		}
		cp := *rec
		if rec.Cross != nil {
			cross := *rec.Cross
			cp.Cross = &cross
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Side != out[j].Side {
			return out[i].Side < out[j].Side
		}
		return out[i].LadderIndex < out[j].LadderIndex
	})
	return out, nil
}

// Save stores a copy of the record.
func (m *MemoryStore) Save(ctx context.Context, rec *OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	if rec.Cross != nil {
		cross := *rec.Cross
		cp.Cross = &cross
	}
	m.records[rec.ID] = &cp
	return nil
}

// Update behaves like Save; flush is a no-op in memory.
func (m *MemoryStore) Update(ctx context.Context, rec *OrderRecord, flush bool) error {
	return m.Save(ctx, rec)
}

// Delete removes a record. Test helper.
func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

// Get returns the stored record by ID, or nil. Test helper.
func (m *MemoryStore) Get(id string) *OrderRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// All returns copies of every record, processed included. Test helper.
func (m *MemoryStore) All() []*OrderRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*OrderRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out
}

// LoadParams implements core.IParamStore.
func (m *MemoryStore) LoadParams(ctx context.Context) (*core.LadderParams, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	params := m.params
	return &params, nil
}

// SaveParams implements core.IParamStore.
func (m *MemoryStore) SaveParams(ctx context.Context, params *core.LadderParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params = *params
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
