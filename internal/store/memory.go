package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory TableStore with the same atomicity guarantees
// as the MySQL implementation: ReplaceAll builds the complete new state
// first and swaps it in as a single step. It backs unit tests and local
// dry runs.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
}

// NewMemoryStore creates an empty store containing every protected table.
func NewMemoryStore() *MemoryStore {
	tables := make(map[string][]Record, len(Tables))
	for _, spec := range Tables {
		tables[spec.Name] = nil
	}
	return &MemoryStore{tables: tables}
}

// Seed replaces the store contents without transaction semantics. Test setup
// only.
func (ms *MemoryStore) Seed(tables map[string][]Record) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for name, records := range tables {
		ms.tables[name] = cloneRecords(records)
	}
}

// MutateRecord modifies one field of one record in place, bypassing the
// normal write path. Used to simulate out-of-band corruption.
func (ms *MemoryStore) MutateRecord(table, id, field string, value any) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, record := range ms.tables[table] {
		if record.ID == id {
			mutated := record.Clone()
			mutated.Fields[field] = value
			ms.tables[table][i] = mutated
			return true
		}
	}
	return false
}

// ReadAll returns a deep copy of every protected table.
func (ms *MemoryStore) ReadAll(ctx context.Context) (map[string][]Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	tables := make(map[string][]Record, len(ms.tables))
	for name, records := range ms.tables {
		tables[name] = cloneRecords(records)
	}
	return tables, nil
}

// ReadTable returns a deep copy of one protected table.
func (ms *MemoryStore) ReadTable(ctx context.Context, table string) ([]Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return cloneRecords(ms.tables[table]), nil
}

// ReplaceAll atomically replaces the contents of every protected table.
func (ms *MemoryStore) ReplaceAll(ctx context.Context, tables map[string][]Record) error {
	next := make(map[string][]Record, len(Tables))
	for _, spec := range Tables {
		next[spec.Name] = cloneRecords(tables[spec.Name])
	}

	ms.mu.Lock()
	ms.tables = next
	ms.mu.Unlock()
	return nil
}

func cloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	cloned := make([]Record, len(records))
	for i, record := range records {
		cloned[i] = record.Clone()
	}
	return cloned
}
