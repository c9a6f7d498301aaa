package credential

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface, keyed
// by service code. It is primarily used for tests and single-node setups
// where credentials are provisioned from configuration.
type MemoryStore struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Lookup performs an exact-match lookup of a credential record.
func (s *MemoryStore) Lookup(_ context.Context, serviceCode, authKey string, status Status) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[serviceCode]
	if !ok {
		return nil, ErrNotFound
	}
	if !record.matches(authKey, status) {
		return nil, ErrNotFound
	}

	return record, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close releases store resources. It is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Add inserts or replaces a record. Records with an empty service code are
// ignored.
func (s *MemoryStore) Add(record *Record) {
	if record == nil || record.ServiceCode == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ServiceCode] = record
}

// Remove deletes the record for the given service code.
func (s *MemoryStore) Remove(serviceCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, serviceCode)
}

// LoadRecords bulk-loads records, typically from configuration.
func (s *MemoryStore) LoadRecords(records []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		if record == nil || record.ServiceCode == "" {
			continue
		}
		s.records[record.ServiceCode] = record
	}
}

// Count returns the number of records in the store.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
