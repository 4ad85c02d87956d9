package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory, thread-safe Store. It is useful for testing
// and for single-process deployments that do not need persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	view    *projection
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{view: newProjection(), now: time.Now}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, e *Entry) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e == nil {
		return nil, checkAppend(nil, false)
	}
	if err := checkAppend(e, s.view.hasSubject(e.Subject)); err != nil {
		return nil, err
	}

	prevHash := GenesisHash
	if n := len(s.entries); n > 0 {
		prevHash = s.entries[n-1].Hash
	}
	sealed := seal(e, len(s.entries), prevHash, s.now())
	if err := s.view.apply(sealed); err != nil {
		return nil, err
	}
	s.entries = append(s.entries, sealed)

	return sealed.clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, index int) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.entries) {
		return nil, fmt.Errorf("entry %d: %w", index, ErrNotFound)
	}
	return s.entries[index].clone(), nil
}

// Len implements Store.
func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Head implements Store.
func (s *MemoryStore) Head(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return GenesisHash, nil
	}
	return s.entries[len(s.entries)-1].Hash, nil
}

// Verify implements Store.
func (s *MemoryStore) Verify(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := newChainChecker()
	for _, e := range s.entries {
		if err := c.check(e); err != nil {
			return err
		}
	}
	return nil
}

// ListTransactions implements Store.
func (s *MemoryStore) ListTransactions(_ context.Context) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.transactions(), nil
}

// ListAuditRecords implements Store.
func (s *MemoryStore) ListAuditRecords(_ context.Context) ([]*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.auditRecords(), nil
}

// FindTransaction implements Store.
func (s *MemoryStore) FindTransaction(_ context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.transaction(id)
}

// FindAudit implements Store.
func (s *MemoryStore) FindAudit(_ context.Context, id string) (*AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.audit(id)
}
