// Package settings persists the shop-wide credit defaults outside the main
// database, in a simple durable key-value store.
package settings

import (
	"context"
	"sync"

	"saleshub/backend/internal/domain"
)

type Store interface {
	// LoadCreditDefaults returns the persisted defaults and whether any
	// have been written yet.
	LoadCreditDefaults(ctx context.Context) (domain.CreditDefaults, bool, error)
	SaveCreditDefaults(ctx context.Context, defaults domain.CreditDefaults) error
}

// MemoryStore keeps the defaults in process memory. It backs tests and
// redis-less local runs.
type MemoryStore struct {
	mu       sync.Mutex
	defaults domain.CreditDefaults
	written  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) LoadCreditDefaults(_ context.Context) (domain.CreditDefaults, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults, s.written, nil
}

func (s *MemoryStore) SaveCreditDefaults(_ context.Context, defaults domain.CreditDefaults) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = defaults
	s.written = true
	return nil
}
