package keyvalue

import (
	"context"
	"sync"

	"github.com/tahfeezapp/tahfeez/core/auth"
)

// inMemPendingRoleStore is the non-durable fallback used by tests and local
// development without Redis.
type inMemPendingRoleStore struct {
	mu   sync.Mutex
	role string
}

var _ auth.PendingRoleStore = (*inMemPendingRoleStore)(nil) // interface compliance check

func NewInMemPendingRoleStore() *inMemPendingRoleStore {
	return &inMemPendingRoleStore{}
}

func (s *inMemPendingRoleStore) Set(ctx context.Context, role string) error {
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()
	return nil
}

func (s *inMemPendingRoleStore) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role, nil
}

func (s *inMemPendingRoleStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.role = ""
	s.mu.Unlock()
	return nil
}
