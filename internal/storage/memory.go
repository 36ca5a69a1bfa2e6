package storage

import (
	"context"
	"sync/atomic"
)

var _ TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore keeps the token in process memory. Reads and writes are
// single pointer swaps; there is no read-modify-write, so no lock.
type MemoryTokenStore struct {
	token atomic.Pointer[string]
}

// NewMemoryTokenStore creates an empty store
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) GetAccessToken(_ context.Context) (string, error) {
	p := s.token.Load()
	if p == nil || *p == "" {
		return "", ErrTokenNotFound
	}
	return *p, nil
}

func (s *MemoryTokenStore) SetAccessToken(_ context.Context, token string) error {
	s.token.Store(&token)
	return nil
}
