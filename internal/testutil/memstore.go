package testutil

import (
	"context"
	"sync"

	"todo/internal/keystore"
)

// MemStore is an in-memory keystore.Store with error injection.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string

	GetErr    error
	SetErr    error
	DeleteErr error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// Value returns the raw stored value, bypassing error injection.
func (s *MemStore) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Get implements keystore.Store.
func (s *MemStore) Get(ctx context.Context, key string) (string, error) {
	if s.GetErr != nil {
		return "", s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", keystore.ErrNotFound
	}
	return v, nil
}

// Set implements keystore.Store.
func (s *MemStore) Set(ctx context.Context, key, value string) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete implements keystore.Store.
func (s *MemStore) Delete(ctx context.Context, key string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FakeIdentityProvider returns a fixed ID token.
type FakeIdentityProvider struct {
	IDTokenValue string
	Err          error

	mu    sync.Mutex
	calls int
}

// IDToken implements session.IdentityProvider.
func (p *FakeIdentityProvider) IDToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.IDTokenValue, nil
}

// Calls returns how many ID tokens were requested.
func (p *FakeIdentityProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
