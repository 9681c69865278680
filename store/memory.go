package store

import (
	"context"
	"sync"

	authkit "github.com/pulsefit/authkit-go"
)

// Memory is an in-memory TokenStore for tests and short-lived processes.
// It does not survive restarts.
type Memory struct {
	mu   sync.Mutex
	pair *authkit.TokenPair
}

// compile-time check
var _ authkit.TokenStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save replaces the stored pair.
func (m *Memory) Save(_ context.Context, pair authkit.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = &pair
	return nil
}

// Load returns the stored pair, or (nil, nil) when empty.
func (m *Memory) Load(_ context.Context) (*authkit.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pair == nil {
		return nil, nil
	}
	pair := *m.pair
	return &pair, nil
}

// Clear empties the store.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = nil
	return nil
}
