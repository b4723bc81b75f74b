package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/dreamware/runwaymesh/internal/traffic"
)

// ErrNotReady is returned by Get before the first summary has been stored.
var ErrNotReady = errors.New("summary not ready")

// SummaryStore holds the most recent congestion summary.
// All implementations must be safe for concurrent use.
type SummaryStore interface {
	// Set replaces the stored summary.
	Set(ctx context.Context, s traffic.Summary) error

	// Get returns the stored summary.
	// Returns ErrNotReady if nothing has been stored yet.
	Get(ctx context.Context) (traffic.Summary, error)
}

// MemoryStore implements SummaryStore in process.
type MemoryStore struct {
	mu      sync.RWMutex
	summary traffic.Summary
	ready   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Set stores s, overwriting any previous summary.
func (m *MemoryStore) Set(_ context.Context, s traffic.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.summary = s
	m.ready = true
	return nil
}

// Get returns a copy of the stored summary.
func (m *MemoryStore) Get(_ context.Context) (traffic.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.ready {
		return traffic.Summary{}, ErrNotReady
	}
	return m.summary, nil
}
