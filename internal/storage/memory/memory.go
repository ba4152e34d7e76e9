// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sync"

	"github.com/bpsr-logs/livemeter/internal/model"
)

// Backend keeps snapshots in a process-local map. Nothing survives a restart.
type Backend struct {
	snapshots map[string]model.CrowdsourceSnapshot
	mu        sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		snapshots: make(map[string]model.CrowdsourceSnapshot),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Save stores snap under scope.
func (b *Backend) Save(_ context.Context, scope string, snap model.CrowdsourceSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.snapshots[scope] = snap
	return nil
}

// Load returns the snapshot stored under scope.
func (b *Backend) Load(_ context.Context, scope string) (model.CrowdsourceSnapshot, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap, ok := b.snapshots[scope]
	return snap, ok, nil
}
