// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/bpsr-logs/livemeter/internal/model"
)

// Backend is the interface all snapshot storage implementations must satisfy.
// Snapshots are keyed by application scope; Save replaces any previous value.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	Save(ctx context.Context, scope string, snap model.CrowdsourceSnapshot) error
	// Load reports found=false with a nil error when scope has no snapshot.
	Load(ctx context.Context, scope string) (snap model.CrowdsourceSnapshot, found bool, err error)
}
