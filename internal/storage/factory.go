// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/storage/memory"
	"github.com/bpsr-logs/livemeter/internal/storage/postgres"
	sqlitestorage "github.com/bpsr-logs/livemeter/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration. The backend
// still needs Init before use.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.DB, logger), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, logger), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
