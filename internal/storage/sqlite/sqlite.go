// Package sqlitestorage persists snapshots in a local SQLite file. It wraps
// the GORM backend via composition and only owns the connection.
package sqlitestorage

import (
	"fmt"
	"log/slog"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/database"
	gormstorage "github.com/bpsr-logs/livemeter/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db     *gorm.DB
	cfg    config.SQLiteConfig
	logger *slog.Logger
}

// New creates a new SQLite storage backend. The file is opened in Init.
func New(cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: logger}),
		cfg:     cfg,
		logger:  logger,
	}
}

// Init opens the database file and initializes the embedded GORM backend.
func (b *Backend) Init() error {
	db, err := database.OpenSqlite(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	b.db = db
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	if err := b.Backend.Init(); err != nil {
		_ = database.Close(db)
		return err
	}

	if b.cfg.Path == "" {
		b.logger.Info("Using local SQLite DB in memory")
	} else {
		b.logger.Info("Using local SQLite DB", "path", b.cfg.Path)
	}
	return nil
}

// Close closes the embedded GORM backend and the database file.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	_ = b.Backend.Close()
	err := database.Close(b.db)
	b.db = nil
	return err
}
