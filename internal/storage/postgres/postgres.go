// Package postgres persists snapshots in a shared PostgreSQL database so
// several meter instances can keep their own scopes in one place.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/database"
	gormstorage "github.com/bpsr-logs/livemeter/internal/storage/gorm"

	"gorm.io/gorm"
)

const pingTimeout = 5 * time.Second

// Backend wraps the GORM backend and owns the Postgres connection.
type Backend struct {
	*gormstorage.Backend
	db     *gorm.DB
	cfg    config.DBConfig
	logger *slog.Logger
}

// New creates a new Postgres storage backend. The connection is made in Init.
func New(cfg config.DBConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: logger}),
		cfg:     cfg,
		logger:  logger,
	}
}

// Init connects, validates the connection and migrates the schema.
func (b *Backend) Init() error {
	b.logger.Debug("Connecting to Postgres DB", "host", b.cfg.Host, "port", b.cfg.Port, "database", b.cfg.Database)

	db, err := database.OpenPostgres(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := database.Ping(context.Background(), db, pingTimeout); err != nil {
		_ = database.Close(db)
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
	}

	b.db = db
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	if err := b.Backend.Init(); err != nil {
		_ = database.Close(db)
		return err
	}

	b.logger.Info("Connected to database", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

// Close closes the embedded GORM backend and the connection pool.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	_ = b.Backend.Close()
	err := database.Close(b.db)
	b.db = nil
	return err
}
