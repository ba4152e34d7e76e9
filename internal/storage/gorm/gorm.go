// Package gormstorage implements snapshot persistence on top of an injected
// GORM connection. The sqlite and postgres backends wrap it and own the
// connection lifecycle.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bpsr-logs/livemeter/internal/database"
	"github.com/bpsr-logs/livemeter/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotReady is returned when the backend is used before Init succeeded.
var ErrNotReady = errors.New("storage backend not initialized")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores crowdsource snapshots in the crowdsource_snapshots table.
type Backend struct {
	deps    Dependencies
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// Init runs schema migration on the injected connection.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: %w", ErrNotReady)
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.dbReady = true
	b.deps.Logger.Debug("Snapshot schema ready", "dialect", b.deps.DB.Name())
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (b *Backend) Close() error {
	b.dbReady = false
	return nil
}

// Save upserts the snapshot row for scope.
func (b *Backend) Save(ctx context.Context, scope string, snap model.CrowdsourceSnapshot) error {
	if !b.dbReady {
		return ErrNotReady
	}

	rec := model.CrowdsourceSnapshotRecord{
		Scope:       scope,
		MonsterID:   snap.MonsterID,
		MonsterName: snap.MonsterName,
		RemoteID:    snap.RemoteID,
	}
	err := b.deps.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot for scope %q: %w", scope, err)
	}
	return nil
}

// Load fetches the snapshot row for scope.
func (b *Backend) Load(ctx context.Context, scope string) (model.CrowdsourceSnapshot, bool, error) {
	if !b.dbReady {
		return model.CrowdsourceSnapshot{}, false, ErrNotReady
	}

	var rec model.CrowdsourceSnapshotRecord
	err := b.deps.DB.WithContext(ctx).Where("scope = ?", scope).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CrowdsourceSnapshot{}, false, nil
	}
	if err != nil {
		return model.CrowdsourceSnapshot{}, false, fmt.Errorf("failed to load snapshot for scope %q: %w", scope, err)
	}
	return rec.Snapshot(), true, nil
}
