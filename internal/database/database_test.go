package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bpsr-logs/livemeter/internal/config"
	"github.com/bpsr-logs/livemeter/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.DBConfig
		want string
	}{
		{
			name: "default sslmode",
			cfg:  config.DBConfig{Host: "h", Port: "5432", Username: "u", Password: "p", Database: "d"},
			want: "host=h port=5432 user=u password=p dbname=d sslmode=disable",
		},
		{
			name: "explicit sslmode",
			cfg:  config.DBConfig{Host: "h", Port: "1", Username: "u", Password: "p", Database: "d", SSLMode: "require"},
			want: "host=h port=1 user=u password=p dbname=d sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PostgresDSN(tt.cfg))
		})
	}
}

func TestOpenSqlite_MigrateAndPing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.db")

	db, err := OpenSqlite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(context.Background(), db, time.Second))
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&model.CrowdsourceSnapshotRecord{}))

	// idempotent
	require.NoError(t, Migrate(db))
}
