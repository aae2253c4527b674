package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ads.db")

	db, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	require.Equal(t, "wal", mode)
	require.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNewPoolRejectsBadIdleTime(t *testing.T) {
	_, err := New(context.Background(), "postgres://localhost:5432/ads", 4, "soon")
	require.Error(t, err)
}
