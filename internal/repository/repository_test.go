package repository_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"osrs-tracker/internal/database"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "tracker.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func newRepositories(t *testing.T) (*repository.PlayerRepository, *repository.SnapshotRepository) {
	t.Helper()

	sqlDB := newTestDB(t)
	queries := db.New(sqlDB)
	return repository.NewPlayerRepository(sqlDB, queries, zerolog.Nop()),
		repository.NewSnapshotRepository(sqlDB, queries, zerolog.Nop())
}

func mustCreate(t *testing.T, players *repository.PlayerRepository, raw string) *domain.Player {
	t.Helper()

	player, err := players.Create(t.Context(), username.Format(raw))
	require.NoError(t, err)
	return player
}
