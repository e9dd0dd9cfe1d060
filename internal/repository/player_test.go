package repository_test

import (
	"testing"
	"time"

	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/username"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerRepositoryCreateAndFind(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)

	created := mustCreate(t, players, "test_player")
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Test Player", created.Username)
	assert.Equal(t, "test player", created.UsernameKey)
	assert.Equal(t, domain.AccountTypeUnknown, created.Type)
	assert.Nil(t, created.LastUpdatedAt)
	assert.Nil(t, created.LastImportedAt)

	byID, err := players.FindByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byName, err := players.FindByUsername(t.Context(), "test player")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = players.FindByID(t.Context(), 9999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = players.FindByUsername(t.Context(), "playerviewtest")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlayerRepositoryValidation(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)

	t.Run("length constraint", func(t *testing.T) {
		t.Parallel()

		_, err := players.Create(t.Context(), username.Format("ALongUsername"))
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, err.Error(), "Validation error: Username must be between")

		_, _, err = players.FindOrCreate(t.Context(), username.Format("ALongUsername"))
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		_, err := players.Create(t.Context(), username.Format(""))
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("duplicate is not a validation failure", func(t *testing.T) {
		t.Parallel()

		mustCreate(t, players, "dupe")
		_, err := players.Create(t.Context(), username.Format("DUPE"))
		require.Error(t, err)
		require.NotErrorIs(t, err, domain.ErrValidation)
	})
}

func TestPlayerRepositoryFindOrCreate(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)

	first, created, err := players.FindOrCreate(t.Context(), username.Format("iron_mammal"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Iron Mammal", first.Username)

	second, created, err := players.FindOrCreate(t.Context(), username.Format(" IRON mammal "))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestPlayerRepositorySearch(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)
	mustCreate(t, players, "Test Player")
	mustCreate(t, players, "Alt Player")

	result, err := players.Search(t.Context(), "tes", 20)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Test Player", result[0].Username)

	result, err = players.Search(t.Context(), "PLAYER", 20)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "Alt Player", result[0].Username)
	assert.Equal(t, "Test Player", result[1].Username)

	result, err = players.Search(t.Context(), "player", 1)
	require.NoError(t, err)
	require.Len(t, result, 1)

	for _, query := range []string{"something else", "%", "_"} {
		result, err = players.Search(t.Context(), query, 20)
		require.NoError(t, err)
		assert.Empty(t, result, query)
	}
}

func TestPlayerRepositoryUpdate(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)
	player := mustCreate(t, players, "zezima")

	now := time.UnixMilli(time.Now().UnixMilli())
	player.LastUpdatedAt = &now
	player.LastImportedAt = &now
	player.Type = domain.AccountTypeRegular
	require.NoError(t, players.Update(t.Context(), player))

	stored, err := players.FindByID(t.Context(), player.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastUpdatedAt)
	require.NotNil(t, stored.LastImportedAt)
	assert.True(t, now.Equal(*stored.LastUpdatedAt))
	assert.True(t, now.Equal(*stored.LastImportedAt))
	assert.Equal(t, domain.AccountTypeRegular, stored.Type)

	require.NoError(t, players.UpdateType(t.Context(), player.ID, domain.AccountTypeUltimate))
	stored, err = players.FindByID(t.Context(), player.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeUltimate, stored.Type)

	require.ErrorIs(t, players.UpdateType(t.Context(), 9999, domain.AccountTypeRegular), domain.ErrNotFound)

	player.ID = 9999
	require.ErrorIs(t, players.Update(t.Context(), player), domain.ErrNotFound)
}

func TestPlayerRepositoryDeleteIfUntracked(t *testing.T) {
	t.Parallel()

	players, _ := newRepositories(t)
	fresh := mustCreate(t, players, "fresh")
	tracked := mustCreate(t, players, "tracked")

	now := time.UnixMilli(1_700_000_000_000)
	tracked.LastUpdatedAt = &now
	require.NoError(t, players.Update(t.Context(), tracked))

	deleted, err := players.DeleteIfUntracked(t.Context(), tracked.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = players.DeleteIfUntracked(t.Context(), fresh.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = players.FindByID(t.Context(), fresh.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = players.FindByID(t.Context(), tracked.ID)
	require.NoError(t, err)
}
