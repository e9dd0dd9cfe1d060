package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/username"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
	now     func() time.Time
}

func NewPlayerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
		now:     time.Now,
	}
}

// FindByID wraps domain.ErrNotFound when no player has the id.
func (r *PlayerRepository) FindByID(ctx context.Context, id int64) (*domain.Player, error) {
	player, err := r.queries.GetPlayerByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %d: %w", id, err)
	}
	return toDomainPlayer(player), nil
}

// FindByUsername looks a player up by its lower-cased key. It returns domain.ErrNotFound
// when no player has the key.
func (r *PlayerRepository) FindByUsername(ctx context.Context, key string) (*domain.Player, error) {
	player, err := r.queries.GetPlayerByUsernameKey(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %q", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %q: %w", key, err)
	}
	return toDomainPlayer(player), nil
}

// Create stores a new player. Constraint violations surface as domain.ErrValidation.
func (r *PlayerRepository) Create(ctx context.Context, u username.Username) (*domain.Player, error) {
	now := r.now().UnixMilli()
	player, err := r.queries.CreatePlayer(ctx, db.CreatePlayerParams{
		Username:    u.Display,
		UsernameKey: u.Key,
		Type:        string(domain.AccountTypeUnknown),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, translateConstraint(err)
	}

	r.logger.Info().Int64("player_id", player.ID).Str("username", player.Username).Msg("player created")
	return toDomainPlayer(player), nil
}

// FindOrCreate returns the player stored under u.Key, creating it first if needed.
// created reports whether this call inserted the row.
func (r *PlayerRepository) FindOrCreate(ctx context.Context, u username.Username) (player *domain.Player, created bool, err error) {
	now := r.now().UnixMilli()
	created, err = r.queries.InsertPlayerIfMissing(ctx, db.CreatePlayerParams{
		Username:    u.Display,
		UsernameKey: u.Key,
		Type:        string(domain.AccountTypeUnknown),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, false, translateConstraint(err)
	}

	player, err = r.FindByUsername(ctx, u.Key)
	if err != nil {
		return nil, false, err
	}

	if created {
		r.logger.Info().Int64("player_id", player.ID).Str("username", player.Username).Msg("player created")
	}
	return player, created, nil
}

// Update writes the mutable fields of player.
func (r *PlayerRepository) Update(ctx context.Context, player *domain.Player) error {
	n, err := r.queries.UpdatePlayer(ctx, db.UpdatePlayerParams{
		Username:       player.Username,
		Type:           string(player.Type),
		LastUpdatedAt:  toNullMillis(player.LastUpdatedAt),
		LastImportedAt: toNullMillis(player.LastImportedAt),
		UpdatedAt:      r.now().UnixMilli(),
		ID:             player.ID,
	})
	if err != nil {
		return translateConstraint(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: player %d", domain.ErrNotFound, player.ID)
	}
	return nil
}

func (r *PlayerRepository) UpdateType(ctx context.Context, id int64, accountType domain.AccountType) error {
	r.logger.Debug().Int64("player_id", id).Str("type", string(accountType)).Msg("setting player type")

	n, err := r.queries.UpdatePlayerType(ctx, db.UpdatePlayerTypeParams{
		Type:      string(accountType),
		UpdatedAt: r.now().UnixMilli(),
		ID:        id,
	})
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", id).Msg("failed to set player type")
		return fmt.Errorf("failed to set player type: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: player %d", domain.ErrNotFound, id)
	}
	return nil
}

// DeleteIfUntracked removes a player that was never successfully tracked or imported.
// It reports whether a row was deleted.
func (r *PlayerRepository) DeleteIfUntracked(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.DeleteUntrackedPlayer(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete player: %w", err)
	}
	if n > 0 {
		r.logger.Info().Int64("player_id", id).Msg("untracked player removed")
	}
	return n > 0, nil
}

// Search matches query as a case-insensitive substring of the username key.
func (r *PlayerRepository) Search(ctx context.Context, query string, limit int) ([]domain.Player, error) {
	searchPattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	players, err := r.queries.SearchPlayers(ctx, db.SearchPlayersParams{
		Pattern: searchPattern,
		Limit:   int64(limit),
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.Player, len(players))
	for i, p := range players {
		result[i] = *toDomainPlayer(p)
	}
	return result, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func translateConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return domain.ValidationFailed(domain.MsgUsernameLength, err)
		}
	}
	return fmt.Errorf("failed to write player: %w", err)
}

func toDomainPlayer(p db.Player) *domain.Player {
	return &domain.Player{
		ID:             p.ID,
		Username:       p.Username,
		UsernameKey:    p.UsernameKey,
		Type:           domain.ParseAccountType(p.Type),
		LastUpdatedAt:  fromNullMillis(p.LastUpdatedAt),
		LastImportedAt: fromNullMillis(p.LastImportedAt),
		CreatedAt:      time.UnixMilli(p.CreatedAt),
		UpdatedAt:      time.UnixMilli(p.UpdatedAt),
	}
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
