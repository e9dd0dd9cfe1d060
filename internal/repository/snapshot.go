package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/domain"

	json "github.com/goccy/go-json"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
	now     func() time.Time
}

func NewSnapshotRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
		now:     time.Now,
	}
}

// Create stores snapshot unless one already exists for the player at the same timestamp.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *domain.Snapshot) (bool, error) {
	return r.insert(ctx, r.queries, snapshot)
}

// CreateBatch stores snapshots in a single transaction and returns how many were new.
func (r *SnapshotRepository) CreateBatch(ctx context.Context, snapshots []domain.Snapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	var inserted int
	err := r.inTx(ctx, func(qtx *db.Queries) error {
		var err error
		inserted, err = r.insertBatch(ctx, qtx, snapshots)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CreateTracked stores snapshot and marks the player as updated at trackedAt in one transaction.
// An existing snapshot at the same timestamp is kept and only the player is updated.
func (r *SnapshotRepository) CreateTracked(ctx context.Context, playerID int64, snapshot *domain.Snapshot, trackedAt time.Time) (bool, error) {
	var created bool
	err := r.inTx(ctx, func(qtx *db.Queries) error {
		var err error
		created, err = r.insert(ctx, qtx, snapshot)
		if err != nil {
			return err
		}

		n, err := qtx.UpdatePlayerLastUpdatedAt(ctx, db.UpdatePlayerLastUpdatedAtParams{
			LastUpdatedAt: trackedAt.UnixMilli(),
			UpdatedAt:     r.now().UnixMilli(),
			ID:            playerID,
		})
		if err != nil {
			return fmt.Errorf("failed to set last updated at: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: player %d", domain.ErrNotFound, playerID)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to store tracked snapshot")
		return false, err
	}

	r.logger.Debug().
		Int64("player_id", playerID).
		Time("observed_at", snapshot.ObservedAt).
		Bool("created", created).
		Msg("tracked snapshot stored")
	return created, nil
}

// ImportBatch stores snapshots and marks the player as imported at importedAt in one transaction.
// Snapshots colliding with an existing timestamp are skipped and not counted.
func (r *SnapshotRepository) ImportBatch(ctx context.Context, playerID int64, snapshots []domain.Snapshot, importedAt time.Time) (int, error) {
	var inserted int
	err := r.inTx(ctx, func(qtx *db.Queries) error {
		var err error
		inserted, err = r.insertBatch(ctx, qtx, snapshots)
		if err != nil {
			return err
		}

		n, err := qtx.UpdatePlayerLastImportedAt(ctx, db.UpdatePlayerLastImportedAtParams{
			LastImportedAt: importedAt.UnixMilli(),
			UpdatedAt:      r.now().UnixMilli(),
			ID:             playerID,
		})
		if err != nil {
			return fmt.Errorf("failed to set last imported at: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: player %d", domain.ErrNotFound, playerID)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Int64("player_id", playerID).Msg("failed to import snapshots")
		return 0, err
	}
	return inserted, nil
}

// FindLatest wraps domain.ErrNotFound when the player has no snapshots.
func (r *SnapshotRepository) FindLatest(ctx context.Context, playerID int64) (*domain.Snapshot, error) {
	row, err := r.queries.GetLatestSnapshot(ctx, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no snapshots for player %d", domain.ErrNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return toDomainSnapshot(row)
}

func (r *SnapshotRepository) ExistsAt(ctx context.Context, playerID int64, observedAt time.Time) (bool, error) {
	return r.queries.SnapshotExistsAt(ctx, db.SnapshotExistsAtParams{
		PlayerID:   playerID,
		ObservedAt: observedAt.UnixMilli(),
	})
}

// TimestampsBetween returns the observation times (unix millis) stored for the player in [from, to].
func (r *SnapshotRepository) TimestampsBetween(ctx context.Context, playerID int64, from, to time.Time) (map[int64]struct{}, error) {
	rows, err := r.queries.ListSnapshotTimestamps(ctx, db.ListSnapshotTimestampsParams{
		PlayerID: playerID,
		From:     from.UnixMilli(),
		To:       to.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot timestamps: %w", err)
	}

	result := make(map[int64]struct{}, len(rows))
	for _, ts := range rows {
		result[ts] = struct{}{}
	}
	return result, nil
}

func (r *SnapshotRepository) Count(ctx context.Context, playerID int64) (int64, error) {
	return r.queries.CountSnapshots(ctx, playerID)
}

func (r *SnapshotRepository) inTx(ctx context.Context, fn func(qtx *db.Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SnapshotRepository) insertBatch(ctx context.Context, qtx *db.Queries, snapshots []domain.Snapshot) (int, error) {
	var inserted int
	for i := 0; i < len(snapshots); i += constants.DBBatchSize {
		end := min(i+constants.DBBatchSize, len(snapshots))

		for j := range snapshots[i:end] {
			created, err := r.insert(ctx, qtx, &snapshots[i+j])
			if err != nil {
				return 0, err
			}
			if created {
				inserted++
			}
		}
	}
	return inserted, nil
}

func (r *SnapshotRepository) insert(ctx context.Context, q *db.Queries, snapshot *domain.Snapshot) (bool, error) {
	if snapshot.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return false, fmt.Errorf("failed to generate nanoid: %w", err)
		}
		snapshot.ID = id
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = r.now()
	}

	stats, err := json.Marshal(snapshot.Stats)
	if err != nil {
		return false, fmt.Errorf("failed to encode stats: %w", err)
	}

	created, err := q.InsertSnapshot(ctx, db.InsertSnapshotParams{
		ID:         snapshot.ID,
		PlayerID:   snapshot.PlayerID,
		ObservedAt: snapshot.ObservedAt.UnixMilli(),
		Stats:      string(stats),
		CreatedAt:  snapshot.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return created, nil
}

func toDomainSnapshot(row db.Snapshot) (*domain.Snapshot, error) {
	var stats domain.Stats
	if err := json.Unmarshal([]byte(row.Stats), &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats of snapshot %s: %w", row.ID, err)
	}

	return &domain.Snapshot{
		ID:         row.ID,
		PlayerID:   row.PlayerID,
		ObservedAt: time.UnixMilli(row.ObservedAt),
		Stats:      stats,
		CreatedAt:  time.UnixMilli(row.CreatedAt),
	}, nil
}
