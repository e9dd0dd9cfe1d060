package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/cooldown"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/keylock"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
)

// HistoryImporter backfills snapshots from the history provider.
type HistoryImporter struct {
	players   *repository.PlayerRepository
	snapshots *repository.SnapshotRepository
	history   HistoryClient
	guard     cooldown.Guard
	locks     *keylock.Locker
	logger    zerolog.Logger
	now       func() time.Time
}

func NewHistoryImporter(
	cfg *config.Config,
	players *repository.PlayerRepository,
	snapshots *repository.SnapshotRepository,
	history HistoryClient,
	logger zerolog.Logger,
) *HistoryImporter {
	return &HistoryImporter{
		players:   players,
		snapshots: snapshots,
		history:   history,
		guard:     cooldown.NewImportGuard(cfg.ImportCooldown),
		locks:     keylock.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// ImportHistory stores every observation not already present for the player and returns how many
// were added. Zero is a successful outcome.
func (i *HistoryImporter) ImportHistory(ctx context.Context, raw string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.JobTimeout)
	defer cancel()

	u, err := username.Normalize(raw)
	if err != nil {
		return 0, err
	}

	player, err := i.players.FindByUsername(ctx, u.Key)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, domain.NotTracked(u.Display)
	}
	if err != nil {
		return 0, err
	}

	unlock := i.locks.Lock("import:" + u.Key)
	defer unlock()

	player, err = i.players.FindByID(ctx, player.ID)
	if err != nil {
		return 0, err
	}

	logger := i.logger.With().Int64("player_id", player.ID).Str("username", player.Username).Logger()

	now := i.now()
	if err := i.guard.Check(player.LastImportedAt, now); err != nil {
		logger.Info().Err(err).Msg("imported too soon")
		return 0, err
	}

	observations, err := i.history.FetchHistory(ctx, u.Key)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch history")
		return 0, err
	}

	fresh, err := i.dedup(ctx, player.ID, observations)
	if err != nil {
		return 0, err
	}

	count, err := i.snapshots.ImportBatch(ctx, player.ID, fresh, now)
	if err != nil {
		return 0, fmt.Errorf("failed to store imported snapshots: %w", err)
	}

	logger.Info().
		Int("received", len(observations)).
		Int("imported", count).
		Msg("history imported")

	return count, nil
}

// dedup drops observations whose timestamp is already stored or repeated within the batch.
func (i *HistoryImporter) dedup(ctx context.Context, playerID int64, observations []domain.Observation) ([]domain.Snapshot, error) {
	if len(observations) == 0 {
		return nil, nil
	}

	from, to := observations[0].ObservedAt, observations[0].ObservedAt
	for _, o := range observations[1:] {
		if o.ObservedAt.Before(from) {
			from = o.ObservedAt
		}
		if o.ObservedAt.After(to) {
			to = o.ObservedAt
		}
	}

	seen, err := i.snapshots.TimestampsBetween(ctx, playerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing snapshots: %w", err)
	}

	snapshots := make([]domain.Snapshot, 0, len(observations))
	for _, o := range observations {
		ms := o.ObservedAt.UnixMilli()
		if _, ok := seen[ms]; ok {
			continue
		}
		seen[ms] = struct{}{}
		snapshots = append(snapshots, domain.Snapshot{
			PlayerID:   playerID,
			ObservedAt: o.ObservedAt,
			Stats:      o.Stats,
		})
	}
	return snapshots, nil
}
