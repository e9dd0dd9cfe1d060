package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/cooldown"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/jobs"
	"osrs-tracker/internal/keylock"
	"osrs-tracker/internal/middleware"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
)

// Tracker records a new snapshot of a player's hiscores.
type Tracker struct {
	players    *repository.PlayerRepository
	snapshots  *repository.SnapshotRepository
	hiscores   HiscoresClient
	dispatcher Dispatcher
	guard      cooldown.Guard
	locks      *keylock.Locker
	logger     zerolog.Logger
	now        func() time.Time
}

func NewTracker(
	cfg *config.Config,
	players *repository.PlayerRepository,
	snapshots *repository.SnapshotRepository,
	hiscores HiscoresClient,
	dispatcher Dispatcher,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		players:    players,
		snapshots:  snapshots,
		hiscores:   hiscores,
		dispatcher: dispatcher,
		guard:      cooldown.NewTrackGuard(cfg.TrackCooldown),
		locks:      keylock.New(),
		logger:     logger,
		now:        time.Now,
	}
}

// Track fetches the player's current stats and stores them, creating the player on first sight.
// Cooldown and hiscores failures are reported as domain.ErrUpdateFailed.
func (t *Tracker) Track(ctx context.Context, raw string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	u, err := username.Normalize(raw)
	if err != nil {
		return nil, err
	}

	player, created, err := t.players.FindOrCreate(ctx, u)
	if err != nil {
		t.logger.Error().Err(err).Str("username", u.Key).Msg("failed to find or create player")
		return nil, err
	}

	logger := t.logger.With().Int64("player_id", player.ID).Str("username", player.Username).Logger()
	if created {
		logger.Info().Msg("tracking new player")
	} else {
		logger.Debug().Msg("tracking existing player")
	}

	player, err = t.update(ctx, player.ID, player.UsernameKey, logger)
	if err != nil {
		return nil, err
	}

	t.dispatchFollowUps(ctx, player)

	logger.Info().Msg("player tracked successfully")
	return player, nil
}

// update runs cooldown check, fetch and persist while holding the player's track lock.
// A player created for this call is removed again when the fetch fails.
func (t *Tracker) update(ctx context.Context, playerID int64, key string, logger zerolog.Logger) (*domain.Player, error) {
	unlock := t.locks.Lock("track:" + key)
	defer unlock()

	// Another track may have finished, or failed and removed the player, while this one waited.
	player, err := t.players.FindByID(ctx, playerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UpdateFailed(domain.PlayerNotFound(err))
	}
	if err != nil {
		return nil, err
	}

	now := t.now()
	if err := t.guard.Check(player.LastUpdatedAt, now); err != nil {
		logger.Info().Err(err).Msg("tracked too soon")
		return nil, domain.UpdateFailed(err)
	}

	result, err := t.hiscores.Fetch(ctx, player.UsernameKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to fetch hiscores")
		// Players only exist once a track succeeded.
		if player.LastUpdatedAt == nil {
			if _, delErr := t.players.DeleteIfUntracked(ctx, player.ID); delErr != nil {
				logger.Error().Err(delErr).Msg("failed to remove untracked player")
			}
		}
		return nil, domain.UpdateFailed(err)
	}

	t.logChange(ctx, player.ID, result.Stats, logger)

	snapshot := &domain.Snapshot{
		PlayerID:   player.ID,
		ObservedAt: result.ObservedAt,
		Stats:      result.Stats,
	}
	created, err := t.snapshots.CreateTracked(ctx, player.ID, snapshot, now)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	if !created {
		logger.Debug().Time("observed_at", snapshot.ObservedAt).Msg("snapshot already stored for this timestamp")
	}

	player.LastUpdatedAt = &now
	return player, nil
}

// logChange only logs whether the stats moved since the latest snapshot. A tracked snapshot is
// stored either way so last_updated_at and the observation history stay complete.
func (t *Tracker) logChange(ctx context.Context, playerID int64, stats domain.Stats, logger zerolog.Logger) {
	latest, err := t.snapshots.FindLatest(ctx, playerID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug().Msg("first snapshot for player")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read latest snapshot")
		return
	}

	changed := !maps.Equal(latest.Stats, stats)
	logger.Debug().Bool("changed", changed).Time("previous", latest.ObservedAt).Msg("compared with latest snapshot")
}

func (t *Tracker) dispatchFollowUps(ctx context.Context, player *domain.Player) {
	requestID := middleware.GetRequestID(ctx)
	for _, kind := range []jobs.Kind{jobs.KindConfirmPlayerType, jobs.KindImportPlayer} {
		t.dispatcher.Enqueue(jobs.Job{
			Kind:      kind,
			PlayerID:  player.ID,
			Username:  player.Username,
			RequestID: requestID,
		})
	}
}
