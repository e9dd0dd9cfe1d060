package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	players   *repository.PlayerRepository
	snapshots *repository.SnapshotRepository
	logger    zerolog.Logger
}

func NewPlayerService(players *repository.PlayerRepository, snapshots *repository.SnapshotRepository, logger zerolog.Logger) *PlayerService {
	return &PlayerService{players: players, snapshots: snapshots, logger: logger}
}

// ViewQuery selects a player by username or, when Username is empty, by ID.
type ViewQuery struct {
	ID       *int64
	Username string
}

func (s *PlayerService) View(ctx context.Context, q ViewQuery) (*domain.PlayerDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var player *domain.Player
	switch {
	case strings.TrimSpace(q.Username) != "":
		// Lookups skip the length bound; an oversized name is simply not tracked.
		u := username.Format(q.Username)

		var err error
		player, err = s.players.FindByUsername(ctx, u.Key)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotTracked(strings.TrimSpace(q.Username))
		}
		if err != nil {
			s.logger.Error().Err(err).Str("username", u.Key).Msg("failed to get player")
			return nil, err
		}
	case q.ID != nil:
		var err error
		player, err = s.players.FindByID(ctx, *q.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotTrackedID(*q.ID)
		}
		if err != nil {
			s.logger.Error().Err(err).Int64("player_id", *q.ID).Msg("failed to get player")
			return nil, err
		}
	default:
		return nil, domain.InvalidPlayerID()
	}

	details := &domain.PlayerDetails{Player: *player}

	latest, err := s.snapshots.FindLatest(ctx, player.ID)
	switch {
	case err == nil:
		details.LatestSnapshot = latest
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	return details, nil
}

func (s *PlayerService) Search(ctx context.Context, query string) ([]domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	key := username.Format(query).Key
	if key == "" {
		return nil, domain.InvalidUsername()
	}

	s.logger.Debug().Str("query", key).Msg("searching players")

	players, err := s.players.Search(ctx, key, constants.SearchSuggestionLimit)
	if err != nil {
		s.logger.Error().Err(err).Str("query", key).Msg("failed to search players")
		return nil, err
	}

	s.logger.Info().Int("count", len(players)).Str("query", key).Msg("search completed")
	return players, nil
}
