package service

import (
	"context"
	"errors"
	"osrs-tracker/internal/api"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
)

// TypeClassifier infers a player's account type from the hiscores tables they appear in.
type TypeClassifier struct {
	players  *repository.PlayerRepository
	hiscores HiscoresClient
	logger   zerolog.Logger
}

func NewTypeClassifier(players *repository.PlayerRepository, hiscores HiscoresClient, logger zerolog.Logger) *TypeClassifier {
	return &TypeClassifier{players: players, hiscores: hiscores, logger: logger}
}

// AssertType returns the stored type when it is known and force is false. Otherwise it walks the
// hiscores tables and stores the result.
func (c *TypeClassifier) AssertType(ctx context.Context, raw string, force bool) (domain.AccountType, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	u, err := username.Normalize(raw)
	if err != nil {
		return domain.AccountTypeUnknown, err
	}

	player, err := c.players.FindByUsername(ctx, u.Key)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AccountTypeUnknown, domain.NotTracked(u.Display)
	}
	if err != nil {
		return domain.AccountTypeUnknown, err
	}

	if !force && player.Type != domain.AccountTypeUnknown {
		return player.Type, nil
	}

	accountType, err := c.classify(ctx, u.Key)
	if err != nil {
		c.logger.Warn().Err(err).Str("username", u.Key).Msg("failed to classify player")
		return domain.AccountTypeUnknown, err
	}

	if accountType != player.Type {
		if err := c.players.UpdateType(ctx, player.ID, accountType); err != nil {
			return domain.AccountTypeUnknown, err
		}
		c.logger.Info().
			Str("username", u.Key).
			Str("previous", string(player.Type)).
			Str("type", string(accountType)).
			Msg("player type changed")
	}

	return accountType, nil
}

// classify compares overall experience across tables. An ironman appears in the regular and ironman
// tables with equal experience, a hardcore or ultimate additionally in their own table. A de-ironed
// account keeps a stale, lower ironman entry.
func (c *TypeClassifier) classify(ctx context.Context, key string) (domain.AccountType, error) {
	regular, err := c.hiscores.FetchTable(ctx, api.TableRegular, key)
	if err != nil {
		return domain.AccountTypeUnknown, err
	}

	ironman, found, err := c.lookup(ctx, api.TableIronman, key)
	if err != nil {
		return domain.AccountTypeUnknown, err
	}
	if !found || ironman.OverallExperience() < regular.OverallExperience() {
		return domain.AccountTypeRegular, nil
	}

	ultimate, found, err := c.lookup(ctx, api.TableUltimate, key)
	if err != nil {
		return domain.AccountTypeUnknown, err
	}
	if found && ultimate.OverallExperience() >= ironman.OverallExperience() {
		return domain.AccountTypeUltimate, nil
	}

	hardcore, found, err := c.lookup(ctx, api.TableHardcore, key)
	if err != nil {
		return domain.AccountTypeUnknown, err
	}
	if found && hardcore.OverallExperience() >= ironman.OverallExperience() {
		return domain.AccountTypeHardcore, nil
	}

	return domain.AccountTypeIronman, nil
}

// lookup treats absence from a table as a normal outcome.
func (c *TypeClassifier) lookup(ctx context.Context, table api.Table, key string) (*api.HiscoresResult, bool, error) {
	result, err := c.hiscores.FetchTable(ctx, table, key)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}
