package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/constants"
	"osrs-tracker/internal/domain"

	"github.com/jellydator/ttlcache/v3"
	"github.com/valyala/fasthttp"
)

// Table is one of the hiscores leaderboards.
type Table string

const (
	TableRegular  Table = "hiscore_oldschool"
	TableIronman  Table = "hiscore_oldschool_ironman"
	TableHardcore Table = "hiscore_oldschool_hardcore_ironman"
	TableUltimate Table = "hiscore_oldschool_ultimate"
)

var Skills = []string{
	"overall", "attack", "defence", "strength", "hitpoints", "ranged", "prayer", "magic",
	"cooking", "woodcutting", "fletching", "fishing", "firemaking", "crafting", "smithing",
	"mining", "herblore", "agility", "thieving", "slayer", "farming", "runecrafting",
	"hunter", "construction",
}

// Activities follow the skills in the index_lite response. Lines past the known ones are ignored.
var Activities = []string{
	"league_points", "deadman_points", "bounty_hunter_hunter", "bounty_hunter_rogue",
	"bounty_hunter_legacy_hunter", "bounty_hunter_legacy_rogue", "clue_scrolls_all",
	"clue_scrolls_beginner", "clue_scrolls_easy", "clue_scrolls_medium", "clue_scrolls_hard",
	"clue_scrolls_elite", "clue_scrolls_master", "last_man_standing", "pvp_arena",
	"soul_wars_zeal", "guardians_of_the_rift",
}

type HiscoresResult struct {
	// ObservedAt is the provider's response time, or the local time if it sent none.
	ObservedAt time.Time
	Stats      domain.Stats
}

// OverallExperience returns -1 when the player is unranked overall.
func (r *HiscoresResult) OverallExperience() int64 {
	if v, ok := r.Stats["overall_experience"]; ok {
		return v
	}
	return -1
}

type HiscoresClient struct {
	upstream
	baseURL string
	cache   *ttlcache.Cache[string, *HiscoresResult]
	now     func() time.Time
}

func NewHiscoresClient(cfg *config.Config) *HiscoresClient {
	return newHiscoresClient(cfg.HiscoresBaseURL, newFastHTTPClient(), cfg.UpstreamRPS, constants.HiscoresCacheTTL)
}

func newHiscoresClient(baseURL string, client *fasthttp.Client, rps float64, ttl time.Duration) *HiscoresClient {
	cache := ttlcache.New[string, *HiscoresResult](
		ttlcache.WithTTL[string, *HiscoresResult](ttl),
		ttlcache.WithDisableTouchOnHit[string, *HiscoresResult](),
	)
	go cache.Start()

	return &HiscoresClient{
		upstream: upstream{client: client, limiter: newLimiter(rps)},
		baseURL:  strings.TrimRight(baseURL, "/"),
		cache:    cache,
		now:      time.Now,
	}
}

// Stop releases the cache janitor.
func (c *HiscoresClient) Stop() {
	c.cache.Stop()
}

// Fetch always queries the regular table. The result is cached for FetchTable.
//
// Fails with domain.ErrPlayerNotFound when the table has no such player and with
// domain.ErrUpstreamUnavailable on transport or provider errors.
func (c *HiscoresClient) Fetch(ctx context.Context, key string) (*HiscoresResult, error) {
	result, err := c.fetch(ctx, TableRegular, key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey(TableRegular, key), result, ttlcache.DefaultTTL)
	return result, nil
}

// FetchTable queries table, reusing a recent result for the same player if there is one.
func (c *HiscoresClient) FetchTable(ctx context.Context, table Table, key string) (*HiscoresResult, error) {
	if item := c.cache.Get(cacheKey(table, key)); item != nil {
		return item.Value(), nil
	}

	result, err := c.fetch(ctx, table, key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(cacheKey(table, key), result, ttlcache.DefaultTTL)
	return result, nil
}

func (c *HiscoresClient) fetch(ctx context.Context, table Table, key string) (*HiscoresResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	u := fmt.Sprintf("%s/m=%s/index_lite.ws?player=%s", c.baseURL, table, url.QueryEscape(key))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, domain.UpstreamUnavailable(err)
	}

	switch resp.status {
	case fasthttp.StatusOK:
	case fasthttp.StatusNotFound:
		return nil, domain.PlayerNotFound(fmt.Errorf("%s has no entry for %q", table, key))
	default:
		return nil, domain.UpstreamUnavailable(fmt.Errorf("hiscores error: %d", resp.status))
	}

	stats, err := parseIndexLite(resp.body)
	if err != nil {
		return nil, domain.UpstreamUnavailable(err)
	}

	observedAt := resp.date
	if observedAt.IsZero() {
		observedAt = c.now()
	}

	return &HiscoresResult{ObservedAt: observedAt, Stats: stats}, nil
}

func cacheKey(table Table, key string) string {
	return string(table) + "|" + key
}

// parseIndexLite reads "rank,level,experience" lines for every skill followed by
// "rank,score" lines for activities.
func parseIndexLite(body []byte) (domain.Stats, error) {
	stats := domain.Stats{}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	line := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ",")
		values := make([]int64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed hiscores line %d: %q", line, text)
			}
			values[i] = v
		}

		switch {
		case line < len(Skills):
			if len(values) != 3 {
				return nil, fmt.Errorf("malformed skill line %d: %q", line, text)
			}
			name := Skills[line]
			stats[name+"_rank"] = values[0]
			stats[name+"_level"] = values[1]
			stats[name+"_experience"] = values[2]
		case line-len(Skills) < len(Activities):
			if len(values) != 2 {
				return nil, fmt.Errorf("malformed activity line %d: %q", line, text)
			}
			name := Activities[line-len(Skills)]
			stats[name+"_rank"] = values[0]
			stats[name+"_score"] = values[1]
		}
		line++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hiscores: %w", err)
	}

	if line < len(Skills) {
		return nil, fmt.Errorf("hiscores response has %d lines, expected at least %d", line, len(Skills))
	}
	return stats, nil
}
