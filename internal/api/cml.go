package api

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/domain"

	"github.com/valyala/fasthttp"
)

// CMLClient reads backfill datapoints from Crystal Math Labs.
type CMLClient struct {
	upstream
	baseURL  string
	lookback time.Duration
}

func NewCMLClient(cfg *config.Config) *CMLClient {
	return newCMLClient(cfg.CMLBaseURL, newFastHTTPClient(), cfg.UpstreamRPS, cfg.HistoryLookback)
}

func newCMLClient(baseURL string, client *fasthttp.Client, rps float64, lookback time.Duration) *CMLClient {
	return &CMLClient{
		upstream: upstream{client: client, limiter: newLimiter(rps)},
		baseURL:  strings.TrimRight(baseURL, "/"),
		lookback: lookback,
	}
}

// FetchHistory returns the player's datapoints ordered by time. Any failure is domain.ErrHistoryUnavailable.
func (c *CMLClient) FetchHistory(ctx context.Context, key string) ([]domain.Observation, error) {
	u := fmt.Sprintf("%s/tracker/api.php?type=datapoints&player=%s&time=%d",
		c.baseURL, url.QueryEscape(key), int64(c.lookback.Seconds()))

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, domain.HistoryUnavailable(err)
	}
	if resp.status != fasthttp.StatusOK {
		return nil, domain.HistoryUnavailable(fmt.Errorf("cml error: %d", resp.status))
	}

	observations, err := parseDatapoints(resp.body)
	if err != nil {
		return nil, domain.HistoryUnavailable(err)
	}
	return observations, nil
}

// parseDatapoints reads one "<unix seconds> <experience>,<rank>,..." line per datapoint, with one
// experience/rank pair per skill. CML answers with a bare negative code on failure.
func parseDatapoints(body []byte) ([]domain.Observation, error) {
	trimmed := bytes.TrimSpace(body)
	if code, err := strconv.Atoi(string(trimmed)); err == nil && code < 0 {
		return nil, fmt.Errorf("cml returned error code %d", code)
	}

	var observations []domain.Observation
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		ts, rest, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("malformed datapoint: %q", text)
		}
		seconds, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed datapoint timestamp: %q", ts)
		}

		fields := strings.Split(rest, ",")
		if len(fields) < 2*len(Skills) {
			return nil, fmt.Errorf("datapoint has %d values, expected %d", len(fields), 2*len(Skills))
		}

		stats := domain.Stats{}
		for i, skill := range Skills {
			exp, err := strconv.ParseInt(fields[2*i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed %s experience: %q", skill, fields[2*i])
			}
			rank, err := strconv.ParseInt(fields[2*i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed %s rank: %q", skill, fields[2*i+1])
			}
			stats[skill+"_experience"] = exp
			stats[skill+"_rank"] = rank
		}

		observations = append(observations, domain.Observation{
			ObservedAt: time.Unix(seconds, 0),
			Stats:      stats,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read datapoints: %w", err)
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].ObservedAt.Before(observations[j].ObservedAt)
	})
	return observations, nil
}
