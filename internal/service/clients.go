package service

import (
	"context"
	"osrs-tracker/internal/api"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/jobs"
)

type HiscoresClient interface {
	// Fetch queries the regular table, bypassing any cache.
	//
	// Fails with domain.ErrPlayerNotFound when the provider has no record of the player and with
	// domain.ErrUpstreamUnavailable on transport or provider errors.
	Fetch(ctx context.Context, key string) (*api.HiscoresResult, error)
	// FetchTable has the same failure contract as Fetch.
	FetchTable(ctx context.Context, table api.Table, key string) (*api.HiscoresResult, error)
}

type HistoryClient interface {
	// Fails with domain.ErrHistoryUnavailable.
	FetchHistory(ctx context.Context, key string) ([]domain.Observation, error)
}

// Dispatcher queues follow-up work. Enqueue must not block.
type Dispatcher interface {
	Enqueue(job jobs.Job)
}
