package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"osrs-tracker/internal/api"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/database"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/jobs"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/username"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.UnixMilli(1_700_000_000_000)

type testEnv struct {
	players    *repository.PlayerRepository
	snapshots  *repository.SnapshotRepository
	hiscores   *stubHiscores
	history    *stubHistory
	dispatcher *recordingDispatcher
	cfg        *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "tracker.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	queries := db.New(sqlDB)
	return &testEnv{
		players:    repository.NewPlayerRepository(sqlDB, queries, zerolog.Nop()),
		snapshots:  repository.NewSnapshotRepository(sqlDB, queries, zerolog.Nop()),
		hiscores:   newStubHiscores(),
		history:    &stubHistory{},
		dispatcher: &recordingDispatcher{},
		cfg: &config.Config{
			TrackCooldown:  time.Minute,
			ImportCooldown: 24 * time.Hour,
		},
	}
}

func (e *testEnv) tracker(now time.Time) *Tracker {
	tr := NewTracker(e.cfg, e.players, e.snapshots, e.hiscores, e.dispatcher, zerolog.Nop())
	tr.now = func() time.Time { return now }
	return tr
}

func (e *testEnv) importer(now time.Time) *HistoryImporter {
	im := NewHistoryImporter(e.cfg, e.players, e.snapshots, e.history, zerolog.Nop())
	im.now = func() time.Time { return now }
	return im
}

func (e *testEnv) classifier() *TypeClassifier {
	return NewTypeClassifier(e.players, e.hiscores, zerolog.Nop())
}

func (e *testEnv) createPlayer(t *testing.T, raw string) *domain.Player {
	t.Helper()

	player, err := e.players.Create(t.Context(), username.Format(raw))
	require.NoError(t, err)
	return player
}

type stubHiscores struct {
	mu      sync.Mutex
	tables  map[api.Table]*api.HiscoresResult
	err     error
	delay   time.Duration
	fetches int
}

func newStubHiscores() *stubHiscores {
	return &stubHiscores{tables: map[api.Table]*api.HiscoresResult{}}
}

func (s *stubHiscores) set(table api.Table, overall int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = &api.HiscoresResult{
		ObservedAt: testNow.Add(-time.Second),
		Stats:      domain.Stats{"overall_experience": overall, "overall_rank": 10},
	}
}

func (s *stubHiscores) Fetch(ctx context.Context, key string) (*api.HiscoresResult, error) {
	return s.FetchTable(ctx, api.TableRegular, key)
}

func (s *stubHiscores) FetchTable(_ context.Context, table api.Table, _ string) (*api.HiscoresResult, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	result, ok := s.tables[table]
	if !ok {
		return nil, domain.PlayerNotFound(nil)
	}
	return result, nil
}

func (s *stubHiscores) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type stubHistory struct {
	mu           sync.Mutex
	observations []domain.Observation
	err          error
	delay        time.Duration
	calls        int
}

func (s *stubHistory) FetchHistory(context.Context, string) ([]domain.Observation, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.observations, s.err
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []jobs.Job
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *recordingDispatcher) kinds() []jobs.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]jobs.Kind, 0, len(d.jobs))
	for _, j := range d.jobs {
		kinds = append(kinds, j.Kind)
	}
	return kinds
}
