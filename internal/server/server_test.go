package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"osrs-tracker/internal/api"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/database"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/domain"
	"osrs-tracker/internal/jobs"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHiscores struct {
	overall int64
}

func (f fakeHiscores) Fetch(ctx context.Context, key string) (*api.HiscoresResult, error) {
	return f.FetchTable(ctx, api.TableRegular, key)
}

func (f fakeHiscores) FetchTable(_ context.Context, table api.Table, key string) (*api.HiscoresResult, error) {
	if key == "nobody" || table != api.TableRegular {
		return nil, domain.PlayerNotFound(nil)
	}
	return &api.HiscoresResult{
		ObservedAt: time.UnixMilli(1_700_000_000_000),
		Stats:      domain.Stats{"overall_experience": f.overall},
	}, nil
}

type fakeHistory struct{}

func (fakeHistory) FetchHistory(context.Context, string) ([]domain.Observation, error) {
	return []domain.Observation{
		{ObservedAt: time.UnixMilli(1_600_000_000_000), Stats: domain.Stats{"overall_experience": 10}},
		{ObservedAt: time.UnixMilli(1_600_000_000_000), Stats: domain.Stats{"overall_experience": 10}},
	}, nil
}

type discardDispatcher struct{}

func (discardDispatcher) Enqueue(jobs.Job) {}

func newTestServer(t *testing.T) *TrackerServer {
	t.Helper()

	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "tracker.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	cfg := &config.Config{TrackCooldown: time.Minute, ImportCooldown: 24 * time.Hour}
	queries := db.New(sqlDB)
	players := repository.NewPlayerRepository(sqlDB, queries, zerolog.Nop())
	snapshots := repository.NewSnapshotRepository(sqlDB, queries, zerolog.Nop())
	hiscores := fakeHiscores{overall: 1234}

	return NewTrackerServer(
		service.NewPlayerService(players, snapshots, zerolog.Nop()),
		service.NewTracker(cfg, players, snapshots, hiscores, discardDispatcher{}, zerolog.Nop()),
		service.NewTypeClassifier(players, hiscores, zerolog.Nop()),
		service.NewHistoryImporter(cfg, players, snapshots, fakeHistory{}, zerolog.Nop()),
		zerolog.Nop(),
	)
}

func TestTrackerServerFlow(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx := t.Context()

	tracked, err := s.TrackPlayer(ctx, connect.NewRequest(&TrackPlayerRequest{Username: "zezima"}))
	require.NoError(t, err)
	assert.Equal(t, "Zezima", tracked.Msg.Username)

	player, err := s.GetPlayer(ctx, connect.NewRequest(&GetPlayerRequest{ID: &tracked.Msg.ID}))
	require.NoError(t, err)
	require.NotNil(t, player.Msg.LatestSnapshot)
	assert.Equal(t, int64(1234), player.Msg.LatestSnapshot.Stats["overall_experience"])

	assertType, err := s.AssertPlayerType(ctx, connect.NewRequest(&AssertPlayerTypeRequest{Username: "zezima", Force: true}))
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeRegular, assertType.Msg.Type)

	imported, err := s.ImportPlayer(ctx, connect.NewRequest(&ImportPlayerRequest{Username: "zezima"}))
	require.NoError(t, err)
	assert.Equal(t, 1, imported.Msg.Count)
	assert.Equal(t, "1 snapshots imported from CML", imported.Msg.Message)

	search, err := s.SearchPlayers(ctx, connect.NewRequest(&SearchPlayersRequest{Query: "zez"}))
	require.NoError(t, err)
	require.Len(t, search.Msg.Players, 1)
	assert.Equal(t, tracked.Msg.ID, search.Msg.Players[0].ID)
}

func TestTrackerServerErrorCodes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	ctx := t.Context()

	_, err := s.TrackPlayer(ctx, connect.NewRequest(&TrackPlayerRequest{Username: ""}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = s.TrackPlayer(ctx, connect.NewRequest(&TrackPlayerRequest{Username: "nobody"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "Failed to update:")

	missing := int64(9999)
	_, err = s.GetPlayer(ctx, connect.NewRequest(&GetPlayerRequest{ID: &missing}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = s.ImportPlayer(ctx, connect.NewRequest(&ImportPlayerRequest{Username: "ghost"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "is not being tracked yet.")

	_, err = s.TrackPlayer(ctx, connect.NewRequest(&TrackPlayerRequest{Username: "zezima"}))
	require.NoError(t, err)
	_, err = s.ImportPlayer(ctx, connect.NewRequest(&ImportPlayerRequest{Username: "zezima"}))
	require.NoError(t, err)
	_, err = s.ImportPlayer(ctx, connect.NewRequest(&ImportPlayerRequest{Username: "zezima"}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Contains(t, err.Error(), "Imported too soon")
}

func TestToConnectError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code connect.Code
	}{
		{domain.InvalidUsername(), connect.CodeInvalidArgument},
		{domain.UpdateFailed(domain.UpstreamUnavailable(errors.New("down"))), connect.CodeInvalidArgument},
		{domain.ImportTooSoon(time.Hour), connect.CodeFailedPrecondition},
		{domain.NotTrackedID(1), connect.CodeNotFound},
		{domain.HistoryUnavailable(errors.New("down")), connect.CodeUnavailable},
		{domain.ValidationFailed("bad", nil), connect.CodeInternal},
		{errors.New("boom"), connect.CodeInternal},
	}

	for _, c := range cases {
		err := toConnectError(c.err)
		assert.Equal(t, c.code, connect.CodeOf(err), c.err.Error())
		assert.ErrorIs(t, err, c.err)
	}
}

func TestTrackerServerOverHTTP(t *testing.T) {
	t.Parallel()

	path, handler := newTestServer(t).Handler()
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	httpServer := httptest.NewServer(mux)
	t.Cleanup(httpServer.Close)

	track := connect.NewClient[TrackPlayerRequest, Player](
		httpServer.Client(), httpServer.URL+TrackPlayerProcedure, connect.WithCodec(jsonCodec{}))
	resp, err := track.CallUnary(t.Context(), connect.NewRequest(&TrackPlayerRequest{Username: "lynx_titan"}))
	require.NoError(t, err)
	assert.Equal(t, "Lynx Titan", resp.Msg.Username)

	view := connect.NewClient[GetPlayerRequest, Player](
		httpServer.Client(), httpServer.URL+GetPlayerProcedure, connect.WithCodec(jsonCodec{}))
	_, err = view.CallUnary(t.Context(), connect.NewRequest(&GetPlayerRequest{Username: "playerViewTest"}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, "playerViewTest is not being tracked yet.", connectErr.Message())
}
