package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"osrs-tracker/internal/middleware"
	"osrs-tracker/internal/reporting"
	"osrs-tracker/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const (
	ServicePath = "/tracker.v1.PlayerService/"

	GetPlayerProcedure        = ServicePath + "GetPlayer"
	SearchPlayersProcedure    = ServicePath + "SearchPlayers"
	TrackPlayerProcedure      = ServicePath + "TrackPlayer"
	AssertPlayerTypeProcedure = ServicePath + "AssertPlayerType"
	ImportPlayerProcedure     = ServicePath + "ImportPlayer"
)

type TrackerServer struct {
	playerSvc  *service.PlayerService
	tracker    *service.Tracker
	classifier *service.TypeClassifier
	importer   *service.HistoryImporter
	logger     zerolog.Logger
}

func NewTrackerServer(
	playerSvc *service.PlayerService,
	tracker *service.Tracker,
	classifier *service.TypeClassifier,
	importer *service.HistoryImporter,
	logger zerolog.Logger,
) *TrackerServer {
	return &TrackerServer{
		playerSvc:  playerSvc,
		tracker:    tracker,
		classifier: classifier,
		importer:   importer,
		logger:     logger,
	}
}

// Handler returns the path prefix and handler serving every PlayerService procedure.
func (s *TrackerServer) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(s.logInterceptor()),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetPlayerProcedure, connect.NewUnaryHandler(GetPlayerProcedure, s.GetPlayer, opts...))
	mux.Handle(SearchPlayersProcedure, connect.NewUnaryHandler(SearchPlayersProcedure, s.SearchPlayers, opts...))
	mux.Handle(TrackPlayerProcedure, connect.NewUnaryHandler(TrackPlayerProcedure, s.TrackPlayer, opts...))
	mux.Handle(AssertPlayerTypeProcedure, connect.NewUnaryHandler(AssertPlayerTypeProcedure, s.AssertPlayerType, opts...))
	mux.Handle(ImportPlayerProcedure, connect.NewUnaryHandler(ImportPlayerProcedure, s.ImportPlayer, opts...))
	return ServicePath, mux
}

func (s *TrackerServer) GetPlayer(ctx context.Context, req *connect.Request[GetPlayerRequest]) (*connect.Response[Player], error) {
	details, err := s.playerSvc.View(ctx, service.ViewQuery{ID: req.Msg.ID, Username: req.Msg.Username})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toPlayerDetails(details)), nil
}

func (s *TrackerServer) SearchPlayers(ctx context.Context, req *connect.Request[SearchPlayersRequest]) (*connect.Response[SearchPlayersResponse], error) {
	players, err := s.playerSvc.Search(ctx, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &SearchPlayersResponse{Players: make([]*Player, 0, len(players))}
	for i := range players {
		resp.Players = append(resp.Players, toPlayer(&players[i]))
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) TrackPlayer(ctx context.Context, req *connect.Request[TrackPlayerRequest]) (*connect.Response[Player], error) {
	player, err := s.tracker.Track(ctx, req.Msg.Username)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toPlayer(player)), nil
}

func (s *TrackerServer) AssertPlayerType(ctx context.Context, req *connect.Request[AssertPlayerTypeRequest]) (*connect.Response[AssertPlayerTypeResponse], error) {
	accountType, err := s.classifier.AssertType(ctx, req.Msg.Username, req.Msg.Force)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AssertPlayerTypeResponse{Type: accountType}), nil
}

func (s *TrackerServer) ImportPlayer(ctx context.Context, req *connect.Request[ImportPlayerRequest]) (*connect.Response[ImportPlayerResponse], error) {
	count, err := s.importer.ImportHistory(ctx, req.Msg.Username)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ImportPlayerResponse{
		Count:   count,
		Message: fmt.Sprintf("%d snapshots imported from CML", count),
	}), nil
}

// logInterceptor logs every call and reports server faults.
func (s *TrackerServer) logInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			logger := s.logger.With().
				Str("request_id", middleware.GetRequestID(ctx)).
				Str("procedure", req.Spec().Procedure).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Logger()

			switch code := connect.CodeOf(err); {
			case err == nil:
				logger.Debug().Msg("call completed")
			case code == connect.CodeInternal || code == connect.CodeUnknown:
				reporting.Report(ctx, logger, err, map[string]string{"procedure": req.Spec().Procedure})
			default:
				logger.Info().Str("code", code.String()).Str("error", err.Error()).Msg("call rejected")
			}
			return resp, err
		}
	}
}
