package fx

import (
	"context"
	"database/sql"
	"osrs-tracker/internal/api"
	"osrs-tracker/internal/config"
	"osrs-tracker/internal/database"
	"osrs-tracker/internal/db"
	"osrs-tracker/internal/jobs"
	"osrs-tracker/internal/logger"
	"osrs-tracker/internal/reporting"
	"osrs-tracker/internal/repository"
	"osrs-tracker/internal/server"
	"osrs-tracker/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideHiscoresClient(lc fx.Lifecycle, cfg *config.Config) *api.HiscoresClient {
	client := api.NewHiscoresClient(cfg)
	lc.Append(fx.StopHook(client.Stop))
	return client
}

func ProvideQueue(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *jobs.Queue {
	queue := jobs.NewQueue(cfg, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			queue.Start()
			return nil
		},
		OnStop: queue.Stop,
	})
	return queue
}

// RegisterJobs binds the follow-up jobs enqueued after a track to their services.
func RegisterJobs(queue *jobs.Queue, classifier *service.TypeClassifier, importer *service.HistoryImporter) {
	queue.Register(jobs.KindConfirmPlayerType, func(ctx context.Context, job jobs.Job) error {
		_, err := classifier.AssertType(ctx, job.Username, true)
		return err
	})
	queue.Register(jobs.KindImportPlayer, func(ctx context.Context, job jobs.Job) error {
		_, err := importer.ImportHistory(ctx, job.Username)
		return err
	})
}

func SetupReporting(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) error {
	flush, err := reporting.Init(cfg, logger)
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(flush))
	return nil
}

func ApplyLogLevel(cfg *config.Config, log zerolog.Logger) {
	logger.ApplyLevel(log, cfg.LogLevel)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewSnapshotRepository),
	// api clients
	fx.Provide(
		fx.Annotate(ProvideHiscoresClient, fx.As(new(service.HiscoresClient))),
		fx.Annotate(api.NewCMLClient, fx.As(new(service.HistoryClient))),
	),
	// jobs
	fx.Provide(fx.Annotate(ProvideQueue, fx.As(fx.Self()), fx.As(new(service.Dispatcher)))),
	// svc
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewTracker),
	fx.Provide(service.NewTypeClassifier),
	fx.Provide(service.NewHistoryImporter),
	// server
	fx.Provide(server.NewTrackerServer),
	fx.Invoke(ApplyLogLevel),
	fx.Invoke(SetupReporting),
	fx.Invoke(RegisterJobs),
)
