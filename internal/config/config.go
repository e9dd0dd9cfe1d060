package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	"osrs-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

var ErrInvalidValue = errors.New("invalid value")

type Config struct {
	DBPath          string
	ServerPort      string
	LogLevel        string
	SentryDSN       string
	HiscoresBaseURL string
	CMLBaseURL      string
	UpstreamRPS     float64
	TrackCooldown   time.Duration
	ImportCooldown  time.Duration
	HistoryLookback time.Duration
	JobWorkers      int
	JobQueueSize    int
	JobMaxAttempts  int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("track_cooldown", cfg.TrackCooldown).
		Dur("import_cooldown", cfg.ImportCooldown).
		Int("job_workers", cfg.JobWorkers).
		Bool("sentry", cfg.SentryDSN != "").
		Msg("configuration loaded")

	return cfg, nil
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "tracker.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		HiscoresBaseURL: getEnv("HISCORES_BASE_URL", "https://secure.runescape.com"),
		CMLBaseURL:      getEnv("CML_BASE_URL", "https://crystalmathlabs.com"),
	}

	var err error
	if cfg.UpstreamRPS, err = getFloat("UPSTREAM_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.TrackCooldown, err = getDuration("TRACK_COOLDOWN", constants.DefaultTrackCooldown); err != nil {
		return nil, err
	}
	if cfg.ImportCooldown, err = getDuration("IMPORT_COOLDOWN", constants.DefaultImportCooldown); err != nil {
		return nil, err
	}
	if cfg.HistoryLookback, err = getDuration("HISTORY_LOOKBACK", constants.DefaultHistoryLookback); err != nil {
		return nil, err
	}
	if cfg.JobWorkers, err = getInt("JOB_WORKERS", constants.DefaultJobWorkers); err != nil {
		return nil, err
	}
	if cfg.JobQueueSize, err = getInt("JOB_QUEUE_SIZE", constants.DefaultJobQueueSize); err != nil {
		return nil, err
	}
	if cfg.JobMaxAttempts, err = getInt("JOB_MAX_ATTEMPTS", constants.DefaultJobMaxAttempts); err != nil {
		return nil, err
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL (%s)", ErrInvalidValue, cfg.LogLevel)
	}
	if cfg.JobWorkers < 1 {
		return nil, fmt.Errorf("%w: JOB_WORKERS must be positive", ErrInvalidValue)
	}
	if cfg.JobMaxAttempts < 1 {
		return nil, fmt.Errorf("%w: JOB_MAX_ATTEMPTS must be positive", ErrInvalidValue)
	}
	if cfg.UpstreamRPS <= 0 {
		return nil, fmt.Errorf("%w: UPSTREAM_RPS must be positive", ErrInvalidValue)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, v)
	}
	return i, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, v)
	}
	return f, nil
}

var Module = fx.Provide(Load)
