package constants

import "time"

const (
	MinUsernameLength = 1
	MaxUsernameLength = 12
)

const (
	DefaultTrackCooldown   = 60 * time.Second
	DefaultImportCooldown  = 24 * time.Hour
	DefaultHistoryLookback = 365 * 24 * time.Hour
	HiscoresCacheTTL       = 30 * time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	JobTimeout         = 60 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	DefaultJobWorkers     = 4
	DefaultJobQueueSize   = 256
	DefaultJobMaxAttempts = 3
	JobRetryBaseDelay     = 2 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	SearchSuggestionLimit = 20
)

const UserAgent = "osrs-tracker/1.0"
