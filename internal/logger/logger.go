package logger

import (
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New builds the root logger. Its own level stays at debug; the effective level is global,
// set from configuration by ApplyLevel.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	return zerolog.New(os.Stdout).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Caller().
		Str("service", "osrs-tracker").
		Logger()
}

// ApplyLevel sets the global level from its textual form, falling back to info.
func ApplyLevel(logger zerolog.Logger, level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		logger.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	logger.Debug().Str("level", parsed.String()).Msg("log level applied")
}

var Module = fx.Provide(New)
