package utils

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global logger. pretty selects console output,
// otherwise JSON lines are written to stderr.
func InitLogger(level string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// NewLogger returns the global logger tagged with a module field
func NewLogger(module string) zerolog.Logger {
	return log.With().Str("module", module).Logger()
}
