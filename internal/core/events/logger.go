package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

var _ watermill.LoggerAdapter = (*LoggerAdapter)(nil)

// LoggerAdapter routes watermill logs through zerolog
type LoggerAdapter struct {
	logger zerolog.Logger
}

// NewLoggerAdapter wraps logger for watermill components
func NewLoggerAdapter(logger zerolog.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (l *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.Error().Err(err).Fields(map[string]any(fields)).Msg(msg)
}

func (l *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.logger.Info().Fields(map[string]any(fields)).Msg(msg)
}

func (l *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debug().Fields(map[string]any(fields)).Msg(msg)
}

func (l *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.logger.Trace().Fields(map[string]any(fields)).Msg(msg)
}

func (l *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: l.logger.With().Fields(map[string]any(fields)).Logger()}
}
