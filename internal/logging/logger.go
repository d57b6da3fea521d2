// Package logging provides structured logging for the CLI and GUI
// front-ends, wrapping zerolog the way a zerolog-based logger elsewhere in this codebase does.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with a human-readable console writer on stderr.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a logger writing to w-like console output on stderr.
func New() *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	return &Logger{
		zlog: zerolog.New(output).With().Timestamp().Logger(),
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.zlog.Debug().Msgf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.zlog.Info().Msgf(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.zlog.Warn().Msgf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.zlog.Error().Msgf(format, args...) }

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
