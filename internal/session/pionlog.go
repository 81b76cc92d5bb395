package session

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
)

// noisyScopes are pion subsystems whose warnings and errors are expected
// network traversal noise (retries, unreachable candidates, TURN refreshes).
var noisyScopes = map[string]bool{
	"ice":   true,
	"stun":  true,
	"turn":  true,
	"turnc": true,
	"mdns":  true,
}

// LoggerFactory routes pion's internal logging onto zerolog.
type LoggerFactory struct {
	log zerolog.Logger
}

// NewLoggerFactory returns a pion logging.LoggerFactory backed by log.
func NewLoggerFactory(log zerolog.Logger) *LoggerFactory {
	return &LoggerFactory{log: log.With().Str("component", "pion").Logger()}
}

func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{log: f.log.With().Str("scope", scope).Logger(), scope: scope, noisy: noisyScopes[scope]}
}

type pionLogger struct {
	log   zerolog.Logger
	scope string
	noisy bool
}

// demote maps warn/error from noisy scopes to debug.
func (l *pionLogger) demote(level zerolog.Level) *zerolog.Event {
	if l.noisy && level >= zerolog.WarnLevel {
		transientNoise.WithLabelValues(l.scope).Inc()
		return l.log.Debug().Bool("noise", true)
	}
	return l.log.WithLevel(level)
}

func (l *pionLogger) Trace(msg string) { l.log.Trace().Msg(msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) {
	l.log.Trace().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Debug(msg string) { l.log.Debug().Msg(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Info(msg string) { l.log.Info().Msg(msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.log.Info().Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Warn(msg string) { l.demote(zerolog.WarnLevel).Msg(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.demote(zerolog.WarnLevel).Msg(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Error(msg string) { l.demote(zerolog.ErrorLevel).Msg(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.demote(zerolog.ErrorLevel).Msg(fmt.Sprintf(format, args...))
}
