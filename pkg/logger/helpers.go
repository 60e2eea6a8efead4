package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a served HTTP request at a level matching its status
func LogRequest(l Logger, method, path string, statusCode int, duration time.Duration) {
	if l == nil {
		l = GetLogger()
	}
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.InfoWithFields("HTTP request completed", fields)
	}
}

// LogStrategyOutcome records one extraction attempt.
// Failures are warnings: the pipeline keeps going after them.
func LogStrategyOutcome(l Logger, strategy, shortcode string, duration time.Duration, err error) {
	if l == nil {
		l = GetLogger()
	}
	entry := l.WithFields(map[string]interface{}{
		"strategy":  strategy,
		"shortcode": shortcode,
		"duration":  duration,
	})

	if err != nil {
		entry.WithError(err).Warn("Strategy failed")
		return
	}
	entry.Info("Strategy succeeded")
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, settings map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                    {}
func (nopLogger) Info(string)                                     {}
func (nopLogger) Warn(string)                                     {}
func (nopLogger) Error(string)                                    {}
func (nopLogger) Fatal(string)                                    {}
func (n nopLogger) WithField(string, interface{}) Logger          { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger      { return n }
func (n nopLogger) WithError(error) Logger                        { return n }
func (n nopLogger) WithContext(context.Context) Logger            { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{})  {}
func (nopLogger) InfoWithFields(string, map[string]interface{})   {}
func (nopLogger) WarnWithFields(string, map[string]interface{})   {}
func (nopLogger) ErrorWithFields(string, map[string]interface{})  {}
func (nopLogger) FatalWithFields(string, map[string]interface{})  {}
func (nopLogger) GetZerolog() *zerolog.Logger                     { z := zerolog.Nop(); return &z }
