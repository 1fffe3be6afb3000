package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed API request at a level matching its status.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the terminal state of one post download.
func LogDownload(l Logger, entry string, postID int, status string, err error) {
	l = l.WithFields(map[string]interface{}{
		"entry":   entry,
		"post_id": postID,
		"status":  status,
	})

	if err != nil {
		l.WithError(err).Error("Download failed")
		return
	}
	l.Debug("Download finished")
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", settings)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Debug(string)                                     {}
func (n nopLogger) Info(string)                                      {}
func (n nopLogger) Warn(string)                                      {}
func (n nopLogger) Error(string)                                     {}
func (n nopLogger) Fatal(string)                                     {}
func (n nopLogger) WithField(string, interface{}) Logger             { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger         { return n }
func (n nopLogger) WithError(error) Logger                           { return n }
func (n nopLogger) WithContext(context.Context) Logger               { return n }
func (n nopLogger) DebugWithFields(string, map[string]interface{})   {}
func (n nopLogger) InfoWithFields(string, map[string]interface{})    {}
func (n nopLogger) WarnWithFields(string, map[string]interface{})    {}
func (n nopLogger) ErrorWithFields(string, map[string]interface{})   {}
func (n nopLogger) FatalWithFields(string, map[string]interface{})   {}
func (n nopLogger) GetZerolog() *zerolog.Logger                      { z := zerolog.Nop(); return &z }
