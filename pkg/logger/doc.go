// Package logger provides the structured logging interface used across e621dl.
//
// It wraps zerolog behind a small Logger interface so components can accept a
// logger as a dependency and tests can swap in NewTestLogger or NewNopLogger.
//
// Basic usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.WithField("entry", "wolf").Info("retrieval started")
//
// Console output is written to stderr in a human readable form. When a log file
// is configured, events are additionally appended to it as JSON lines.
package logger
