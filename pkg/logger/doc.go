// Package logger builds configured log/slog loggers with environment presets.
//
// New returns a JSON logger at info level by default; WithDevelopment switches
// to human-readable text output at debug level. Static attributes such as the
// service name are attached once at construction. Attr helpers (Error, JobID,
// Platform, Account) keep attribute keys consistent across components.
package logger
