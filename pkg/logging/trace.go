package logging

import "log/slog"

// EnableTrace turns on per-entry cache and per-request queue logs. A TRACE level sets it.
var EnableTrace = false

// Trace logs at debug level only when EnableTrace is set. A nil logger means slog.Default.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !EnableTrace {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug(msg, args...)
}
