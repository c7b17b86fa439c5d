package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"musallago/pkg/config"
)

// RequestLogger receives one line per outbound call. Init points it at its own file.
var RequestLogger = slog.Default()

// Init moves last run's files to .old, opens fresh ones and makes the server
// logger the slog default. The returned func closes the files.
func Init(cfg *config.LogConfig) (func(), error) {
	for _, p := range []string{cfg.Server.Path, cfg.Requests.Path} {
		rotate(p)
	}

	serverFile, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	requestFile, err := openLog(cfg.Requests.Path)
	if err != nil {
		serverFile.Close()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}

	for _, lvl := range []string{cfg.Server.Level, cfg.Requests.Level} {
		if isTrace(lvl) {
			EnableTrace = true
		}
	}

	serverLevel := ParseLevel(cfg.Server.Level)
	server := fanout{
		fileHandler(serverFile, serverLevel),
		// Console and status line never go below INFO.
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: max(serverLevel, slog.LevelInfo)}),
		slog.NewTextHandler(Recent, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}
	slog.SetDefault(slog.New(server))
	RequestLogger = slog.New(fileHandler(requestFile, ParseLevel(cfg.Requests.Level)))

	return func() {
		serverFile.Close()
		requestFile.Close()
	}, nil
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level. Unknown values mean INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTrace(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "TRACE")
}

// Console returns a stderr-only logger for one-shot CLI commands.
func Console(level string) *slog.Logger {
	if isTrace(level) {
		EnableTrace = true
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func fileHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
}

// rotate renames path to path.old, replacing any older copy.
func rotate(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	old := path + ".old"
	_ = os.Remove(old)
	_ = os.Rename(path, old)
}

// fanout passes each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
