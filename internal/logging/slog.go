// Package logging provides types.Logger adapters for log/slog and zap.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/arloliu/fanout/types"
)

// LevelFatal sits above slog.LevelError. Handlers print it as "ERROR+4"
// unless they rename it; NewLogfmt renames it to FATAL.
const LevelFatal = slog.LevelError + 4

// SlogLogger adapts a slog.Handler to types.Logger.
//
// Fatal records the entry at LevelFatal and then exits the process.
type SlogLogger struct {
	logger *slog.Logger
	exit   func(int)
}

var _ types.Logger = (*SlogLogger)(nil)

// NewSlog wraps logger. A nil logger selects slog.Default().
func NewSlog(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogLogger{logger: logger, exit: os.Exit}
}

// NewLogfmt builds a logger that writes key=value lines to w.
//
// Parameters:
//   - w: Destination, usually os.Stderr
//   - level: debug, info, warn or error (case-insensitive)
//
// Returns:
//   - *SlogLogger: Logger writing logfmt lines
//   - error: Unknown level
//
// Example:
//
//	logger, err := logging.NewLogfmt(os.Stderr, "debug")
//	if err != nil {
//	    return err
//	}
//	logger.Info("round completed", "round", 3, "fetched", 3000)
func NewLogfmt(w io.Writer, level string) (*SlogLogger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: renameFatal,
	})

	return NewSlog(slog.New(h)), nil
}

func renameFatal(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelFatal {
		a.Value = slog.StringValue("FATAL")
	}

	return a
}

// With returns a logger that adds keysAndValues to every entry.
func (l *SlogLogger) With(keysAndValues ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(keysAndValues...), exit: l.exit}
}

// Sync is a no-op; slog handlers write through.
func (l *SlogLogger) Sync() error { return nil }

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(LevelFatal, msg, keysAndValues)
	l.exit(1)
}

func (l *SlogLogger) log(level slog.Level, msg string, keysAndValues []any) {
	l.logger.Log(context.Background(), level, msg, keysAndValues...)
}
