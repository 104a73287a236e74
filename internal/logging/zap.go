package logging

import (
	"go.uber.org/zap"

	"github.com/arloliu/fanout/types"
)

// ZapLogger implements types.Logger on top of a zap.SugaredLogger.
//
// The key/value ("w") variants of the sugared logger are used so that
// structured fields are preserved.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ types.Logger = (*ZapLogger)(nil)

// NewZap wraps a zap logger.
//
// Parameters:
//   - logger: The zap logger; nil selects zap.NewNop()
//
// Returns:
//   - *ZapLogger: Logger adapter
//
// Example:
//
//	zl, _ := zap.NewProduction()
//	defer zl.Sync()
//	ctrl, _ := fanout.NewController(&cfg, src, dir, eff, fanout.WithLogger(logging.NewZap(zl)))
func NewZap(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ZapLogger{sugar: logger.Sugar()}
}

// NewZapSugared wraps an existing sugared logger.
func NewZapSugared(sugar *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: sugar}
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}
