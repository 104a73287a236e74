package logging

import (
	"testing"

	"github.com/arloliu/fanout/types"
	"github.com/stretchr/testify/require"
)

func TestNopLogger(t *testing.T) {
	logger := NewNop()

	var _ types.Logger = logger

	require.NotPanics(t, func() {
		logger.Debug("test message", "key", "value")
		logger.Info("test message", "key", "value")
		logger.Warn("test message", "key", "value")
		logger.Error("test message", "key", "value")
		logger.Fatal("test message", "key", "value") // Should NOT exit
	})
}

func TestNopLogger_NilArguments(t *testing.T) {
	logger := NewNop()

	require.NotPanics(t, func() {
		logger.Info("")
		logger.Info("message", nil)
		logger.Error("odd", "key")
	})
}
