package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlog_NilUsesDefault(t *testing.T) {
	logger := NewSlog(nil)
	require.Same(t, slog.Default(), logger.logger)
}

func TestNewLogfmt(t *testing.T) {
	t.Run("writes key value lines", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogfmt(&buf, "DEBUG")
		require.NoError(t, err)

		logger.Debug("item dequeued", "item", "a@example.com")
		logger.Info("partition created", "partition_id", "tenant-0-x")
		logger.Warn("state changed", "state", "Stopping")
		logger.Error("item failed", "error", "timeout")

		out := buf.String()
		assert.Contains(t, out, `level=DEBUG msg="item dequeued" item=a@example.com`)
		assert.Contains(t, out, "level=INFO")
		assert.Contains(t, out, "partition_id=tenant-0-x")
		assert.Contains(t, out, "state=Stopping")
		assert.Contains(t, out, "level=ERROR")
		assert.Contains(t, out, "error=timeout")
	})

	t.Run("filters below the level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogfmt(&buf, " warn ")
		require.NoError(t, err)

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("shown warn")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown warn")
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := NewLogfmt(&bytes.Buffer{}, "loud")
		require.Error(t, err)
	})
}

func TestSlogLogger_Fatal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogfmt(&buf, "error")
	require.NoError(t, err)

	code := -1
	logger.exit = func(c int) { code = c }

	logger.With("run_id", "r-1").Fatal("worker died", "partition_id", "tenant-1-y")

	require.Equal(t, 1, code)
	out := buf.String()
	assert.Contains(t, out, "level=FATAL")
	assert.Contains(t, out, "run_id=r-1")
	assert.Contains(t, out, "partition_id=tenant-1-y")
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlog(slog.New(slog.NewTextHandler(&buf, nil)))

	scoped := logger.With("run_id", "r-1")
	scoped.Info("round completed", "round", 2, "fetched", 3)
	logger.Info("unscoped")

	out := buf.String()
	assert.Contains(t, out, "run_id=r-1 round=2 fetched=3")
	assert.Contains(t, out, `msg=unscoped`)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("run_id")))
	require.NoError(t, scoped.Sync())
}
