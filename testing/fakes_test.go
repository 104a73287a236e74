package testing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/types"
)

func TestFakeSource(t *testing.T) {
	src := NewFakeSource("a", "b", "c")

	batch, err := src.FetchBatch(t.Context(), 2)
	require.NoError(t, err)
	require.Equal(t, []types.WorkItem{"a", "b"}, batch)

	boom := errors.New("boom")
	src.FailNext(boom)
	_, err = src.FetchBatch(t.Context(), 2)
	require.ErrorIs(t, err, boom)

	batch, err = src.FetchBatch(t.Context(), 2)
	require.NoError(t, err)
	require.Equal(t, []types.WorkItem{"c"}, batch)

	batch, err = src.FetchBatch(t.Context(), 2)
	require.NoError(t, err)
	require.Empty(t, batch)

	require.Equal(t, 4, src.Fetches())
	require.Equal(t, 2, <-src.Fetched())
}

func TestRecordingEffect(t *testing.T) {
	eff := NewRecordingEffect()
	eff.Exists("old")
	eff.FailNotify("bad", errors.New("smtp down"))

	res, err := eff.UpsertPrincipal(t.Context(), "p1", "new")
	require.NoError(t, err)
	require.Equal(t, types.UpsertCreated, res)

	res, err = eff.UpsertPrincipal(t.Context(), "p1", "old")
	require.NoError(t, err)
	require.Equal(t, types.UpsertAlreadyExists, res)

	require.NoError(t, eff.TriggerNotification(t.Context(), "p1", "old"))
	require.Error(t, eff.TriggerNotification(t.Context(), "p1", "bad"))

	require.Len(t, eff.Calls(), 4)
	require.Equal(t, []types.WorkItem{"old", "bad"}, eff.Notified())
}

func TestFormatKeyValues(t *testing.T) {
	require.Empty(t, formatKeyValues(nil))
	require.Equal(t, "a=1 b=<missing>", formatKeyValues([]any{"a", 1, "b"}))
}
