package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/directory"
	fanouttest "github.com/arloliu/fanout/testing"
)

func TestWatchKillSwitch(t *testing.T) {
	_, nc := fanouttest.StartEmbeddedNATS(t)
	kv := fanouttest.CreateJetStreamKV(t, nc, "fanout-control")

	cfg := TestConfig()
	cfg.RoundInterval = time.Hour
	ctrl, err := NewController(&cfg, fanouttest.NewFakeSource("a@x.io"), directory.NewMemory(), fanouttest.NewRecordingEffect())
	require.NoError(t, err)

	go func() { _ = WatchKillSwitch(t.Context(), kv, "kill", ctrl.KillSwitch(), nil) }()
	resCh := startController(t, t.Context(), ctrl)
	require.NoError(t, <-ctrl.WaitState(StateRunning, 5*time.Second))

	_, err = kv.PutString(t.Context(), "kill", "on")
	require.NoError(t, err)

	require.NoError(t, waitRun(t, resCh))
	require.Equal(t, StateStopped, ctrl.State())
	require.Equal(t, "kv", ctrl.KillSwitch().Reason())
}
