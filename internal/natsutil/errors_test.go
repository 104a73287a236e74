package natsutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanout/types"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"no servers", fmt.Errorf("connect: %w", nats.ErrNoServers), true},
		{"disconnected", nats.ErrDisconnected, true},
		{"closed", nats.ErrConnectionClosed, true},
		{"no stream response", jetstream.ErrNoStreamResponse, true},
		{"transient marker", types.ErrTransient, true},
		{"connection refused text", errors.New("dial tcp: connection refused"), true},
		{"bucket exists", jetstream.ErrBucketExists, false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	require.NoError(t, Transient(nil))

	wrapped := Transient(nats.ErrTimeout)
	require.ErrorIs(t, wrapped, types.ErrTransient)
	require.ErrorIs(t, wrapped, nats.ErrTimeout)

	permanent := errors.New("stream not found")
	require.Same(t, permanent, Transient(permanent))
}
