package types

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStarting, "Starting"},
		{StateReconciling, "Reconciling"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateStopped, "Stopped"},
		{State(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpsertResultString(t *testing.T) {
	if got := UpsertCreated.String(); got != "created" {
		t.Errorf("UpsertCreated.String() = %v", got)
	}
	if got := UpsertAlreadyExists.String(); got != "already_exists" {
		t.Errorf("UpsertAlreadyExists.String() = %v", got)
	}
	if got := UpsertResult(7).String(); got != "unknown" {
		t.Errorf("UpsertResult(7).String() = %v", got)
	}
}

func TestProducerMode(t *testing.T) {
	for _, m := range []ProducerMode{"", ModeSyncDrain, ModePipelined} {
		if err := m.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", m, err)
		}
	}
	if err := ProducerMode("eager").Validate(); err == nil {
		t.Error("Validate(eager) = nil, want error")
	}
	if got := ProducerMode("").String(); got != "sync_drain" {
		t.Errorf("empty mode String() = %v", got)
	}
}
