package game

import (
	"encoding/json"
	"testing"
	"time"
)

func TestPosition_Open(t *testing.T) {
	var nilPosition *Position

	tests := []struct {
		name string
		p    *Position
		want bool
	}{
		{"nil", nilPosition, false},
		{"fresh", &Position{Amount: 10}, true},
		{"cashed out", &Position{Amount: 10, CashedOut: true}, false},
		{"lost", &Position{Amount: 10, Lost: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Open(); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundSnapshot_JSONHidesCrashPoint(t *testing.T) {
	s := launched(t, countdownState(t, 100, BetPolicyCountdownOnly), 7.77)
	snap := s.Snapshot(s.LaunchedAt.Add(time.Second))

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Failed to marshal RoundSnapshot: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal RoundSnapshot: %v", err)
	}

	if v, ok := decoded["crash_point"]; !ok || v != nil {
		t.Errorf("crash_point = %v, want null", v)
	}
	if decoded["phase"] != string(PhaseActive) {
		t.Errorf("phase = %v, want %v", decoded["phase"], PhaseActive)
	}
	if decoded["bet_policy"] != string(BetPolicyCountdownOnly) {
		t.Errorf("bet_policy = %v, want %v", decoded["bet_policy"], BetPolicyCountdownOnly)
	}
}

func TestEvent_JSONRevealOnlyOnCrash(t *testing.T) {
	tick, err := json.Marshal(Event{Type: EventTick, RoundID: 3, Multiplier: 1.5})
	if err != nil {
		t.Fatalf("Failed to marshal Event: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(tick, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal Event: %v", err)
	}
	if _, ok := decoded["reveal"]; ok {
		t.Error("update event carries a reveal")
	}
	if decoded["type"] != "update" {
		t.Errorf("type = %v, want update", decoded["type"])
	}
}
