package recorder

import (
	"testing"

	"crashround/internal/game"

	"github.com/stretchr/testify/assert"
)

func TestFoldStats(t *testing.T) {
	tests := []struct {
		name  string
		start GameStats
		event game.Event
		want  GameStats
	}{
		{
			name:  "bet adds to volume",
			start: GameStats{TotalBetsVolume: 5},
			event: game.Event{Type: game.EventBetPlaced, Amount: 10},
			want:  GameStats{TotalBetsVolume: 15},
		},
		{
			name:  "bigger cashout raises biggest win",
			start: GameStats{BiggestWin: 12},
			event: game.Event{Type: game.EventCashout, Amount: 10, Multiplier: 1.8, Payout: 18},
			want:  GameStats{BiggestWin: 18},
		},
		{
			name:  "smaller cashout keeps biggest win",
			start: GameStats{BiggestWin: 40},
			event: game.Event{Type: game.EventCashout, Payout: 18},
			want:  GameStats{BiggestWin: 40},
		},
		{
			name:  "crash counts the round",
			start: GameStats{RoundsCompleted: 2, BiggestMultiplier: 3},
			event: game.Event{Type: game.EventCrash, Multiplier: 2.5},
			want:  GameStats{RoundsCompleted: 3, BiggestMultiplier: 3},
		},
		{
			name:  "samples are ignored",
			start: GameStats{TotalBetsVolume: 1},
			event: game.Event{Type: game.EventTick, Multiplier: 9},
			want:  GameStats{TotalBetsVolume: 1},
		},
		{
			name:  "losses only count through the crash",
			start: GameStats{},
			event: game.Event{Type: game.EventPlayerLost, Amount: 10, Multiplier: 2.5},
			want:  GameStats{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldStats(tt.start, tt.event))
		})
	}
}

func TestReplayStats_MatchesIncrementalFold(t *testing.T) {
	events := []game.Event{
		{Type: game.EventCountdown, RoundID: 1},
		{Type: game.EventBetPlaced, RoundID: 1, Amount: 10},
		{Type: game.EventCashout, RoundID: 1, Amount: 10, Multiplier: 1.8, Payout: 18},
		{Type: game.EventCrash, RoundID: 1, Multiplier: 4.2},
		{Type: game.EventBetPlaced, RoundID: 2, Amount: 25},
		{Type: game.EventPlayerLost, RoundID: 2, Amount: 25, Multiplier: 1.3},
		{Type: game.EventCrash, RoundID: 2, Multiplier: 1.3},
	}

	r := New(Options{})
	for _, ev := range events {
		r.Handle(ev)
	}

	want := GameStats{TotalBetsVolume: 35, BiggestWin: 18, BiggestMultiplier: 4.2, RoundsCompleted: 2}
	assert.Equal(t, want, ReplayStats(events))
	assert.Equal(t, want, r.Stats())
}

func TestFoldStats_Monotonic(t *testing.T) {
	s := GameStats{}
	events := []game.Event{
		{Type: game.EventBetPlaced, Amount: 3},
		{Type: game.EventCashout, Payout: 50},
		{Type: game.EventCrash, Multiplier: 20},
		{Type: game.EventCashout, Payout: 4},
		{Type: game.EventCrash, Multiplier: 1.01},
	}

	for _, ev := range events {
		next := FoldStats(s, ev)
		assert.GreaterOrEqual(t, next.TotalBetsVolume, s.TotalBetsVolume)
		assert.GreaterOrEqual(t, next.BiggestWin, s.BiggestWin)
		assert.GreaterOrEqual(t, next.BiggestMultiplier, s.BiggestMultiplier)
		assert.GreaterOrEqual(t, next.RoundsCompleted, s.RoundsCompleted)
		s = next
	}
}
