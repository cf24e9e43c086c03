package recorder

import (
	"crashround/internal/game"
)

// FoldStats applies one engine event to the aggregates. Events that do not
// affect the stats leave them unchanged.
func FoldStats(s GameStats, ev game.Event) GameStats {
	switch ev.Type {
	case game.EventBetPlaced:
		s.TotalBetsVolume += ev.Amount
	case game.EventCashout:
		s.BiggestWin = max(s.BiggestWin, ev.Payout)
	case game.EventCrash:
		s.RoundsCompleted++
		s.BiggestMultiplier = max(s.BiggestMultiplier, ev.Multiplier)
	}
	return s
}

// ReplayStats recomputes the aggregates from a complete event stream.
func ReplayStats(events []game.Event) GameStats {
	var s GameStats
	for _, ev := range events {
		s = FoldStats(s, ev)
	}
	return s
}
