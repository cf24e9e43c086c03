package bots

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"crashround/internal/game"
	"crashround/internal/recorder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type feedSink struct {
	mu     sync.Mutex
	events []recorder.FeedEvent
}

func (s *feedSink) AppendFeed(ev recorder.FeedEvent) recorder.FeedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return ev
}

func (s *feedSink) ofType(typ recorder.FeedType) []recorder.FeedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []recorder.FeedEvent
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func newTestGenerator(t *testing.T) (*Generator, *feedSink, *game.ManualClock) {
	t.Helper()
	clock := game.NewManualClock(start)
	sink := &feedSink{}
	opts := DefaultOptions()
	opts.Clock = clock
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	g := NewGenerator(sink, opts)
	t.Cleanup(g.Stop)
	return g, sink, clock
}

func countdown(round int64, at time.Time, length time.Duration) game.Event {
	return game.Event{Type: game.EventCountdown, RoundID: round, At: at, PhaseEndsAt: at.Add(length)}
}

func TestGenerator_BetsDuringCountdown(t *testing.T) {
	g, sink, clock := newTestGenerator(t)

	g.Handle(countdown(1, start, 2*time.Second))
	pending := clock.Pending()
	assert.GreaterOrEqual(t, pending, MIN_BOTS)
	assert.LessOrEqual(t, pending, MAX_BOTS)

	clock.Advance(2 * time.Second)

	bets := sink.ofType(recorder.FeedBet)
	require.Len(t, bets, pending)
	for _, bet := range bets {
		assert.True(t, bet.Bot)
		assert.Equal(t, int64(1), bet.RoundID)
		assert.GreaterOrEqual(t, bet.Amount, MIN_BOT_AMOUNT)
		assert.LessOrEqual(t, bet.Amount, MAX_BOT_AMOUNT)
		assert.NotEqual(t, game.PlayerActor, bet.Actor)
		assert.False(t, bet.Timestamp.After(start.Add(2*time.Second)))
	}
}

func TestGenerator_CashesOutAsMultiplierRises(t *testing.T) {
	g, sink, clock := newTestGenerator(t)
	g.Handle(countdown(1, start, time.Second))
	clock.Advance(time.Second)
	bets := sink.ofType(recorder.FeedBet)
	require.NotEmpty(t, bets)

	g.Handle(game.Event{Type: game.EventTick, RoundID: 1, Multiplier: 1.0})
	assert.Empty(t, sink.ofType(recorder.FeedCashout))

	g.Handle(game.Event{Type: game.EventTick, RoundID: 1, Multiplier: game.MAX_CRASH_POINT})
	cashouts := sink.ofType(recorder.FeedCashout)
	assert.Len(t, cashouts, len(bets))
	for _, ev := range cashouts {
		require.NotNil(t, ev.Multiplier)
		assert.GreaterOrEqual(t, *ev.Multiplier, 1.1)
	}

	// Each bot cashes out once.
	g.Handle(game.Event{Type: game.EventTick, RoundID: 1, Multiplier: game.MAX_CRASH_POINT})
	assert.Len(t, sink.ofType(recorder.FeedCashout), len(bets))
}

func TestGenerator_CrashDropsOpenBots(t *testing.T) {
	g, sink, clock := newTestGenerator(t)
	g.Handle(countdown(1, start, time.Second))
	clock.Advance(time.Second)

	g.Handle(game.Event{Type: game.EventCrash, RoundID: 1, Multiplier: 1.05})
	g.Handle(game.Event{Type: game.EventTick, RoundID: 1, Multiplier: game.MAX_CRASH_POINT})

	assert.Empty(t, sink.ofType(recorder.FeedCashout))
}

func TestGenerator_NewRoundCancelsStaleBets(t *testing.T) {
	g, sink, clock := newTestGenerator(t)

	g.Handle(countdown(1, start, 3*time.Second))
	g.Handle(countdown(2, start, 3*time.Second))
	clock.Advance(3 * time.Second)

	for _, bet := range sink.ofType(recorder.FeedBet) {
		assert.Equal(t, int64(2), bet.RoundID)
	}
}

func TestGenerator_StopClearsTimers(t *testing.T) {
	g, sink, clock := newTestGenerator(t)
	g.Handle(countdown(1, start, 3*time.Second))
	require.NotZero(t, clock.Pending())

	g.Stop()
	g.Stop()

	assert.Zero(t, clock.Pending())
	clock.Advance(time.Minute)
	assert.Empty(t, sink.ofType(recorder.FeedBet))

	g.Handle(countdown(2, clock.Now(), 3*time.Second))
	assert.Zero(t, clock.Pending())
}

func TestGenerator_FeedsRecorderWithoutTouchingStats(t *testing.T) {
	rec := recorder.New(recorder.Options{})
	clock := game.NewManualClock(start)
	g := NewGenerator(rec, Options{Clock: clock, Rand: rand.New(rand.NewPCG(3, 4))})
	defer g.Stop()

	g.Handle(countdown(1, start, time.Second))
	clock.Advance(time.Second)
	g.Handle(game.Event{Type: game.EventTick, RoundID: 1, Multiplier: 50})

	assert.NotEmpty(t, rec.Feed())
	assert.Equal(t, recorder.GameStats{}, rec.Stats())
}
