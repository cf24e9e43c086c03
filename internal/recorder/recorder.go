package recorder

import (
	"sync"
	"time"

	"crashround/internal/game"

	"github.com/google/uuid"
)

const (
	DEFAULT_FEED_RETENTION    = 100
	DEFAULT_HISTORY_RETENTION = 50
)

type Options struct {
	FeedRetention    int
	HistoryRetention int
}

// Recorder keeps the activity feed, the round history and the aggregate
// stats. It consumes engine events through Handle and bot activity through
// AppendFeed; only engine events move the stats.
type Recorder struct {
	mu      sync.RWMutex
	feed    *Ring[FeedEvent]
	history *Ring[RoundHistoryEntry]
	stats   GameStats
	onFeed  []func(FeedEvent)
}

func New(opts Options) *Recorder {
	if opts.FeedRetention <= 0 {
		opts.FeedRetention = DEFAULT_FEED_RETENTION
	}
	if opts.HistoryRetention <= 0 {
		opts.HistoryRetention = DEFAULT_HISTORY_RETENTION
	}
	return &Recorder{
		feed:    NewRing[FeedEvent](opts.FeedRetention),
		history: NewRing[RoundHistoryEntry](opts.HistoryRetention),
	}
}

// OnFeed registers a callback for every appended feed event. Callbacks run
// after the recorder lock is released and must not block.
func (r *Recorder) OnFeed(f func(FeedEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFeed = append(r.onFeed, f)
}

func (r *Recorder) Handle(ev game.Event) {
	r.mu.Lock()
	r.stats = FoldStats(r.stats, ev)

	var appended *FeedEvent
	switch ev.Type {
	case game.EventBetPlaced:
		appended = r.push(FeedEvent{Type: FeedBet, Actor: ev.Actor, Amount: ev.Amount, Timestamp: ev.At, RoundID: ev.RoundID})
	case game.EventCashout:
		m := ev.Multiplier
		appended = r.push(FeedEvent{Type: FeedCashout, Actor: ev.Actor, Amount: ev.Amount, Multiplier: &m, Timestamp: ev.At, RoundID: ev.RoundID})
	case game.EventPlayerLost:
		m := ev.Multiplier
		appended = r.push(FeedEvent{Type: FeedCrash, Actor: ev.Actor, Amount: ev.Amount, Multiplier: &m, Timestamp: ev.At, RoundID: ev.RoundID})
	case game.EventCrash:
		entry := RoundHistoryEntry{RoundID: ev.RoundID, CrashPoint: ev.Multiplier, EndedAt: ev.At, Commitment: ev.Commitment}
		if ev.Reveal != nil {
			entry.ServerSeed = ev.Reveal.ServerSeed
			entry.ClientSeed = ev.Reveal.ClientSeed
			entry.Nonce = ev.Reveal.Nonce
		}
		r.history.Push(entry)
	}
	callbacks := r.onFeed
	r.mu.Unlock()

	if appended != nil {
		for _, f := range callbacks {
			f(*appended)
		}
	}
}

// AppendFeed adds a display-only entry, such as simulated bot activity.
// A missing id or timestamp is filled in.
func (r *Recorder) AppendFeed(ev FeedEvent) FeedEvent {
	r.mu.Lock()
	stored := *r.push(ev)
	callbacks := r.onFeed
	r.mu.Unlock()

	for _, f := range callbacks {
		f(stored)
	}
	return stored
}

func (r *Recorder) push(ev FeedEvent) *FeedEvent {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Multiplier != nil {
		m := *ev.Multiplier
		ev.Multiplier = &m
	}
	r.feed.Push(ev)
	return &ev
}

// Feed returns the retained feed, newest first.
func (r *Recorder) Feed() []FeedEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feed.Newest()
}

// History returns the retained round history, newest first.
func (r *Recorder) History() []RoundHistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.Newest()
}

func (r *Recorder) Stats() GameStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Recorder) Analytics() Analytics {
	return Analyze(r.History())
}
