package session

import (
	"context"
	"log"

	"crashround/internal/bots"
	"crashround/internal/game"
	"crashround/internal/recorder"
)

// Snapshot is everything a presentation layer needs in one read.
type Snapshot struct {
	game.RoundSnapshot
	FeedEvents   []recorder.FeedEvent         `json:"feed_events"`
	RoundHistory []recorder.RoundHistoryEntry `json:"round_history"`
	GameStats    recorder.GameStats           `json:"game_stats"`
}

type Options struct {
	Game     game.Options
	Recorder recorder.Options
	Bots     *bots.Options // nil disables simulated activity
}

// Session wires the round engine to its downstream consumers: the recorder,
// the notifier and the optional bot generator. Consumers added through
// Subscribe see every event after those three.
type Session struct {
	manager  *game.Manager
	recorder *recorder.Recorder
	notifier *Notifier
	bots     *bots.Generator
}

func New(opts Options) *Session {
	s := &Session{
		manager:  game.NewManager(opts.Game),
		recorder: recorder.New(opts.Recorder),
		notifier: &Notifier{},
	}
	s.manager.Subscribe(s.recorder)
	s.manager.Subscribe(s.notifier)

	if opts.Bots != nil {
		botOpts := *opts.Bots
		if botOpts.Clock == nil {
			botOpts.Clock = opts.Game.Clock
		}
		s.bots = bots.NewGenerator(s.recorder, botOpts)
		s.manager.Subscribe(s.bots)
	}
	return s
}

// Subscribe adds a listener. Call before Start.
func (s *Session) Subscribe(l game.Listener) {
	s.manager.Subscribe(l)
}

func (s *Session) OnFeed(f func(recorder.FeedEvent)) {
	s.recorder.OnFeed(f)
}

func (s *Session) OnNotify(f func(Notification)) {
	s.notifier.OnNotify(f)
}

func (s *Session) Start(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}
	if s.bots != nil {
		context.AfterFunc(ctx, s.bots.Stop)
	}
	log.Println("[SESSION] Started")
	return nil
}

// Stop halts the engine and cancels every pending bot timer.
func (s *Session) Stop() {
	s.manager.Stop()
	if s.bots != nil {
		s.bots.Stop()
	}
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		RoundSnapshot: s.manager.Snapshot(),
		FeedEvents:    s.recorder.Feed(),
		RoundHistory:  s.recorder.History(),
		GameStats:     s.recorder.Stats(),
	}
}

func (s *Session) PlaceBet(amount float64) game.BetResponse {
	return s.manager.PlaceBet(amount)
}

func (s *Session) CashOut() game.CashoutResponse {
	return s.manager.Cashout()
}

func (s *Session) SetAutoCashOutTarget(target *float64) game.AutoCashoutResponse {
	return s.manager.SetAutoCashout(target)
}

func (s *Session) Feed() []recorder.FeedEvent {
	return s.recorder.Feed()
}

func (s *Session) History() []recorder.RoundHistoryEntry {
	return s.recorder.History()
}

func (s *Session) Stats() recorder.GameStats {
	return s.recorder.Stats()
}

func (s *Session) Analytics() recorder.Analytics {
	return s.recorder.Analytics()
}
