package bots

import (
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"crashround/internal/game"
	"crashround/internal/recorder"

	"github.com/google/uuid"
)

const (
	MIN_BOTS       = 5
	MAX_BOTS       = 12
	MIN_BOT_AMOUNT = 1.0
	MAX_BOT_AMOUNT = 101.0
	BET_WINDOW     = 3 * time.Second
)

var botNames = []string{
	"DegenApe", "DiamondHands", "PaperHands", "WhaleHunter",
	"MoonBoy", "CryptoChad", "YoloTrader", "LamboSeeker",
	"ToTheMoon", "HodlGang", "ShibaArmy", "SafeMoonKing",
}

// Sink receives simulated feed entries.
type Sink interface {
	AppendFeed(ev recorder.FeedEvent) recorder.FeedEvent
}

type Options struct {
	MinBots   int
	MaxBots   int
	MinAmount float64
	MaxAmount float64
	Window    time.Duration
	Clock     game.Clock
	Rand      *rand.Rand
}

func DefaultOptions() Options {
	return Options{
		MinBots:   MIN_BOTS,
		MaxBots:   MAX_BOTS,
		MinAmount: MIN_BOT_AMOUNT,
		MaxAmount: MAX_BOT_AMOUNT,
		Window:    BET_WINDOW,
		Clock:     game.SystemClock(),
	}
}

type botBet struct {
	name   string
	amount float64
	target float64
}

// Generator fills the feed with simulated third party bets and cash-outs.
// It listens to engine events but never calls back into the engine, so bot
// activity cannot influence settlement or stats.
type Generator struct {
	mu      sync.Mutex
	opts    Options
	sink    Sink
	rng     *rand.Rand
	round   int64
	timers  []game.Timer
	open    []botBet
	stopped bool
}

func NewGenerator(sink Sink, opts Options) *Generator {
	def := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.MinBots <= 0 {
		opts.MinBots = def.MinBots
	}
	if opts.MaxBots < opts.MinBots {
		opts.MaxBots = opts.MinBots
	}
	if opts.MinAmount <= 0 {
		opts.MinAmount = def.MinAmount
	}
	if opts.MaxAmount < opts.MinAmount {
		opts.MaxAmount = opts.MinAmount
	}
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Generator{opts: opts, sink: sink, rng: rng}
}

func (g *Generator) Handle(ev game.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}

	switch ev.Type {
	case game.EventCountdown:
		g.cancelTimers()
		g.round = ev.RoundID
		g.open = nil
		g.scheduleBets(ev)
	case game.EventTick:
		g.cashOutBelow(ev)
	case game.EventCrash:
		g.cancelTimers()
		g.open = nil
	}
}

// Stop cancels every scheduled bot bet.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	g.cancelTimers()
	g.open = nil
	log.Println("[BOTS] Generator stopped")
}

func (g *Generator) scheduleBets(ev game.Event) {
	window := g.opts.Window
	if left := ev.PhaseEndsAt.Sub(ev.At); !ev.PhaseEndsAt.IsZero() && left < window {
		window = left
	}
	count := g.opts.MinBots + g.rng.IntN(g.opts.MaxBots-g.opts.MinBots+1)
	round := ev.RoundID

	for i := 0; i < count; i++ {
		var delay time.Duration
		if window > 0 {
			delay = time.Duration(g.rng.Int64N(int64(window)))
		}
		bet := g.newBet()
		g.timers = append(g.timers, g.opts.Clock.AfterFunc(delay, func() {
			g.placeBet(round, bet)
		}))
	}
}

func (g *Generator) placeBet(round int64, bet botBet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped || round != g.round {
		return
	}
	g.open = append(g.open, bet)
	g.sink.AppendFeed(recorder.FeedEvent{
		Type:      recorder.FeedBet,
		Actor:     bet.name,
		Amount:    bet.amount,
		Timestamp: g.opts.Clock.Now(),
		RoundID:   round,
		Bot:       true,
	})
}

func (g *Generator) cashOutBelow(ev game.Event) {
	if ev.RoundID != g.round {
		return
	}
	still := g.open[:0]
	for _, bet := range g.open {
		if bet.target > ev.Multiplier {
			still = append(still, bet)
			continue
		}
		m := bet.target
		g.sink.AppendFeed(recorder.FeedEvent{
			Type:       recorder.FeedCashout,
			Actor:      bet.name,
			Amount:     bet.amount,
			Multiplier: &m,
			Timestamp:  ev.At,
			RoundID:    ev.RoundID,
			Bot:        true,
		})
	}
	g.open = still
}

func (g *Generator) newBet() botBet {
	name := botNames[g.rng.IntN(len(botNames))]
	amount := g.opts.MinAmount + g.rng.Float64()*(g.opts.MaxAmount-g.opts.MinAmount)
	// Most bots leave early; a few ride the curve.
	target := 1.1 + g.rng.ExpFloat64()*1.5
	return botBet{
		name:   fmt.Sprintf("%s%s", name, uuid.NewString()[:4]),
		amount: float64(int(amount*100)) / 100,
		target: float64(int(target*100)) / 100,
	}
}

func (g *Generator) cancelTimers() {
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
}
