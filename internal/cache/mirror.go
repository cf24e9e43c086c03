package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"crashround/internal/game"

	"github.com/redis/go-redis/v9"
)

const (
	BALANCE_KEY = "crash:balance:" + game.PlayerActor
	ROUND_KEY   = "crash:round:current"
	HISTORY_KEY = "crash:history"

	HISTORY_LENGTH    = 50
	ROUND_TTL         = 1 * time.Hour
	MIRROR_QUEUE_SIZE = 128
)

// RoundState is the public view of the current round kept in redis. The crash
// point is only present once the round has crashed.
type RoundState struct {
	RoundID     int64      `json:"round_id"`
	Phase       game.Phase `json:"phase"`
	Multiplier  float64    `json:"multiplier"`
	CrashPoint  *float64   `json:"crash_point"`
	Commitment  string     `json:"commitment,omitempty"`
	PhaseEndsAt time.Time  `json:"phase_ends_at,omitempty"`
	LaunchedAt  time.Time  `json:"launched_at,omitempty"`
	Balance     float64    `json:"balance"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type mirrorUpdate struct {
	round   RoundState
	crashed bool
}

// Mirror copies the player's balance and the round state into redis. Samples
// are folded into the next write rather than written individually.
type Mirror struct {
	client redis.Cmdable
	queue  chan mirrorUpdate
	done   chan struct{}

	mu      sync.Mutex
	current RoundState
	dropped int64
	running bool
}

func NewMirror(client redis.Cmdable, balance float64) *Mirror {
	return &Mirror{
		client:  client,
		queue:   make(chan mirrorUpdate, MIRROR_QUEUE_SIZE),
		done:    make(chan struct{}),
		current: RoundState{Phase: game.PhaseWaiting, Multiplier: 1.0, Balance: balance},
	}
}

func (m *Mirror) Handle(ev game.Event) {
	m.mu.Lock()
	update, ok := m.apply(ev)
	m.mu.Unlock()
	if !ok {
		return
	}

	select {
	case m.queue <- update:
	default:
		m.mu.Lock()
		m.dropped++
		m.mu.Unlock()
		log.Printf("[CACHE] Mirror queue full, dropped %s of round %d", ev.Type, ev.RoundID)
	}
}

// apply folds ev into the current state and reports whether it should be
// written. Caller holds m.mu.
func (m *Mirror) apply(ev game.Event) (mirrorUpdate, bool) {
	cur := &m.current
	cur.UpdatedAt = ev.At

	switch ev.Type {
	case game.EventTick:
		cur.Multiplier = ev.Multiplier
		return mirrorUpdate{}, false
	case game.EventCountdown:
		*cur = RoundState{
			RoundID:     ev.RoundID,
			Phase:       game.PhaseCountdown,
			Multiplier:  1.0,
			PhaseEndsAt: ev.PhaseEndsAt,
			Balance:     ev.Balance,
			UpdatedAt:   ev.At,
		}
	case game.EventRoundStart:
		cur.Phase = game.PhaseActive
		cur.Commitment = ev.Commitment
		cur.LaunchedAt = ev.LaunchedAt
		cur.PhaseEndsAt = time.Time{}
	case game.EventBetPlaced, game.EventCashout, game.EventPlayerLost:
		cur.Balance = ev.Balance
		if ev.Type == game.EventCashout {
			cur.Multiplier = max(cur.Multiplier, ev.Multiplier)
		}
	case game.EventCrash:
		c := ev.Multiplier
		cur.Phase = game.PhaseCrashed
		cur.Multiplier = c
		cur.CrashPoint = &c
		cur.PhaseEndsAt = ev.PhaseEndsAt
		return mirrorUpdate{round: m.snapshot(), crashed: true}, true
	default:
		return mirrorUpdate{}, false
	}
	return mirrorUpdate{round: m.snapshot()}, true
}

func (m *Mirror) snapshot() RoundState {
	s := m.current
	if s.CrashPoint != nil {
		c := *s.CrashPoint
		s.CrashPoint = &c
	}
	return s
}

// State returns the last state handed to redis.
func (m *Mirror) State() RoundState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Mirror) Dropped() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Run writes queued updates until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	defer close(m.done)
	for {
		select {
		case update := <-m.queue:
			if err := m.write(ctx, update); err != nil {
				log.Printf("[CACHE] %v", err)
			}
		case <-ctx.Done():
			log.Println("[CACHE] Mirror stopped")
			return
		}
	}
}

// Wait blocks until Run has returned.
func (m *Mirror) Wait() {
	<-m.done
}

func (m *Mirror) write(ctx context.Context, update mirrorUpdate) error {
	data, err := json.Marshal(update.round)
	if err != nil {
		return fmt.Errorf("encode round %d: %w", update.round.RoundID, err)
	}

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BALANCE_KEY, update.round.Balance, 0)
		pipe.Set(ctx, ROUND_KEY, data, ROUND_TTL)
		if update.crashed {
			pipe.LPush(ctx, HISTORY_KEY, *update.round.CrashPoint)
			pipe.LTrim(ctx, HISTORY_KEY, 0, HISTORY_LENGTH-1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror round %d: %w", update.round.RoundID, err)
	}
	return nil
}

// RecentCrashPoints reads the mirrored crash history, newest first.
func RecentCrashPoints(ctx context.Context, client redis.Cmdable, n int64) ([]float64, error) {
	vals, err := client.LRange(ctx, HISTORY_KEY, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read crash history: %w", err)
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse crash point %q: %w", v, err)
		}
		out = append(out, c)
	}
	return out, nil
}
