package game

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	TICK_INTERVAL    = 20 * time.Millisecond
	WAITING_DELAY    = 1 * time.Second
	COUNTDOWN_MIN    = 1 * time.Second
	COUNTDOWN_MAX    = 5 * time.Second
	CRASH_DELAY      = 3 * time.Second
	STARTING_BALANCE = 1000.0
)

var ErrAlreadyStarted = errors.New("round engine already started")

type Options struct {
	StartingBalance float64
	WaitingDelay    time.Duration
	CountdownMin    time.Duration
	CountdownMax    time.Duration
	CrashDelay      time.Duration
	TickInterval    time.Duration
	BetPolicy       BetPolicy
	Curve           Curve
	Source          CrashPointSource
	Clock           Clock
}

func DefaultOptions() Options {
	return Options{
		StartingBalance: STARTING_BALANCE,
		WaitingDelay:    WAITING_DELAY,
		CountdownMin:    COUNTDOWN_MIN,
		CountdownMax:    COUNTDOWN_MAX,
		CrashDelay:      CRASH_DELAY,
		TickInterval:    TICK_INTERVAL,
		BetPolicy:       BetPolicyCountdownOnly,
		Curve:           DefaultCurve(),
		Source:          NewSeededSource(HOUSE_EDGE),
		Clock:           SystemClock(),
	}
}

// Manager drives State with two timers: a one-shot phase timer for the
// Waiting, Countdown and Crashed delays, and a re-arming sampling timer that
// only runs while Active. Every transition bumps epoch and stops both timers;
// a callback whose epoch or phase no longer matches does nothing.
type Manager struct {
	opts       Options
	clock      Clock
	source     CrashPointSource
	stateMutex sync.Mutex
	state      State
	listeners  Listeners
	phaseTimer Timer
	tickTimer  Timer
	epoch      uint64
	started    bool
	stopped    bool
	stopWatch  func() bool
}

func NewManager(opts Options) *Manager {
	def := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.Source == nil {
		opts.Source = def.Source
	}
	if opts.Curve.Rate <= 0 {
		opts.Curve = def.Curve
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.CountdownMax < opts.CountdownMin {
		opts.CountdownMax = opts.CountdownMin
	}
	return &Manager{
		opts:   opts,
		clock:  opts.Clock,
		source: opts.Source,
		state:  NewState(opts.StartingBalance, opts.Curve, opts.BetPolicy),
	}
}

// Subscribe registers a listener. Call before Start.
func (m *Manager) Subscribe(l Listener) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start schedules the first countdown. Cancelling ctx stops the engine.
func (m *Manager) Start(ctx context.Context) error {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	now := m.clock.Now()
	m.state.PhaseStartedAt = now
	m.state.PhaseEndsAt = now.Add(m.opts.WaitingDelay)
	m.schedulePhase(m.opts.WaitingDelay, PhaseWaiting, m.beginCountdown)
	m.stopWatch = context.AfterFunc(ctx, m.Stop)

	log.Printf("[GAME] Round engine started (balance %.2f, policy %s)", m.opts.StartingBalance, m.state.Policy)
	return nil
}

// Stop cancels every pending timer. Safe to call more than once.
func (m *Manager) Stop() {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.epoch++
	m.cancelTimers()
	if m.stopWatch != nil {
		m.stopWatch()
	}
	log.Println("[GAME] Round engine stopped")
}

func (m *Manager) Snapshot() RoundSnapshot {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	return m.state.Snapshot(m.clock.Now())
}

func (m *Manager) PlaceBet(amount float64) BetResponse {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	now := m.clock.Now()
	if m.state.Phase == PhaseActive {
		m.advance(now)
	}

	next, events, err := m.state.PlaceBet(now, amount)
	if err != nil {
		return BetResponse{
			Success: false,
			Message: err.Error(),
			RoundID: m.state.RoundID,
			Balance: m.state.Balance.InexactFloat64(),
		}
	}
	m.commit(next, events)

	log.Printf("[BET] Round #%d: %s placed %.2f (ID: %s)", next.RoundID, PlayerActor, amount, next.Position.BetID)
	return BetResponse{
		Success: true,
		Message: "Bet placed successfully",
		BetID:   next.Position.BetID,
		RoundID: next.RoundID,
		Balance: next.Balance.InexactFloat64(),
	}
}

// Cashout re-samples the curve at call time before settling, so the payout
// uses the multiplier of this instant and a crash that is already due wins.
func (m *Manager) Cashout() CashoutResponse {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	now := m.clock.Now()
	if m.state.Phase == PhaseActive {
		m.advance(now)
	}

	next, events, err := m.state.CashOut(now)
	if err != nil {
		return CashoutResponse{
			Success: false,
			Message: err.Error(),
			Balance: m.state.Balance.InexactFloat64(),
		}
	}
	m.commit(next, events)

	p := next.Position
	log.Printf("[CASHOUT] Round #%d: %s cashed out at %.2fx (Payout: %.2f)", next.RoundID, PlayerActor, p.CashoutMultiplier, p.Payout)
	return CashoutResponse{
		Success:    true,
		Message:    "Cashed out successfully",
		Multiplier: p.CashoutMultiplier,
		Payout:     p.Payout,
		Balance:    next.Balance.InexactFloat64(),
	}
}

func (m *Manager) SetAutoCashout(target *float64) AutoCashoutResponse {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()

	next, err := m.state.SetAutoCashOut(target)
	if err != nil {
		return AutoCashoutResponse{Success: false, Message: err.Error(), Target: m.state.Snapshot(m.clock.Now()).AutoCashOutTarget}
	}
	m.state = next

	snap := next.Snapshot(m.clock.Now())
	if target == nil {
		return AutoCashoutResponse{Success: true, Message: "Auto cashout disabled"}
	}
	return AutoCashoutResponse{Success: true, Message: "Auto cashout armed", Target: snap.AutoCashOutTarget}
}

func (m *Manager) beginCountdown(now time.Time) {
	countdown := m.countdownDuration()
	next, events := m.state.Begin(now, countdown)
	m.transition(next, events)
	m.schedulePhase(countdown, PhaseCountdown, m.launch)

	log.Printf("\n=== ROUND #%d ===", next.RoundID)
	log.Printf("[GAME] Countdown %.1fs", countdown.Seconds())
}

func (m *Manager) launch(now time.Time) {
	draw := m.source.Draw(m.state.RoundID)
	next, events := m.state.Launch(now, draw)
	m.transition(next, events)
	m.scheduleTick()

	if len(draw.Commitment) >= 16 {
		log.Printf("[FAIR] Commitment: %s", draw.Commitment[:16]+"...")
	}
	log.Printf("[GAME] Round #%d launched", next.RoundID)
}

func (m *Manager) tick(now time.Time) {
	m.advance(now)
	if m.state.Phase == PhaseActive {
		m.scheduleTick()
	}
}

// advance samples the running round and handles the crash transition.
func (m *Manager) advance(now time.Time) {
	next, events := m.state.Advance(now, m.opts.CrashDelay)
	if next.Phase != PhaseCrashed {
		m.commit(next, events)
		return
	}

	m.transition(next, events)
	m.schedulePhase(m.opts.CrashDelay, PhaseCrashed, m.beginCountdown)

	if p := next.Position; p != nil && p.Lost {
		log.Printf("[LOSS] %s lost %.2f", PlayerActor, p.Amount)
	}
	log.Printf("=== ROUND #%d CRASHED at %.2fx ===\n", next.RoundID, next.CrashPoint())
}

// transition commits a phase change and invalidates every pending callback.
func (m *Manager) transition(next State, events []Event) {
	m.epoch++
	m.cancelTimers()
	m.commit(next, events)
}

func (m *Manager) commit(next State, events []Event) {
	m.state = next
	for _, ev := range events {
		m.listeners.Handle(ev)
	}
}

func (m *Manager) schedulePhase(d time.Duration, want Phase, f func(time.Time)) {
	m.phaseTimer = m.clock.AfterFunc(d, m.guarded(m.epoch, want, f))
}

func (m *Manager) scheduleTick() {
	m.tickTimer = m.clock.AfterFunc(m.opts.TickInterval, m.guarded(m.epoch, PhaseActive, m.tick))
}

// guarded wraps a timer callback with the stale-callback check.
func (m *Manager) guarded(epoch uint64, want Phase, f func(time.Time)) func() {
	return func() {
		m.stateMutex.Lock()
		defer m.stateMutex.Unlock()
		if m.stopped || epoch != m.epoch || m.state.Phase != want {
			return
		}
		f(m.clock.Now())
	}
}

func (m *Manager) cancelTimers() {
	if m.phaseTimer != nil {
		m.phaseTimer.Stop()
		m.phaseTimer = nil
	}
	if m.tickTimer != nil {
		m.tickTimer.Stop()
		m.tickTimer = nil
	}
}

func (m *Manager) countdownDuration() time.Duration {
	span := m.opts.CountdownMax - m.opts.CountdownMin
	if span <= 0 {
		return m.opts.CountdownMin
	}
	return m.opts.CountdownMin + rand.N(span+1)
}
