package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const MIN_AUTO_CASHOUT = 1.01

var (
	ErrInvalidAmount       = errors.New("bet amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBettingClosed       = errors.New("betting is closed")
	ErrBetAlreadyPlaced    = errors.New("bet already placed this round")
	ErrNotActive           = errors.New("round is not running")
	ErrRoundCrashed        = errors.New("round already crashed")
	ErrNoPosition          = errors.New("no open bet")
	ErrAlreadyCashedOut    = errors.New("already cashed out")
	ErrInvalidTarget       = fmt.Errorf("auto cashout target must be above %.2f", MIN_AUTO_CASHOUT)
)

// State is the whole engine state. Transition methods take the state by
// value and return the next state together with the events it produced; the
// receiver is never modified, so a caller that drops the result keeps the
// previous state intact.
type State struct {
	Phase          Phase
	RoundID        int64
	PhaseStartedAt time.Time
	PhaseEndsAt    time.Time // zero while Active
	LaunchedAt     time.Time
	Multiplier     float64
	Balance        decimal.Decimal
	Position       *Position
	AutoCashOut    *float64
	Policy         BetPolicy
	Curve          Curve

	draw Draw
}

func NewState(balance float64, curve Curve, policy BetPolicy) State {
	if policy == "" {
		policy = BetPolicyCountdownOnly
	}
	return State{
		Phase:      PhaseWaiting,
		Multiplier: 1.0,
		Balance:    decimal.NewFromFloat(balance),
		Policy:     policy,
		Curve:      curve,
	}
}

// CrashPoint is only known to the state once the round has launched.
func (s State) CrashPoint() float64 {
	return s.draw.CrashPoint
}

// Begin opens the countdown of the next round. Valid from Waiting and Crashed.
func (s State) Begin(now time.Time, countdown time.Duration) (State, []Event) {
	if s.Phase != PhaseWaiting && s.Phase != PhaseCrashed {
		return s, nil
	}
	s.Phase = PhaseCountdown
	s.RoundID++
	s.PhaseStartedAt = now
	s.PhaseEndsAt = now.Add(countdown)
	s.LaunchedAt = time.Time{}
	s.Multiplier = 1.0
	s.Position = nil
	s.draw = Draw{}

	return s, []Event{{
		Type:        EventCountdown,
		RoundID:     s.RoundID,
		At:          now,
		Balance:     s.Balance.InexactFloat64(),
		PhaseEndsAt: s.PhaseEndsAt,
	}}
}

// Launch moves Countdown to Active with the round's crash point.
func (s State) Launch(now time.Time, d Draw) (State, []Event) {
	if s.Phase != PhaseCountdown {
		return s, nil
	}
	invariant(d.CrashPoint >= MIN_CRASH_POINT && !math.IsInf(d.CrashPoint, 0),
		"crash point %.4f below %.2f", d.CrashPoint, MIN_CRASH_POINT)

	s.Phase = PhaseActive
	s.PhaseStartedAt = now
	s.PhaseEndsAt = time.Time{}
	s.LaunchedAt = now
	s.Multiplier = 1.0
	s.draw = d

	return s, []Event{{
		Type:       EventRoundStart,
		RoundID:    s.RoundID,
		At:         now,
		Balance:    s.Balance.InexactFloat64(),
		LaunchedAt: now,
		Commitment: d.Commitment,
	}}
}

// Advance samples the curve at now. Auto cash-out is applied before the
// crash check, and only when its target is strictly below the crash point.
func (s State) Advance(now time.Time, crashDelay time.Duration) (State, []Event) {
	if s.Phase != PhaseActive {
		return s, nil
	}
	c := s.draw.CrashPoint
	raw := s.Curve.MultiplierAt(now.Sub(s.LaunchedAt), c)

	shown := floor2(raw)
	if shown > c {
		shown = c
	}
	if shown < s.Multiplier {
		shown = s.Multiplier
	}
	s.Multiplier = shown

	var events []Event
	if p := s.Position; p.Open() && p.AutoCashOutTarget != nil {
		target := *p.AutoCashOutTarget
		if target <= shown && target < c {
			var ev Event
			s, ev = s.settleCashout(now, target, true)
			events = append(events, ev)
		}
	}

	if raw >= c {
		s.Phase = PhaseCrashed
		s.Multiplier = c
		s.PhaseStartedAt = now
		s.PhaseEndsAt = now.Add(crashDelay)

		if p := s.Position; p.Open() {
			lost := *p
			lost.Lost = true
			s.Position = &lost
			events = append(events, Event{
				Type:       EventPlayerLost,
				RoundID:    s.RoundID,
				At:         now,
				Actor:      PlayerActor,
				BetID:      lost.BetID,
				Amount:     lost.Amount,
				Multiplier: c,
				Balance:    s.Balance.InexactFloat64(),
			})
		}

		reveal := s.draw
		events = append(events, Event{
			Type:        EventCrash,
			RoundID:     s.RoundID,
			At:          now,
			Multiplier:  c,
			Balance:     s.Balance.InexactFloat64(),
			PhaseEndsAt: s.PhaseEndsAt,
			LaunchedAt:  s.LaunchedAt,
			Commitment:  reveal.Commitment,
			Reveal:      &reveal,
		})
		return s, events
	}

	events = append(events, Event{
		Type:       EventTick,
		RoundID:    s.RoundID,
		At:         now,
		Multiplier: s.Multiplier,
		Balance:    s.Balance.InexactFloat64(),
	})
	return s, events
}

// PlaceBet opens the round's only position.
func (s State) PlaceBet(now time.Time, amount float64) (State, []Event, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return s, nil, ErrInvalidAmount
	}
	switch s.Phase {
	case PhaseCountdown:
	case PhaseActive:
		if s.Policy != BetPolicyAllowActive {
			return s, nil, ErrBettingClosed
		}
	default:
		return s, nil, ErrBettingClosed
	}
	if s.Position != nil {
		return s, nil, ErrBetAlreadyPlaced
	}
	stake := decimal.NewFromFloat(amount)
	if stake.GreaterThan(s.Balance) {
		return s, nil, ErrInsufficientBalance
	}

	s.Balance = s.Balance.Sub(stake)
	invariant(!s.Balance.IsNegative(), "balance went negative: %s", s.Balance)

	p := &Position{
		BetID:    fmt.Sprintf("BET-%d-%d", s.RoundID, now.UnixNano()),
		Amount:   amount,
		PlacedAt: now,
	}
	if s.AutoCashOut != nil {
		target := *s.AutoCashOut
		p.AutoCashOutTarget = &target
	}
	s.Position = p

	return s, []Event{{
		Type:    EventBetPlaced,
		RoundID: s.RoundID,
		At:      now,
		Actor:   PlayerActor,
		BetID:   p.BetID,
		Amount:  amount,
		Balance: s.Balance.InexactFloat64(),
	}}, nil
}

// CashOut settles the open position at the last sampled multiplier.
func (s State) CashOut(now time.Time) (State, []Event, error) {
	switch s.Phase {
	case PhaseActive:
	case PhaseCrashed:
		return s, nil, ErrRoundCrashed
	default:
		return s, nil, ErrNotActive
	}
	if s.Position == nil || s.Position.Lost {
		return s, nil, ErrNoPosition
	}
	if s.Position.CashedOut {
		return s, nil, ErrAlreadyCashedOut
	}
	next, ev := s.settleCashout(now, s.Multiplier, false)
	return next, []Event{ev}, nil
}

// SetAutoCashOut stores the player's auto cash-out target and re-arms an
// open position with it. A nil target disarms. Targets are rounded to two
// decimals, the precision of the displayed multiplier.
func (s State) SetAutoCashOut(target *float64) (State, error) {
	if target != nil {
		t := math.Round(*target*100) / 100
		if math.IsNaN(t) || math.IsInf(t, 0) || t <= MIN_AUTO_CASHOUT {
			return s, ErrInvalidTarget
		}
		target = &t
	}
	s.AutoCashOut = target

	if p := s.Position; p.Open() && s.Phase != PhaseCrashed {
		armed := *p
		armed.AutoCashOutTarget = nil
		if target != nil {
			t := *target
			armed.AutoCashOutTarget = &t
		}
		s.Position = &armed
	}
	return s, nil
}

func (s State) settleCashout(now time.Time, multiplier float64, auto bool) (State, Event) {
	invariant(s.Position.Open(), "cash out of a settled position %s", s.Position.BetID)

	payout := decimal.NewFromFloat(s.Position.Amount).Mul(decimal.NewFromFloat(multiplier))
	s.Balance = s.Balance.Add(payout)

	p := *s.Position
	p.CashedOut = true
	p.CashoutMultiplier = multiplier
	p.Payout = payout.InexactFloat64()
	s.Position = &p

	return s, Event{
		Type:       EventCashout,
		RoundID:    s.RoundID,
		At:         now,
		Actor:      PlayerActor,
		BetID:      p.BetID,
		Amount:     p.Amount,
		Multiplier: multiplier,
		Payout:     p.Payout,
		Balance:    s.Balance.InexactFloat64(),
		Auto:       auto,
	}
}

// Snapshot copies the state for readers. The crash point stays hidden until
// the round has crashed, and Active reports no remaining time.
func (s State) Snapshot(now time.Time) RoundSnapshot {
	snap := RoundSnapshot{
		Phase:             s.Phase,
		RoundID:           s.RoundID,
		CurrentMultiplier: s.Multiplier,
		LaunchedAt:        s.LaunchedAt,
		Balance:           s.Balance.InexactFloat64(),
		BetPolicy:         s.Policy,
	}
	if s.Phase == PhaseActive || s.Phase == PhaseCrashed {
		snap.Commitment = s.draw.Commitment
	}
	if s.Phase == PhaseCrashed {
		c := s.draw.CrashPoint
		snap.CrashPoint = &c
	}
	if !s.PhaseEndsAt.IsZero() && s.Phase != PhaseActive {
		if left := s.PhaseEndsAt.Sub(now); left > 0 {
			snap.TimeRemainingMs = left.Milliseconds()
		}
	}
	if s.Position != nil {
		p := *s.Position
		if p.AutoCashOutTarget != nil {
			t := *p.AutoCashOutTarget
			p.AutoCashOutTarget = &t
		}
		snap.Position = &p
	}
	if s.AutoCashOut != nil {
		t := *s.AutoCashOut
		snap.AutoCashOutTarget = &t
	}
	return snap
}

func invariant(ok bool, format string, args ...interface{}) {
	if !ok {
		panic(fmt.Sprintf("crash engine invariant violated: "+format, args...))
	}
}
