package game

import (
	"time"
)

// Phase is the round phase. Waiting only occurs once, at process start.
type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseActive    Phase = "ACTIVE"
	PhaseCrashed   Phase = "CRASHED"
)

// PlayerActor is the feed actor name of the local player.
const PlayerActor = "you"

// BetPolicy decides in which phases a bet is accepted.
type BetPolicy string

const (
	BetPolicyCountdownOnly BetPolicy = "countdown-only"
	BetPolicyAllowActive   BetPolicy = "allow-active"
)

type Position struct {
	BetID             string    `json:"bet_id"`
	Amount            float64   `json:"amount"`
	PlacedAt          time.Time `json:"placed_at"`
	CashedOut         bool      `json:"cashed_out"`
	CashoutMultiplier float64   `json:"cashout_multiplier,omitempty"`
	Payout            float64   `json:"payout,omitempty"`
	Lost              bool      `json:"lost"`
	AutoCashOutTarget *float64  `json:"auto_cashout_target"`
}

// Open reports whether the position can still be cashed out.
func (p *Position) Open() bool {
	return p != nil && !p.CashedOut && !p.Lost
}

type EventType string

const (
	EventCountdown  EventType = "countdown"
	EventRoundStart EventType = "round_start"
	EventTick       EventType = "update"
	EventBetPlaced  EventType = "bet_placed"
	EventCashout    EventType = "cashout"
	EventPlayerLost EventType = "player_lost"
	EventCrash      EventType = "crash"
)

// Event is emitted by the engine after every committed transition.
type Event struct {
	Type        EventType `json:"type"`
	RoundID     int64     `json:"round_id"`
	At          time.Time `json:"at"`
	Actor       string    `json:"actor,omitempty"`
	BetID       string    `json:"bet_id,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	Multiplier  float64   `json:"multiplier,omitempty"`
	Payout      float64   `json:"payout,omitempty"`
	Balance     float64   `json:"balance"`
	Auto        bool      `json:"auto,omitempty"`
	PhaseEndsAt time.Time `json:"phase_ends_at,omitempty"`
	LaunchedAt  time.Time `json:"launched_at,omitempty"`
	Commitment  string    `json:"commitment,omitempty"`
	Reveal      *Draw     `json:"reveal,omitempty"` // only on crash
}

// RoundSnapshot is a consistent copy of the engine state for readers.
type RoundSnapshot struct {
	Phase             Phase     `json:"phase"`
	RoundID           int64     `json:"round_id"`
	CurrentMultiplier float64   `json:"current_multiplier"`
	CrashPoint        *float64  `json:"crash_point"` // nil until crashed
	Commitment        string    `json:"commitment,omitempty"`
	TimeRemainingMs   int64     `json:"time_remaining_ms"`
	LaunchedAt        time.Time `json:"launched_at,omitempty"`
	Balance           float64   `json:"balance"`
	Position          *Position `json:"position"`
	AutoCashOutTarget *float64  `json:"auto_cashout_target"`
	BetPolicy         BetPolicy `json:"bet_policy"`
}

type BetResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	BetID   string  `json:"bet_id,omitempty"`
	RoundID int64   `json:"round_id,omitempty"`
	Balance float64 `json:"balance"`
}

type CashoutResponse struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Payout     float64 `json:"payout,omitempty"`
	Balance    float64 `json:"balance"`
}

type AutoCashoutResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Target  *float64 `json:"target"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}
