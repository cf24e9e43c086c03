package recorder

import (
	"time"

	"github.com/google/uuid"
)

type FeedType string

const (
	FeedBet     FeedType = "bet"
	FeedCashout FeedType = "cashout"
	FeedCrash   FeedType = "crash"
)

// FeedEvent is one line of the activity feed. Entries are never modified
// after they are appended.
type FeedEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       FeedType  `json:"type"`
	Actor      string    `json:"actor"`
	Amount     float64   `json:"amount"`
	Multiplier *float64  `json:"multiplier,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RoundID    int64     `json:"round_id"`
	Bot        bool      `json:"bot,omitempty"`
}

// RoundHistoryEntry records a completed round together with the revealed
// seeds, so the crash point can be re-derived by the reader.
type RoundHistoryEntry struct {
	RoundID    int64     `json:"round_id"`
	CrashPoint float64   `json:"crash_point"`
	EndedAt    time.Time `json:"ended_at"`
	ServerSeed string    `json:"server_seed,omitempty"`
	ClientSeed string    `json:"client_seed,omitempty"`
	Nonce      int64     `json:"nonce"`
	Commitment string    `json:"commitment,omitempty"`
}

type GameStats struct {
	TotalBetsVolume   float64 `json:"total_bets_volume"`
	BiggestWin        float64 `json:"biggest_win"`
	BiggestMultiplier float64 `json:"biggest_multiplier"`
	RoundsCompleted   int64   `json:"rounds_completed"`
}
