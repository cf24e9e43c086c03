package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"crashround/internal/game"
)

type NotificationKind string

const (
	NotifyBetPlaced NotificationKind = "bet_placed"
	NotifyCashout   NotificationKind = "cashout"
	NotifyLost      NotificationKind = "lost"
	NotifyLaunched  NotificationKind = "round_launched"
)

// Notification is a user-facing message about the local player's round.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	RoundID int64            `json:"round_id"`
	At      time.Time        `json:"at"`
}

// Notifier turns engine events into notifications. Sinks are called while the
// engine lock is held and must not block.
type Notifier struct {
	mu    sync.RWMutex
	sinks []func(Notification)
}

func (n *Notifier) OnNotify(f func(Notification)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, f)
}

func (n *Notifier) Handle(ev game.Event) {
	note, ok := notificationFor(ev)
	if !ok {
		return
	}
	log.Printf("[NOTIFY] %s: %s", note.Title, note.Message)

	n.mu.RLock()
	sinks := n.sinks
	n.mu.RUnlock()
	for _, f := range sinks {
		f(note)
	}
}

func notificationFor(ev game.Event) (Notification, bool) {
	note := Notification{RoundID: ev.RoundID, At: ev.At}
	switch ev.Type {
	case game.EventBetPlaced:
		note.Kind = NotifyBetPlaced
		note.Title = "Bet placed"
		note.Message = fmt.Sprintf("%.2f on round #%d", ev.Amount, ev.RoundID)
	case game.EventCashout:
		note.Kind = NotifyCashout
		note.Title = "Cashed out"
		if ev.Auto {
			note.Title = "Auto cashed out"
		}
		note.Message = fmt.Sprintf("Won %.2f at %.2fx", ev.Payout, ev.Multiplier)
	case game.EventPlayerLost:
		note.Kind = NotifyLost
		note.Title = "Crashed"
		note.Message = fmt.Sprintf("Lost %.2f at %.2fx", ev.Amount, ev.Multiplier)
	case game.EventRoundStart:
		note.Kind = NotifyLaunched
		note.Title = "Round launched"
		note.Message = fmt.Sprintf("Round #%d is live", ev.RoundID)
	default:
		return Notification{}, false
	}
	return note, true
}
