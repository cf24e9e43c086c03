package session

import (
	"testing"

	"crashround/internal/game"

	"github.com/stretchr/testify/assert"
)

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		name  string
		event game.Event
		kind  NotificationKind
		title string
		ok    bool
	}{
		{"bet", game.Event{Type: game.EventBetPlaced, Amount: 10, RoundID: 4}, NotifyBetPlaced, "Bet placed", true},
		{"manual cashout", game.Event{Type: game.EventCashout, Payout: 18, Multiplier: 1.8}, NotifyCashout, "Cashed out", true},
		{"auto cashout", game.Event{Type: game.EventCashout, Payout: 30, Multiplier: 3, Auto: true}, NotifyCashout, "Auto cashed out", true},
		{"loss", game.Event{Type: game.EventPlayerLost, Amount: 10, Multiplier: 2.5}, NotifyLost, "Crashed", true},
		{"launch", game.Event{Type: game.EventRoundStart, RoundID: 2}, NotifyLaunched, "Round launched", true},
		{"sample", game.Event{Type: game.EventTick}, "", "", false},
		{"crash without a bet", game.Event{Type: game.EventCrash}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, ok := notificationFor(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, note.Kind)
			assert.Equal(t, tt.title, note.Title)
		})
	}
}

func TestNotificationFor_Messages(t *testing.T) {
	note, _ := notificationFor(game.Event{Type: game.EventPlayerLost, Amount: 10, Multiplier: 2.5})
	assert.Equal(t, "Lost 10.00 at 2.50x", note.Message)

	note, _ = notificationFor(game.Event{Type: game.EventCashout, Payout: 18, Multiplier: 1.8})
	assert.Equal(t, "Won 18.00 at 1.80x", note.Message)
}

func TestNotifier_FansOut(t *testing.T) {
	n := &Notifier{}
	var a, b []NotificationKind
	n.OnNotify(func(note Notification) { a = append(a, note.Kind) })
	n.OnNotify(func(note Notification) { b = append(b, note.Kind) })

	n.Handle(game.Event{Type: game.EventBetPlaced, Amount: 1})
	n.Handle(game.Event{Type: game.EventTick})

	assert.Equal(t, []NotificationKind{NotifyBetPlaced}, a)
	assert.Equal(t, a, b)
}
