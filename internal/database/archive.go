package database

import (
	"context"
	"log"
	"sync"
	"time"

	"crashround/internal/game"

	"github.com/google/uuid"
)

const ARCHIVE_QUEUE_SIZE = 256

// Archiver persists round outcomes and player events off the engine's
// goroutine. Events are dropped when the queue is full.
type Archiver struct {
	store Service
	runID string
	queue chan game.Event
	done  chan struct{}

	mu        sync.Mutex
	dropped   int64
	runCalled bool
}

func NewArchiver(store Service) *Archiver {
	return &Archiver{
		store: store,
		runID: uuid.NewString(),
		queue: make(chan game.Event, ARCHIVE_QUEUE_SIZE),
		done:  make(chan struct{}),
	}
}

// RunID identifies this process's rows in the archive.
func (a *Archiver) RunID() string {
	return a.runID
}

func (a *Archiver) Handle(ev game.Event) {
	switch ev.Type {
	case game.EventBetPlaced, game.EventCashout, game.EventPlayerLost, game.EventCrash:
	default:
		return
	}

	select {
	case a.queue <- ev:
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		log.Printf("[ARCHIVE] Queue full, dropped %s event of round %d", ev.Type, ev.RoundID)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (a *Archiver) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Run writes queued events until ctx is cancelled, then drains what is left.
func (a *Archiver) Run(ctx context.Context) {
	a.mu.Lock()
	if a.runCalled {
		a.mu.Unlock()
		return
	}
	a.runCalled = true
	a.mu.Unlock()

	defer close(a.done)
	for {
		select {
		case ev := <-a.queue:
			a.persist(ctx, ev)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case ev := <-a.queue:
					a.persist(flushCtx, ev)
				default:
					log.Println("[ARCHIVE] Stopped")
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (a *Archiver) Wait() {
	<-a.done
}

func (a *Archiver) persist(ctx context.Context, ev game.Event) {
	if ctx.Err() != nil {
		ctx = context.Background()
	}

	if ev.Type == game.EventCrash {
		record := RoundRecord{
			RunID:      a.runID,
			RoundID:    ev.RoundID,
			CrashPoint: ev.Multiplier,
			LaunchedAt: ev.LaunchedAt,
			EndedAt:    ev.At,
		}
		if ev.Reveal != nil {
			record.ServerSeed = ev.Reveal.ServerSeed
			record.ClientSeed = ev.Reveal.ClientSeed
			record.Nonce = ev.Reveal.Nonce
			record.Commitment = ev.Reveal.Commitment
		}
		if err := a.store.SaveRound(ctx, record); err != nil {
			log.Printf("[ARCHIVE] %v", err)
		}
	}

	if err := a.store.SaveEvent(ctx, a.runID, ev); err != nil {
		log.Printf("[ARCHIVE] %v", err)
	}
}
