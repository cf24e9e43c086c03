package server

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"crashround/internal/cache"
	"crashround/internal/config"
	"crashround/internal/database"
	"crashround/internal/game"
	"crashround/internal/recorder"
	"crashround/internal/session"
)

type FiberServer struct {
	*fiber.App

	db       database.Service
	cache    cache.Service
	session  *session.Session
	gameHub  *game.Hub
	archiver *database.Archiver
	mirror   *cache.Mirror
	cancel   context.CancelFunc
}

// New builds the round session and connects the optional archive and redis
// mirror named by cfg. Either may be unavailable; the game runs without them.
func New(cfg config.Config) *FiberServer {
	var db database.Service
	if cfg.Archive {
		db = database.New()
		if db != nil {
			if err := db.Migrate(); err != nil {
				log.Printf("[SERVER] Archive migrations failed, running without archive: %v", err)
				db.Close()
				db = nil
			}
		}
	}

	var redisService cache.Service
	if cfg.Mirror {
		redisService = cache.New()
	}

	return newFiberServer(session.New(cfg.SessionOptions()), cfg.Game.StartingBalance, db, redisService)
}

func newFiberServer(sess *session.Session, startingBalance float64, db database.Service, redisService cache.Service) *FiberServer {
	hub := game.NewHub()

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashround",
			AppName:       "crashround",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:      db,
		cache:   redisService,
		session: sess,
		gameHub: hub,
	}

	sess.Subscribe(hub)
	sess.OnNotify(func(n session.Notification) {
		hub.Broadcast(game.WSMessage{Type: "notification", Data: n})
	})
	sess.OnFeed(func(ev recorder.FeedEvent) {
		hub.Broadcast(game.WSMessage{Type: "feed", Data: ev})
	})

	if db != nil {
		server.archiver = database.NewArchiver(db)
		sess.Subscribe(server.archiver)
	}
	if redisService != nil {
		server.mirror = redisService.Mirror(startingBalance)
		sess.Subscribe(server.mirror)
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	return server
}

// Start runs the hub, the archive and mirror writers and the round engine
// until ctx is cancelled or Shutdown is called.
func (s *FiberServer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.gameHub.Run()
	if s.archiver != nil {
		go s.archiver.Run(ctx)
	}
	if s.mirror != nil {
		go s.mirror.Run(ctx)
	}
	if err := s.session.Start(ctx); err != nil {
		s.cancel()
		return err
	}

	log.Println("[SERVER] Round engine started")
	return nil
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	s.session.Stop()
	if s.cancel != nil {
		s.cancel()
		if s.archiver != nil {
			s.archiver.Wait()
		}
		if s.mirror != nil {
			s.mirror.Wait()
		}
	}
	s.gameHub.Stop()

	err := s.App.ShutdownWithTimeout(5 * time.Second)

	// Close connections
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return err
}
