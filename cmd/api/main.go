package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"crashround/internal/config"
	"crashround/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- fiberServer.Shutdown() }()

	select {
	case err := <-shutdownDone:
		if err != nil {
			log.Printf("Server forced to shutdown with error: %v", err)
		}
	case <-time.After(10 * time.Second):
		log.Println("Server shutdown timed out")
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[SERVER] Invalid configuration: %v", err)
	}

	srv := server.New(cfg)
	srv.RegisterFiberRoutes()

	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("[SERVER] Failed to start round engine: %v", err)
	}

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go func() {
		err := srv.Listen(fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			log.Printf("[SERVER] http server error: %s", err)
		}
	}()

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, done)

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
}
