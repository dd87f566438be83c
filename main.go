package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/room4-2/OpenInterpret/app"
	"github.com/room4-2/OpenInterpret/config"
	"github.com/room4-2/OpenInterpret/metrics"
	"github.com/room4-2/OpenInterpret/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("")
	hub := server.NewHub(logger, m)
	a, err := app.New(ctx, cfg, m, hub, logger)
	if err != nil {
		logger.Error("Failed to create session", "error", err)
		os.Exit(1)
	}
	hub.SetSessionID(a.Session.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Session.Run(ctx)
	}()

	srv := server.NewServerWebsocket(cfg, hub, a.Session, m, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Error("Server error", "error", err)
		cancel()
	}

	<-done
	if err := a.Close(); err != nil {
		logger.Warn("⚠️ Audio shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
