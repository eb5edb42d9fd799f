// Command server runs the synchronization engine's admin surface
// (healthz, metrics) alongside an in-process PaperRegistry. It exposes no
// sync transport of its own; cmd/gateway is a separate process that builds
// its own registry.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desperadomar/bluelatex/internal/admin"
	"github.com/desperadomar/bluelatex/internal/config"
	"github.com/desperadomar/bluelatex/internal/diffsync"
	"github.com/desperadomar/bluelatex/internal/logging"
	"github.com/desperadomar/bluelatex/internal/presence"
	"github.com/desperadomar/bluelatex/internal/storeinit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Environment: cfg.Server.Env})
	if err != nil {
		slog.Error("logging init failed", "error", err)
		os.Exit(1)
	}

	st, closeStore, err := storeinit.Open(cfg.Store)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tracker := presence.NewTracker(cfg.Presence.RedisAddr, cfg.Presence.Channel, log)
	defer tracker.Close()

	log.Info("starting", "production", cfg.IsProduction(), "store_backend", cfg.Store.Backend)

	registry := diffsync.NewPaperRegistry(st)

	adminServer := admin.NewServer(cfg.Server.AdminListen, log)
	go func() {
		log.Info("admin server listening", "addr", cfg.Server.AdminListen)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin server shutdown error", "error", err)
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Warn("paper registry shutdown error", "error", err)
	}
}
