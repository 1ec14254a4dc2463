// Package main is the entry point for the Academia Tokugawa world server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/engine"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/network"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/config"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

func main() {
	log.Println("[WORLD-SERVER] Initializing Academia Tokugawa world server...")

	appLogger := logger.NewLogger()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		appLogger.Error("Failed to load config: " + err.Error())
		os.Exit(1)
	}

	appLogger.Info("Initializing SQLite database '" + cfg.DatabasePath + "'...")
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			appLogger.Error("Failed to create data directory: " + err.Error())
			os.Exit(1)
		}
	}
	db, err := storage.InitSQLite(cfg.DatabasePath)
	if err != nil {
		appLogger.Error("Failed to initialize SQLite: " + err.Error())
		os.Exit(1)
	}
	defer db.Close()
	store := storage.NewSQLiteStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger)
	go hub.Run(ctx)

	appLogger.Info("Bootstrapping world engine...")
	eng := engine.New(cfg, store, appLogger, hub, time.Now().UnixNano())
	hub.Bind(eng)

	go func() {
		if err := eng.Start(ctx); err != nil {
			appLogger.Error("Engine stopped with error: " + err.Error())
			cancel()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("[WORLD-SERVER] HTTP API & WS server listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	log.Println("[WORLD-SERVER] Server running. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[WORLD-SERVER] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown failed: " + err.Error())
	}
}
