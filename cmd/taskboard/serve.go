package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskboard/backend/internal/api"
	"github.com/taskboard/backend/internal/reminder"
	"github.com/taskboard/backend/internal/storage"
	"github.com/taskboard/backend/internal/timeline"
	"github.com/taskboard/backend/internal/websocket"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default command)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Printf("Starting Taskboard (version: %s)...", version)

	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	applied, err := storage.RunMigrations(context.Background(), db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Printf("Database migrations complete (%d applied)", len(applied))

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	store := storage.NewStore(db)
	roster := timeline.NewRosterCache(store.Roster, cfg.RosterCacheTTL)
	aggregator := timeline.NewAggregator(store.TimelineSource(), timeline.WithRoster(roster))

	reminders := reminder.NewScheduler(
		store.Tasks,
		roster,
		websocket.NewEventBroadcaster(hub),
		cfg.ReminderCron,
		cfg.ReminderHorizon(),
	)
	if err := reminders.Start(); err != nil {
		log.Printf("Warning: Failed to start reminder scheduler: %v", err)
	}

	router := api.NewRouter(api.Services{
		Config:     cfg,
		Store:      store,
		Aggregator: aggregator,
		Roster:     roster,
		Hub:        hub,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		reminders.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	log.Println("Shutting down server...")
	reminders.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
