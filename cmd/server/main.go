package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stepcoin/internal/activity"
	"stepcoin/internal/config"
	"stepcoin/internal/db"
	"stepcoin/internal/handlers"
	"stepcoin/internal/logging"
	"stepcoin/internal/scheduler"
	"stepcoin/internal/services"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.IsDevelopment() {
		if err := db.Migrate(database.DB); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	users := store.NewUserStore(database)
	wallets := store.NewWalletStore(database)
	ledgerStore := store.NewLedgerStore(database)
	cursors := store.NewCursorStore(database)
	activityStore := store.NewActivityStore(database)
	challengeStore := store.NewChallengeStore(database)
	userChallenges := store.NewUserChallengeStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	ledger := services.NewLedger(txRunner, wallets, ledgerStore, audit, hub)
	accrual := services.NewAccrual(txRunner, ledger, cursors, activityStore)
	challenges := services.NewChallenges(txRunner, ledger, challengeStore, userChallenges, cursors, activityStore, audit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler()
	if cfg.SyncEnabled {
		source := activity.New(cfg.ActivitySource, activityStore)
		job := scheduler.NewSyncJob(wallets, source, accrual, challenges)
		sched.AddTask("activity-sync", cfg.SyncInterval, job.Run)
		sched.Start(ctx)
		slog.Info("activity sync enabled", "source", cfg.ActivitySource, "interval", cfg.SyncInterval)
	}

	handler := handlers.New(txRunner, cfg, users, wallets, ledgerStore, activityStore, admin, audit, ledger, accrual, challenges, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("stepcoin API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
