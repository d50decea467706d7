package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stepcoin/internal/config"
	"stepcoin/internal/db"
	"stepcoin/internal/logging"
	"stepcoin/internal/services"
	"stepcoin/internal/store"
	"stepcoin/internal/websocket"
)

func main() {
	seed := flag.Bool("seed", false, "insert the demo challenge catalog after migrating")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [-seed] [up|down|status]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel)
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	switch command {
	case "up":
		err = db.Migrate(database.DB)
	case "down":
		err = db.Rollback(database.DB)
	case "status":
		err = db.Status(database.DB)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}

	if !*seed {
		return
	}
	txRunner := db.NewTxRunner(database)
	ledger := services.NewLedger(txRunner, store.NewWalletStore(database), store.NewLedgerStore(database), store.NewAuditStore(database), websocket.NewHub())
	challenges := services.NewChallenges(txRunner, ledger, store.NewChallengeStore(database), store.NewUserChallengeStore(database), store.NewCursorStore(database), store.NewActivityStore(database), store.NewAuditStore(database))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	created, err := challenges.Seed(ctx, "", services.DemoCatalog(time.Now()))
	if err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	for _, c := range created {
		slog.Info("challenge seeded", "id", c.ID, "title", c.Title)
	}
}
