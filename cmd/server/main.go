package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dverbeek/lecturecast/internal/account"
	"github.com/dverbeek/lecturecast/internal/api"
	"github.com/dverbeek/lecturecast/internal/artifact"
	"github.com/dverbeek/lecturecast/internal/config"
	"github.com/dverbeek/lecturecast/internal/ledger"
	"github.com/dverbeek/lecturecast/internal/queue"
	"github.com/dverbeek/lecturecast/internal/summarizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir, cfg.DataDir, cfg.PublicDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create directory failed", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// The account store is optional: without it, auth routes return 503 and
	// uploads run as guests.
	var accounts api.AccountStore
	if cfg.DatabaseConfigured() {
		pool, err := account.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect database failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := account.EnsureSchema(ctx, pool); err != nil {
			log.Error("ensure schema failed", "error", err)
			os.Exit(1)
		}
		accounts = account.NewStore(pool)
	} else {
		log.Warn("no database configured, auth disabled")
	}

	var archiver api.ArchiveEnqueuer
	if cfg.ArchiveConfigured() {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		archiver = queue.NewEnqueuer(client)
	}

	ledgerStore := ledger.NewStore(cfg.DataDir, log)
	invoker := summarizer.NewInvoker(cfg.PythonBin, cfg.ScriptPath, cfg.UploadDir, cfg.OutputDir, cfg.GeminiModel, cfg.InvokeTimeout)
	reader := artifact.NewReader(cfg.OutputDir, log)

	srv := api.New(cfg, log, accounts, ledgerStore, invoker, reader, archiver)
	log.Info("lecturecast starting",
		"addr", cfg.Address,
		"uploads", filepath.Clean(cfg.UploadDir),
		"outputs", filepath.Clean(cfg.OutputDir),
	)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
