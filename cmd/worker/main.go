package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dverbeek/lecturecast/internal/archive"
	"github.com/dverbeek/lecturecast/internal/config"
	"github.com/dverbeek/lecturecast/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if !cfg.ArchiveConfigured() {
		log.Error("worker requires LECTURECAST_REDIS_ADDR and LECTURECAST_S3_ENDPOINT")
		os.Exit(1)
	}

	store, err := archive.New(cfg)
	if err != nil {
		log.Error("init archive storage failed", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Error("ensure bucket failed", "error", err)
		os.Exit(1)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: 2,
	})
	processor := worker.NewProcessor(store, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("archive worker starting", "redis", cfg.RedisAddr, "bucket", cfg.S3Bucket)
	if err := server.Run(processor.Handler()); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
