// Package main 摄取任务执行器入口（ingest-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/config"
	"media-search-api/internal/infrastructure/messaging"
	"media-search-api/internal/wire"
	"media-search-api/pkg/logger"
	"media-search-api/pkg/tracer"
)

// dlqAlertThreshold 死信队列告警阈值
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "ingest-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	worker.Consumer.Handle(func(jobCtx context.Context, job *messaging.IngestJobMessage) error {
		summary, err := worker.Ingest.Execute(jobCtx, ingest.RequestFromMessage(job))
		if err != nil {
			return err
		}
		logger.Info(jobCtx, "ingest job finished",
			"folder", summary.Folder,
			"items", summary.ItemCount,
			"vectors", summary.TotalVectors,
			"saved", summary.Saved,
		)
		return nil
	})

	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("ingest-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("ingest-worker shutting down")
	cancel()
	worker.Consumer.Stop()
}
