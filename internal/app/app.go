package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/piyushgit011/image-process/config"
	"github.com/piyushgit011/image-process/internal/controller/restapi"
	"github.com/piyushgit011/image-process/internal/controller/worker/dispatcher"
	"github.com/piyushgit011/image-process/internal/controller/worker/reclaimer"
	"github.com/piyushgit011/image-process/internal/infrastructure/detect"
	"github.com/piyushgit011/image-process/internal/repo/persistent"
	"github.com/piyushgit011/image-process/internal/usecase/job"
	"github.com/piyushgit011/image-process/internal/usecase/stats"
	"github.com/piyushgit011/image-process/migrations"
	"github.com/piyushgit011/image-process/pkg/httpserver"
	"github.com/piyushgit011/image-process/pkg/logger"
	"github.com/piyushgit011/image-process/pkg/postgres"
	"github.com/piyushgit011/image-process/pkg/redisqueue"
	"github.com/piyushgit011/image-process/pkg/s3client"
)

// s3ConnectTimeout bounds the blob store and queue connectivity checks at startup.
const s3ConnectTimeout = 10 * time.Second

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Migrations
	if err := postgres.Migrate(cfg.PG.URL, migrations.FS, "."); err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.Migrate: %w", err))
	}

	// postgres
	pg, err := postgres.New(
		cfg.PG.URL,
		postgres.MaxPoolSize(cfg.PG.PoolMax),
		postgres.MaxOverflow(cfg.PG.PoolOverflow),
		postgres.ConnLifetime(cfg.PG.ConnLifetime),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, s3ConnectTimeout)
	s3c, err := s3client.New(
		s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
	)
	s3Cancel()
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	// queue
	queueCtx, queueCancel := context.WithTimeout(ctx, s3ConnectTimeout)
	queue, err := redisqueue.New(
		queueCtx, cfg.Redis.URL, cfg.Redis.Stream,
		redisqueue.Group(cfg.Redis.Group),
		redisqueue.Consumer(cfg.Redis.Consumer),
		redisqueue.MaxQueueSize(cfg.Redis.MaxQueueSize),
		redisqueue.VisibilityTimeout(cfg.Reclaimer.VisibilityTimeout),
	)
	queueCancel()
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - redisqueue.New: %w", err))
	}
	defer queue.Close()

	// Repository
	blobs := persistent.NewBlobRepo(s3c, cfg.S3.Bucket, cfg.S3.Endpoint)
	metadata := persistent.NewJobMetadataRepo(pg)
	models := detect.New(cfg.Models.CarConfidenceThreshold, cfg.Models.FaceConfidenceThreshold)

	// Use-Case
	jobUseCase := job.New(blobs, metadata, queue, models, cfg.Gate.InlinePayloadMaxBytes, l)
	statsUseCase := stats.New(metadata, queue)

	// Worker Pool / Job Dispatcher
	dsp, err := dispatcher.New(
		queue, blobs, metadata, models, statsUseCase, l,
		cfg.Dispatcher.NumWorkers,
		cfg.Dispatcher.PollTimeout,
		cfg.Dispatcher.WorkerTimeout,
		cfg.Dispatcher.CPUTimeout,
		cfg.Dispatcher.MaxAttempts,
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - dispatcher.New: %w", err))
	}

	// Queue Reclaimer
	rcl := reclaimer.New(
		queue, l,
		cfg.Reclaimer.DueInterval,
		cfg.Reclaimer.StaleInterval,
		cfg.Reclaimer.VisibilityTimeout,
	)

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, jobUseCase, statsUseCase, l)

	// Start Components
	if err := dsp.Start(ctx); err != nil {
		l.Fatal(fmt.Errorf("app - Run - dispatcher.Start: %w", err))
	}
	if err := rcl.Start(ctx); err != nil {
		l.Fatal(fmt.Errorf("app - Run - reclaimer.Start: %w", err))
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: " + s.String())
	case err = <-httpServer.Notify():
		l.Error(err, "app - Run - httpServer.Notify")
	}

	// Shutdown
	if err := httpServer.Shutdown(); err != nil {
		l.Error(err, "app - Run - httpServer.Shutdown")
	}

	cancel()

	dspShutdownCtx, dspShutdownCancel := context.WithTimeout(context.Background(), cfg.Dispatcher.WorkerTimeout)
	if err := dsp.Shutdown(dspShutdownCtx); err != nil {
		l.Error(err, "app - Run - dispatcher.Shutdown")
	}
	dspShutdownCancel()

	rclShutdownCtx, rclShutdownCancel := context.WithTimeout(context.Background(), cfg.Reclaimer.ShutdownTimeout)
	if err := rcl.Shutdown(rclShutdownCtx); err != nil {
		l.Error(err, "app - Run - reclaimer.Shutdown")
	}
	rclShutdownCancel()
}
