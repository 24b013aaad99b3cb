// Command worker runs the background session worker: it consumes
// transcription and artifact-generation tasks from the queue until
// interrupted.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mindlog/session-worker/internal/artifacts"
	"github.com/mindlog/session-worker/internal/classify"
	"github.com/mindlog/session-worker/internal/config"
	"github.com/mindlog/session-worker/internal/media"
	"github.com/mindlog/session-worker/internal/platform/awsqueue"
	"github.com/mindlog/session-worker/internal/platform/gemini"
	"github.com/mindlog/session-worker/internal/platform/logger"
	"github.com/mindlog/session-worker/internal/platform/objectstore"
	"github.com/mindlog/session-worker/internal/platform/postgres"
	"github.com/mindlog/session-worker/internal/task"
	"github.com/mindlog/session-worker/internal/transcribe"
	"github.com/mindlog/session-worker/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Worker)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Warn("failed to close database", slog.String("error", closeErr.Error()))
		}
	}()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Storage.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	queue := awsqueue.New(sqs.NewFromConfig(awsCfg), cfg.Queue, log)
	objects := objectstore.New(s3.NewFromConfig(awsCfg), cfg.Storage, log)

	generator, err := gemini.NewGenerator(ctx, log, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM generator: %w", err)
	}

	recordings := postgres.NewRecordingStore(db, log)
	sessions := postgres.NewSessionStore(db, log)
	artifactStore := postgres.NewArtifactStore(db, log)

	transcribeTask := task.NewTranscribeTask(
		recordings,
		media.NewAssembler(objects, log),
		transcribe.NewRegistry(cfg.Transcribe, objects, log),
		classify.New(generator, log),
		objects,
		log,
	)
	artifactsTask := task.NewArtifactsTask(
		artifacts.NewPipeline(
			sessions,
			artifactStore,
			artifacts.NewPromptGenerator(generator, cfg.Artifacts.PromptsDir),
			log,
		),
		log,
	)

	consumer := worker.NewConsumer(queue, task.NewRouter(transcribeTask, artifactsTask, log), log)
	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		consumer.Stop()
	}()

	log.Info("session worker starting", slog.String("queue", cfg.Queue.Name))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
