package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Makazone/howhappy-api/internal/analyzer"
	"github.com/Makazone/howhappy-api/internal/config"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/internal/transcriber"
	"github.com/Makazone/howhappy-api/internal/worker"
	"github.com/Makazone/howhappy-api/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	debug := os.Getenv("DEBUG") == "true"
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting howhappy worker service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	db, err := storage.NewPostgresStorage(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
		return
	}
	defer db.Close()

	logger.Info("Database connection established")

	s3Storage, err := storage.NewS3Storage(
		cfg.S3.Endpoint,
		cfg.S3.Region,
		cfg.S3.AccessKey,
		cfg.S3.SecretKey,
		cfg.S3.Bucket,
	)
	if err != nil {
		logger.Fatal("Failed to initialize S3 storage", zap.Error(err))
		return
	}

	logger.Info("S3 storage initialized")

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.Worker.MaxAttempts)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		return
	}
	defer rabbitMQ.Close()

	logger.Info("RabbitMQ connection established")

	transcriberClient := transcriber.NewClient(cfg.Transcriber.BaseURL, cfg.Transcriber.APIKey)
	analyzerClient := analyzer.NewClient(cfg.Analyzer.BaseURL, cfg.Analyzer.APIKey, cfg.Analyzer.Model)

	transcription := worker.NewTranscriptionProcessor(db, s3Storage, transcriberClient, rabbitMQ)
	analysis := worker.NewAnalysisProcessor(db, analyzerClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Consuming transcription jobs", zap.String("queue", queue.QueueTranscriptionRequest))
		if err := rabbitMQ.Subscribe(queue.QueueTranscriptionRequest, cfg.Worker.Prefetch, transcription.ProcessJob); err != nil {
			logger.Error("Transcription consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	go func() {
		logger.Info("Consuming analysis jobs", zap.String("queue", queue.QueueAnalysisRequest))
		if err := rabbitMQ.Subscribe(queue.QueueAnalysisRequest, cfg.Worker.Prefetch, analysis.ProcessJob); err != nil {
			logger.Error("Analysis consumer stopped", zap.Error(err))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Worker service shutdown complete")
}
