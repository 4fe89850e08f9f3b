package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Makazone/howhappy-api/internal/auth"
	"github.com/Makazone/howhappy-api/internal/config"
	"github.com/Makazone/howhappy-api/internal/httpapi"
	"github.com/Makazone/howhappy-api/internal/pipeline"
	"github.com/Makazone/howhappy-api/internal/queue"
	"github.com/Makazone/howhappy-api/internal/storage"
	"github.com/Makazone/howhappy-api/internal/surveys"
	"github.com/Makazone/howhappy-api/internal/token"
	"github.com/Makazone/howhappy-api/pkg/cache"
	"github.com/Makazone/howhappy-api/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	resetDB := flag.Bool("reset-db", false, "drop and re-run all migrations")
	flag.Parse()

	debug := os.Getenv("DEBUG") == "true"
	if err := logger.Init(debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting howhappy API service")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
		return
	}

	if *resetDB {
		if err := storage.ResetMigrations(cfg.Postgres.DSN); err != nil {
			logger.Fatal("Failed to reset database", zap.Error(err))
			return
		}
		logger.Info("Database reset complete")
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

	redisCache, err := cache.NewRedisCache(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		5*time.Minute,
	)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
		return
	}
	defer redisCache.Close()

	logger.Info("Redis cache connection established")

	rabbitMQ, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.Worker.MaxAttempts)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		return
	}
	defer rabbitMQ.Close()

	logger.Info("RabbitMQ connection established")

	tokens := token.NewService(cfg.JWT.Secret, cfg.JWT.UserTTL, cfg.JWT.ResponseTTL)

	handler := httpapi.NewHandler(
		auth.NewService(db, tokens),
		surveys.NewService(db, redisCache),
		pipeline.NewService(db, db, s3Storage, rabbitMQ, tokens, redisCache),
		tokens,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("API service shutdown complete")
}
