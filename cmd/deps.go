package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/rekognizer/internal/config"
	"github.com/example/rekognizer/internal/detector"
	"github.com/example/rekognizer/internal/facenet"
	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/logging"
	"github.com/example/rekognizer/internal/repository"
	"github.com/example/rekognizer/internal/usecase"
)

// bootstrap loads the configuration and the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access db handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openRepository connects to Postgres and makes sure the embeddings table exists.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.EnrollmentRepository, func(), error) {
	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	repo := repository.NewEnrollmentRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		closeDB()
		return nil, nil, err
	}
	return repo, closeDB, nil
}

func openRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// newFaceStack builds the pipeline, embedder and matcher from the configuration.
func newFaceStack(cfg *config.Config, logger *zap.Logger) (*usecase.FacePipeline, *facenet.Client, facenet.Matcher) {
	loader := imageprocessor.NewHTTPLoader(&http.Client{Timeout: cfg.Image.FetchTimeout}, cfg.Image.MaxBytes)
	locator := detector.New(cfg.Detector.URL, &http.Client{Timeout: cfg.Detector.Timeout}, logger)
	embedder := facenet.NewClient(cfg.Facenet.PredictURL(), cfg.Facenet.SignatureName, &http.Client{Timeout: cfg.Facenet.Timeout}, logger)

	pipeline := usecase.NewFacePipeline(loader, locator, cfg.Image.MaxEdge)
	return pipeline, embedder, facenet.NewMatcher(cfg.Facenet.Threshold)
}
