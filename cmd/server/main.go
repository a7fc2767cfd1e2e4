package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arialabs/aria-backend/internal/cache"
	"github.com/arialabs/aria-backend/internal/classifier"
	"github.com/arialabs/aria-backend/internal/dispatch"
	"github.com/arialabs/aria-backend/internal/llm"
	"github.com/arialabs/aria-backend/internal/quota"
	"github.com/arialabs/aria-backend/internal/server"
	"github.com/arialabs/aria-backend/internal/sos"
	"github.com/arialabs/aria-backend/internal/storage"
	"github.com/arialabs/aria-backend/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration (.env first so viper sees the variables)
	_ = godotenv.Load()
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Optional Redis-backed recent-context cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, running without recent-context cache", zap.Error(err))
			redisClient = nil
		}
	}
	recent := cache.NewRecentCache(redisClient, store, logger)

	// Model collaborators
	retry := llm.RetryPolicy{
		MaxAttempts: cfg.OpenAI.MaxAttempts,
		Backoff:     time.Duration(cfg.OpenAI.BackoffMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.OpenAI.TimeoutSec) * time.Second,
	}
	client := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens, cfg.OpenAI.Temperature, retry, logger)

	var synth llm.Synthesizer
	if cfg.Voice.Enabled {
		synth = llm.NewOpenAISynthesizer(cfg.OpenAI.APIKey, cfg.Voice.AudioDir, logger)
	}

	// Dispatch core
	clf := classifier.NewIntentClassifier(client, 6, logger)
	gate := quota.NewGate(store, logger)
	registry, err := dispatch.NewHandlers(client, store, logger).Registry()
	if err != nil {
		logger.Fatal("Failed to build handler registry", zap.Error(err))
	}
	engine := dispatch.NewEngine(store, gate, clf, registry,
		sos.NewLogEscalator(logger), synth, llm.NewModelTranslator(client, logger), recent, logger)

	srv := server.New(engine, server.Options{
		Addr:              cfg.Server.Addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMin:    cfg.Server.RequestsPerMin,
		RequestBurst:      cfg.Server.RequestBurst,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}, logger)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
