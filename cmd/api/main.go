package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/superclinic/clinic-assistant/internal/api/router"
	"github.com/superclinic/clinic-assistant/internal/assistant"
	"github.com/superclinic/clinic-assistant/internal/availability"
	"github.com/superclinic/clinic-assistant/internal/booking"
	appconfig "github.com/superclinic/clinic-assistant/internal/config"
	"github.com/superclinic/clinic-assistant/internal/observability/metrics"
	"github.com/superclinic/clinic-assistant/internal/recommend"
	"github.com/superclinic/clinic-assistant/internal/specialty"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)

	specialtyRepo := specialty.NewRepository(pool)
	matcher := specialty.NewMatcher(specialtyRepo, logger,
		specialty.WithThreshold(cfg.MatchThreshold),
		specialty.WithMaxSuggestions(cfg.MatchSuggestion),
		specialty.WithMetrics(engineMetrics),
	)
	availabilityRepo := availability.NewRepository(pool)
	resolver := availability.NewResolver(availabilityRepo, cfg.AvailabilityHorizonDays, logger)
	engine := booking.NewEngine(pool, cfg.BookingTimeout, logger, engineMetrics)
	recommender := recommend.NewRecommender(availabilityRepo, cfg.RecommendWindowDays, cfg.RecommendMaxResults, logger)

	history := assistant.NewHistoryStore(redisClient, cfg.HistoryTTL)
	orchestrator := assistant.NewOrchestrator(
		specialtyRepo, matcher, resolver, availabilityRepo, engine, recommender, history, logger,
	)
	oracle := openai.NewClient(cfg.OpenAIAPIKey)
	chatService := assistant.NewService(oracle, orchestrator, history, cfg.OpenAIModel, cfg.HistoryRecentTurns, logger, engineMetrics)
	chatHandler := assistant.NewHandler(chatService, logger)

	r := router.New(&router.Config{
		Logger:         logger,
		ChatHandler:    chatHandler,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}
