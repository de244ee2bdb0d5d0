package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/AssetMarketplace/internal/api"
	"github.com/honeynil/AssetMarketplace/internal/config"
	"github.com/honeynil/AssetMarketplace/internal/handler"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/kafka"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
	"github.com/honeynil/AssetMarketplace/internal/observability"
	core "github.com/honeynil/AssetMarketplace/internal/repository/postgres"
	service "github.com/honeynil/AssetMarketplace/internal/services"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

const settlementGroup = "marketplace-settlement"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Инициализируем логи, метрики, трейсы
	shutdown, err := observability.Setup(ctx, "asset-marketplace", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to open Postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	if err := core.Migrate(ctx, db); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		os.Exit(1)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	userRepo := core.NewPostgresUserRepository(db)
	assetRepo := core.NewPostgresAssetRepository(db)
	requestRepo := core.NewPostgresRequestRepository(db)

	assets := service.NewAssetService(assetRepo, requestRepo, producer)
	users := service.NewAuthService(userRepo, redisClient, producer, cfg.JWTSecret, cfg.TokenTTL)

	// Расчёт кредитов по принятым сделкам
	settlement := kafka.NewConsumer(cfg.KafkaBrokers, kafka.TopicTrades, settlementGroup, userRepo, redisClient)
	defer settlement.Close()
	go settlement.Consume(ctx)

	router := api.SetupRouter(handler.NewHandler(assets, users), redisClient, cfg.JWTSecret, prometheus.DefaultGatherer)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
