package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	TokenTTL     time.Duration
	OTLPEndpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:  getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=marketplace sslmode=disable"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),
		TokenTTL:     time.Hour,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}

	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			slog.Warn("invalid TOKEN_TTL, using default", "value", raw, "default", cfg.TokenTTL)
		} else {
			cfg.TokenTTL = ttl
		}
	}

	slog.Info("config loaded", "http_addr", cfg.HTTPAddr, "redis_addr", cfg.RedisAddr, "kafka_brokers", cfg.KafkaBrokers, "token_ttl", cfg.TokenTTL)
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
