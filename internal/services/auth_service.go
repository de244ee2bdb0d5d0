package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/auth"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/kafka"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
	"github.com/honeynil/AssetMarketplace/internal/models"
	"github.com/honeynil/AssetMarketplace/internal/repository"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (uuid.UUID, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type authService struct {
	userRepo    repository.UserRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
	jwtSecret   string
	tokenTTL    time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	jwtSecret string,
	tokenTTL time.Duration,
) *authService {
	return &authService{
		userRepo:    userRepo,
		redisClient: redisClient,
		producer:    producer,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
	}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if username == "" || email == "" || password == "" {
		span.SetStatus(codes.Error, "empty username, email or password")
		return uuid.Nil, fmt.Errorf("%w: username, email and password are required", pkgerrors.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "username", username, "error", err)
		return uuid.Nil, recordError(span, fmt.Errorf("failed to hash password: %w", err), "password hashing failed")
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Credits:      models.DefaultCredits,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !stderrors.Is(err, pkgerrors.ErrUserAlreadyExists) {
			slog.Error("failed to create user", "username", username, "error", err)
		}
		return uuid.Nil, recordError(span, err, "user creation failed")
	}

	emit(ctx, s.producer, kafka.TopicUsers, user.ID.String(), kafka.UserEvent{
		EventType: kafka.EventUserRegistered,
		UserID:    user.ID.String(),
		Username:  user.Username,
		CreatedAt: time.Now().UTC(),
	})

	slog.Info("user registered successfully", "user_id", user.ID, "username", username)
	return user.ID, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if !stderrors.Is(err, pkgerrors.ErrUserNotFound) && !stderrors.Is(err, pkgerrors.ErrInvalidInput) {
			slog.Error("failed to load user", "username", username, "error", err)
			return "", recordError(span, err, "user lookup failed")
		}
		slog.Warn("login failed", "username", username)
		return "", recordError(span, pkgerrors.ErrInvalidCredentials, "unknown user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed", "username", username, "user_id", user.ID)
		return "", recordError(span, pkgerrors.ErrInvalidCredentials, "password mismatch")
	}

	token, err := auth.GenerateJWT(s.jwtSecret, user.ID, s.tokenTTL)
	if err != nil {
		slog.Error("failed to sign token", "user_id", user.ID, "error", err)
		return "", recordError(span, err, "token generation failed")
	}

	if err := s.redisClient.Set(ctx, auth.TokenKey(user.ID), token, s.tokenTTL); err != nil {
		slog.Error("failed to store token", "user_id", user.ID, "error", err)
		return "", recordError(span, fmt.Errorf("failed to store token: %w", err), "token storage failed")
	}

	slog.Info("user logged in", "user_id", user.ID)
	return token, nil
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()

	if err := s.redisClient.Del(ctx, auth.TokenKey(userID)); err != nil {
		slog.Error("failed to revoke token", "user_id", userID, "error", err)
		return recordError(span, fmt.Errorf("failed to revoke token: %w", err), "token revocation failed")
	}

	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Profile")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, recordError(span, err, "user lookup failed")
	}
	return user, nil
}
