package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/models"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

const userTracer = "user-repository"

// uniqueViolation is the PostgreSQL error code for a broken unique constraint.
const uniqueViolation = "23505"

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := instrument(ctx, userTracer, "CreateUser")
	defer func() { done(err) }()

	if user == nil {
		return pkgerrors.ErrNilUser
	}
	if user.Username == "" || user.Email == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username, email and password are required", pkgerrors.ErrInvalidInput)
	}

	query := `INSERT INTO users (username, email, password_hash, credits) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err = r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.Credits).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			slog.Warn("user already exists", "method", "Create", "username", user.Username)
			return pkgerrors.ErrUserAlreadyExists
		}
		slog.Error("failed to create user", "method", "Create", "username", user.Username, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "username", user.Username)
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *models.User, err error) {
	ctx, done := instrument(ctx, userTracer, "GetUserByID", attribute.String("user_id", id.String()))
	defer func() { done(err) }()

	query := `SELECT id, username, email, password_hash, credits, created_at FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (_ *models.User, err error) {
	ctx, done := instrument(ctx, userTracer, "GetUserByUsername")
	defer func() { done(err) }()

	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidInput)
	}

	query := `SELECT id, username, email, password_hash, credits, created_at FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresUserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Credits, &user.CreatedAt)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) TransferCredits(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64) (err error) {
	ctx, done := instrument(ctx, userTracer, "TransferCredits",
		attribute.String("from_user_id", fromUserID.String()),
		attribute.String("to_user_id", toUserID.String()),
		attribute.Float64("amount", amount),
	)
	defer func() { done(err) }()

	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidPrice)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1`, amount, fromUserID)
	if err != nil {
		return rollback(tx, "TransferCredits", fmt.Errorf("failed to debit user: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rollback(tx, "TransferCredits", fmt.Errorf("user %s: %w", fromUserID, pkgerrors.ErrInsufficientFunds))
	}

	res, err = tx.ExecContext(ctx, `UPDATE users SET credits = credits + $1 WHERE id = $2`, amount, toUserID)
	if err != nil {
		return rollback(tx, "TransferCredits", fmt.Errorf("failed to credit user: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rollback(tx, "TransferCredits", fmt.Errorf("user %s: %w", toUserID, pkgerrors.ErrUserNotFound))
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "TransferCredits", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("credits transferred", "method", "TransferCredits", "from_user_id", fromUserID, "to_user_id", toUserID, "amount", amount)
	return nil
}
