package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// TransferCredits moves amount from one user to another in a single transaction.
	TransferCredits(ctx context.Context, fromUserID, toUserID uuid.UUID, amount float64) error
}
