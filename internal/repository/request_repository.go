package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/models"
)

type RequestRepository interface {
	Create(ctx context.Context, req *models.PurchaseRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	// UpdatePrice and UpdateStatus only apply while the request is pending
	// and holderID still holds the asset.
	UpdatePrice(ctx context.Context, id, holderID uuid.UUID, price float64) error
	UpdateStatus(ctx context.Context, id, holderID uuid.UUID, status models.RequestStatus) error
	CountByAsset(ctx context.Context, assetID uuid.UUID) (int64, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.RequestSummary, error)
}
