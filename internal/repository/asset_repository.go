package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/models"
)

type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	GetView(ctx context.Context, id uuid.UUID) (*models.AssetView, error)
	Update(ctx context.Context, asset *models.Asset) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.AssetStatus) error
	ListByHolder(ctx context.Context, holderID uuid.UUID) ([]models.AssetView, error)
	ListPublished(ctx context.Context) ([]models.MarketplaceAsset, error)
	TradingJourney(ctx context.Context, assetID uuid.UUID) ([]models.TradeRecord, error)
	// Transfer accepts a pending purchase request on behalf of sellerID: the
	// request flips to accepted, the asset moves to the buyer and a trade
	// record is appended, all in one transaction.
	Transfer(ctx context.Context, requestID, sellerID uuid.UUID) (*models.Trade, error)
}
