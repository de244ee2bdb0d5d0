package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetStatus string

const (
	AssetStatusDraft     AssetStatus = "draft"
	AssetStatusPublished AssetStatus = "published"
)

func (s AssetStatus) Valid() bool {
	return s == AssetStatusDraft || s == AssetStatusPublished
}

// Asset is a tradable item. CreatorID never changes after insert;
// CurrentHolderID only moves through an accepted purchase request.
type Asset struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Image           string      `json:"image,omitempty"`
	Status          AssetStatus `json:"status"`
	CreatorID       uuid.UUID   `json:"creator_id"`
	CurrentHolderID uuid.UUID   `json:"current_holder_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// AssetView is an asset joined with the usernames of its creator and holder.
type AssetView struct {
	Asset
	CreatorUsername       string
	CurrentHolderUsername string
}

// TradeRecord is one entry of an asset's trading journey.
// Seq is store generated and defines append order.
type TradeRecord struct {
	Seq            int64     `json:"-"`
	AssetID        uuid.UUID `json:"-"`
	HolderID       uuid.UUID `json:"-"`
	HolderUsername string    `json:"holder"`
	Date           time.Time `json:"date"`
	Price          float64   `json:"price"`
}

// Trade is the outcome of an accepted purchase request.
type Trade struct {
	RequestID uuid.UUID
	AssetID   uuid.UUID
	SellerID  uuid.UUID
	BuyerID   uuid.UUID
	Price     float64
	Date      time.Time
}

type MarketplaceAsset struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Image         string    `json:"image"`
	CurrentHolder string    `json:"currentHolder"`
}
