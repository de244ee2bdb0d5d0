package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDenied   RequestStatus = "denied"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusDenied:
		return true
	}
	return false
}

// CanTransitionTo reports whether a request in status s may move to next.
// Accepted and denied are terminal.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	return s == RequestStatusPending && (next == RequestStatusAccepted || next == RequestStatusDenied)
}

// PurchaseRequest is a buyer's price proposal for an asset.
type PurchaseRequest struct {
	ID            uuid.UUID     `json:"id"`
	AssetID       uuid.UUID     `json:"asset_id"`
	BuyerID       uuid.UUID     `json:"buyer_id"`
	ProposedPrice float64       `json:"proposed_price"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type RequestSummary struct {
	ID            uuid.UUID     `json:"id"`
	AssetName     string        `json:"assetName"`
	ProposedPrice float64       `json:"proposedPrice"`
	Status        RequestStatus `json:"status"`
}
