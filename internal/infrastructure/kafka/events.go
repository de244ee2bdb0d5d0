package kafka

import "time"

const (
	TopicUsers  = "users"
	TopicAssets = "assets"
	TopicTrades = "trades"
)

const (
	EventUserRegistered = "user_registered"
	EventAssetCreated   = "asset_created"
	EventAssetUpdated   = "asset_updated"
	EventAssetPublished = "asset_published"
	EventTradeSettled   = "trade_settled"
)

type UserEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type AssetEvent struct {
	EventType string    `json:"event_type"`
	AssetID   string    `json:"asset_id"`
	ActorID   string    `json:"actor_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// TradeEvent is published once a purchase request has been accepted and the
// ownership change committed.
type TradeEvent struct {
	EventType string    `json:"event_type"`
	RequestID string    `json:"request_id"`
	AssetID   string    `json:"asset_id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}
