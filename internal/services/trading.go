package service

import (
	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/models"
)

type AssetInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Status      models.AssetStatus `json:"status"`
}

// AssetSummary is an asset as seen by its holder, with metrics derived from
// its trading journey.
type AssetSummary struct {
	ID                  uuid.UUID            `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description"`
	Image               string               `json:"image"`
	CurrentHolder       string               `json:"currentHolder"`
	TradingJourney      []models.TradeRecord `json:"tradingJourney"`
	AverageTradingPrice float64              `json:"averageTradingPrice"`
	LastTradingPrice    float64              `json:"lastTradingPrice"`
	NumberOfTransfers   int                  `json:"numberOfTransfers"`
	IsListed            bool                 `json:"isListed"`
	Proposals           int64                `json:"proposals"`
}

type AssetDetails struct {
	Creator string `json:"creator"`
	AssetSummary
}

// tradingMetrics returns the mean price and the price of the last appended
// trade, both zero for an empty journey.
func tradingMetrics(journey []models.TradeRecord) (average, last float64) {
	if len(journey) == 0 {
		return 0, 0
	}
	var sum float64
	for _, t := range journey {
		sum += t.Price
	}
	return sum / float64(len(journey)), journey[len(journey)-1].Price
}
