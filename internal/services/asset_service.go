package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/kafka"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	"github.com/honeynil/AssetMarketplace/internal/models"
	"github.com/honeynil/AssetMarketplace/internal/repository"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const assetTracer = "asset-service"

// AssetService covers the asset lifecycle and the purchase requests made on
// assets. Every method receives the authenticated caller explicitly.
type AssetService interface {
	CreateAsset(ctx context.Context, callerID uuid.UUID, in AssetInput) (uuid.UUID, error)
	UpdateAsset(ctx context.Context, callerID, assetID uuid.UUID, in AssetInput) error
	PublishAsset(ctx context.Context, callerID, assetID uuid.UUID) error
	GetAssetDetails(ctx context.Context, callerID, assetID uuid.UUID) (*AssetDetails, error)
	ListUserAssets(ctx context.Context, callerID uuid.UUID) ([]AssetSummary, error)
	ListMarketplace(ctx context.Context, callerID uuid.UUID) ([]models.MarketplaceAsset, error)

	RequestToBuy(ctx context.Context, callerID, assetID uuid.UUID, proposedPrice float64) (uuid.UUID, error)
	NegotiateRequest(ctx context.Context, callerID, requestID uuid.UUID, proposedPrice float64) error
	AcceptRequest(ctx context.Context, callerID, requestID uuid.UUID) error
	DenyRequest(ctx context.Context, callerID, requestID uuid.UUID) error
	ListUserRequests(ctx context.Context, callerID uuid.UUID) ([]models.RequestSummary, error)
}

type assetService struct {
	assetRepo   repository.AssetRepository
	requestRepo repository.RequestRepository
	producer    kafka.KafkaProducer
}

func NewAssetService(
	assetRepo repository.AssetRepository,
	requestRepo repository.RequestRepository,
	producer kafka.KafkaProducer,
) *assetService {
	return &assetService{
		assetRepo:   assetRepo,
		requestRepo: requestRepo,
		producer:    producer,
	}
}

func startSpan(ctx context.Context, name string, callerID uuid.UUID) (context.Context, trace.Span) {
	return otel.Tracer(assetTracer).Start(ctx, name, trace.WithAttributes(attribute.String("caller_id", callerID.String())))
}

func validateInput(in AssetInput) error {
	if in.Name == "" || in.Description == "" {
		return fmt.Errorf("%w: name and description are required", pkgerrors.ErrInvalidInput)
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: status must be draft or published", pkgerrors.ErrInvalidAssetStatus)
	}
	return nil
}

func (s *assetService) emitAsset(ctx context.Context, eventType string, asset *models.Asset, actorID uuid.UUID) {
	emit(ctx, s.producer, kafka.TopicAssets, asset.ID.String(), kafka.AssetEvent{
		EventType: eventType,
		AssetID:   asset.ID.String(),
		ActorID:   actorID.String(),
		Status:    string(asset.Status),
		CreatedAt: time.Now().UTC(),
	})
}

// ownAsset loads an asset the caller created. Anything else is reported as
// not found.
func (s *assetService) ownAsset(ctx context.Context, callerID, assetID uuid.UUID) (*models.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.CreatorID != callerID {
		slog.Warn("asset access denied", "asset_id", assetID, "caller_id", callerID)
		return nil, pkgerrors.ErrAssetNotFound
	}
	return asset, nil
}

func (s *assetService) CreateAsset(ctx context.Context, callerID uuid.UUID, in AssetInput) (uuid.UUID, error) {
	ctx, span := startSpan(ctx, "CreateAsset", callerID)
	defer span.End()

	if in.Status == "" {
		in.Status = models.AssetStatusDraft
	}
	if err := validateInput(in); err != nil {
		return uuid.Nil, recordError(span, err, "invalid input")
	}

	asset := &models.Asset{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Status:      in.Status,
		CreatorID:   callerID,
	}
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		slog.Error("failed to create asset", "caller_id", callerID, "error", err)
		return uuid.Nil, recordError(span, err, "asset creation failed")
	}

	s.emitAsset(ctx, kafka.EventAssetCreated, asset, callerID)
	slog.Info("asset created", "asset_id", asset.ID, "caller_id", callerID, "status", asset.Status)
	return asset.ID, nil
}

func (s *assetService) UpdateAsset(ctx context.Context, callerID, assetID uuid.UUID, in AssetInput) error {
	ctx, span := startSpan(ctx, "UpdateAsset", callerID)
	defer span.End()

	asset, err := s.ownAsset(ctx, callerID, assetID)
	if err != nil {
		return recordError(span, err, "asset lookup failed")
	}
	if err := validateInput(in); err != nil {
		return recordError(span, err, "invalid input")
	}

	asset.Name = in.Name
	asset.Description = in.Description
	asset.Image = in.Image
	asset.Status = in.Status
	if err := s.assetRepo.Update(ctx, asset); err != nil {
		slog.Error("failed to update asset", "asset_id", assetID, "caller_id", callerID, "error", err)
		return recordError(span, err, "asset update failed")
	}

	s.emitAsset(ctx, kafka.EventAssetUpdated, asset, callerID)
	slog.Info("asset updated", "asset_id", assetID, "caller_id", callerID)
	return nil
}

func (s *assetService) PublishAsset(ctx context.Context, callerID, assetID uuid.UUID) error {
	ctx, span := startSpan(ctx, "PublishAsset", callerID)
	defer span.End()

	asset, err := s.ownAsset(ctx, callerID, assetID)
	if err != nil {
		return recordError(span, err, "asset lookup failed")
	}

	if err := s.assetRepo.SetStatus(ctx, assetID, models.AssetStatusPublished); err != nil {
		slog.Error("failed to publish asset", "asset_id", assetID, "caller_id", callerID, "error", err)
		return recordError(span, err, "asset publish failed")
	}
	asset.Status = models.AssetStatusPublished

	s.emitAsset(ctx, kafka.EventAssetPublished, asset, callerID)
	slog.Info("asset published", "asset_id", assetID, "caller_id", callerID)
	return nil
}

func (s *assetService) summarize(ctx context.Context, view *models.AssetView) (AssetSummary, error) {
	journey, err := s.assetRepo.TradingJourney(ctx, view.ID)
	if err != nil {
		return AssetSummary{}, err
	}
	proposals, err := s.requestRepo.CountByAsset(ctx, view.ID)
	if err != nil {
		return AssetSummary{}, err
	}

	average, last := tradingMetrics(journey)
	return AssetSummary{
		ID:                  view.ID,
		Name:                view.Name,
		Description:         view.Description,
		Image:               view.Image,
		CurrentHolder:       view.CurrentHolderUsername,
		TradingJourney:      journey,
		AverageTradingPrice: average,
		LastTradingPrice:    last,
		NumberOfTransfers:   len(journey),
		IsListed:            view.Status == models.AssetStatusPublished,
		Proposals:           proposals,
	}, nil
}

func (s *assetService) GetAssetDetails(ctx context.Context, callerID, assetID uuid.UUID) (*AssetDetails, error) {
	ctx, span := startSpan(ctx, "GetAssetDetails", callerID)
	defer span.End()

	view, err := s.assetRepo.GetView(ctx, assetID)
	if err != nil {
		return nil, recordError(span, err, "asset lookup failed")
	}

	summary, err := s.summarize(ctx, view)
	if err != nil {
		slog.Error("failed to build asset details", "asset_id", assetID, "error", err)
		return nil, recordError(span, err, "asset details failed")
	}

	return &AssetDetails{Creator: view.CreatorUsername, AssetSummary: summary}, nil
}

func (s *assetService) ListUserAssets(ctx context.Context, callerID uuid.UUID) ([]AssetSummary, error) {
	ctx, span := startSpan(ctx, "ListUserAssets", callerID)
	defer span.End()

	views, err := s.assetRepo.ListByHolder(ctx, callerID)
	if err != nil {
		slog.Error("failed to list user assets", "caller_id", callerID, "error", err)
		return nil, recordError(span, err, "asset listing failed")
	}

	assets := make([]AssetSummary, 0, len(views))
	for i := range views {
		summary, err := s.summarize(ctx, &views[i])
		if err != nil {
			slog.Error("failed to summarize asset", "asset_id", views[i].ID, "error", err)
			return nil, recordError(span, err, "asset summary failed")
		}
		assets = append(assets, summary)
	}

	slog.Info("user assets listed", "caller_id", callerID, "count", len(assets))
	return assets, nil
}

func (s *assetService) ListMarketplace(ctx context.Context, callerID uuid.UUID) ([]models.MarketplaceAsset, error) {
	ctx, span := startSpan(ctx, "ListMarketplace", callerID)
	defer span.End()

	assets, err := s.assetRepo.ListPublished(ctx)
	if err != nil {
		slog.Error("failed to list marketplace", "caller_id", callerID, "error", err)
		return nil, recordError(span, err, "marketplace listing failed")
	}
	return assets, nil
}

func (s *assetService) RequestToBuy(ctx context.Context, callerID, assetID uuid.UUID, proposedPrice float64) (uuid.UUID, error) {
	ctx, span := startSpan(ctx, "RequestToBuy", callerID)
	defer span.End()

	if proposedPrice < 0 {
		return uuid.Nil, recordError(span, pkgerrors.ErrInvalidPrice, "invalid price")
	}

	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return uuid.Nil, recordError(span, err, "asset lookup failed")
	}
	if asset.Status != models.AssetStatusPublished {
		return uuid.Nil, recordError(span, pkgerrors.ErrAssetNotFound, "asset not listed")
	}

	req := &models.PurchaseRequest{
		AssetID:       assetID,
		BuyerID:       callerID,
		ProposedPrice: proposedPrice,
		Status:        models.RequestStatusPending,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		slog.Error("failed to create purchase request", "asset_id", assetID, "caller_id", callerID, "error", err)
		return uuid.Nil, recordError(span, err, "request creation failed")
	}

	slog.Info("purchase request submitted", "request_id", req.ID, "asset_id", assetID, "buyer_id", callerID, "price", proposedPrice)
	return req.ID, nil
}

// heldRequest loads a request on an asset the caller currently holds.
func (s *assetService) heldRequest(ctx context.Context, callerID, requestID uuid.UUID) (*models.PurchaseRequest, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	asset, err := s.assetRepo.GetByID(ctx, req.AssetID)
	if stderrors.Is(err, pkgerrors.ErrAssetNotFound) {
		return nil, pkgerrors.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if asset.CurrentHolderID != callerID {
		slog.Warn("request access denied", "request_id", requestID, "caller_id", callerID)
		return nil, pkgerrors.ErrForbidden
	}
	return req, nil
}

func (s *assetService) NegotiateRequest(ctx context.Context, callerID, requestID uuid.UUID, proposedPrice float64) error {
	ctx, span := startSpan(ctx, "NegotiateRequest", callerID)
	defer span.End()

	if proposedPrice < 0 {
		return recordError(span, pkgerrors.ErrInvalidPrice, "invalid price")
	}

	req, err := s.heldRequest(ctx, callerID, requestID)
	if err != nil {
		return recordError(span, err, "request lookup failed")
	}
	if req.Status != models.RequestStatusPending {
		return recordError(span, pkgerrors.ErrRequestNotPending, "request not pending")
	}

	if err := s.requestRepo.UpdatePrice(ctx, requestID, callerID, proposedPrice); err != nil {
		slog.Error("failed to update proposed price", "request_id", requestID, "error", err)
		return recordError(span, err, "request update failed")
	}

	slog.Info("purchase request negotiated", "request_id", requestID, "caller_id", callerID, "price", proposedPrice)
	return nil
}

func (s *assetService) AcceptRequest(ctx context.Context, callerID, requestID uuid.UUID) error {
	ctx, span := startSpan(ctx, "AcceptRequest", callerID)
	defer span.End()

	trade, err := s.assetRepo.Transfer(ctx, requestID, callerID)
	if err != nil {
		return recordError(span, err, "transfer failed")
	}
	observability.TradesAccepted.Inc()

	emit(ctx, s.producer, kafka.TopicTrades, trade.AssetID.String(), kafka.TradeEvent{
		EventType: kafka.EventTradeSettled,
		RequestID: trade.RequestID.String(),
		AssetID:   trade.AssetID.String(),
		SellerID:  trade.SellerID.String(),
		BuyerID:   trade.BuyerID.String(),
		Price:     trade.Price,
		CreatedAt: trade.Date.UTC(),
	})

	slog.Info("purchase request accepted",
		"request_id", requestID,
		"asset_id", trade.AssetID,
		"seller_id", callerID,
		"buyer_id", trade.BuyerID,
		"price", trade.Price)
	return nil
}

func (s *assetService) DenyRequest(ctx context.Context, callerID, requestID uuid.UUID) error {
	ctx, span := startSpan(ctx, "DenyRequest", callerID)
	defer span.End()

	req, err := s.heldRequest(ctx, callerID, requestID)
	if err != nil {
		return recordError(span, err, "request lookup failed")
	}
	if !req.Status.CanTransitionTo(models.RequestStatusDenied) {
		return recordError(span, pkgerrors.ErrRequestNotPending, "request not pending")
	}

	if err := s.requestRepo.UpdateStatus(ctx, requestID, callerID, models.RequestStatusDenied); err != nil {
		slog.Error("failed to deny request", "request_id", requestID, "error", err)
		return recordError(span, err, "request update failed")
	}

	slog.Info("purchase request denied", "request_id", requestID, "caller_id", callerID)
	return nil
}

func (s *assetService) ListUserRequests(ctx context.Context, callerID uuid.UUID) ([]models.RequestSummary, error) {
	ctx, span := startSpan(ctx, "ListUserRequests", callerID)
	defer span.End()

	requests, err := s.requestRepo.ListByBuyer(ctx, callerID)
	if err != nil {
		slog.Error("failed to list purchase requests", "caller_id", callerID, "error", err)
		return nil, recordError(span, err, "request listing failed")
	}
	return requests, nil
}
