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
	"go.opentelemetry.io/otel/attribute"
)

const requestTracer = "request-repository"

type PostgresRequestRepository struct {
	db *sql.DB
}

func NewPostgresRequestRepository(db *sql.DB) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: db}
}

func (r *PostgresRequestRepository) Create(ctx context.Context, req *models.PurchaseRequest) (err error) {
	ctx, done := instrument(ctx, requestTracer, "CreateRequest")
	defer func() { done(err) }()

	if req == nil {
		return pkgerrors.ErrNilRequest
	}
	if req.ProposedPrice < 0 {
		return pkgerrors.ErrInvalidPrice
	}
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}

	query := `INSERT INTO purchase_requests (asset_id, buyer_id, proposed_price, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, req.AssetID, req.BuyerID, req.ProposedPrice, req.Status).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		slog.Error("failed to create request", "method", "Create", "asset_id", req.AssetID, "buyer_id", req.BuyerID, "error", err)
		return fmt.Errorf("failed to create request: %w", err)
	}

	slog.Info("request created", "method", "Create", "request_id", req.ID, "asset_id", req.AssetID, "buyer_id", req.BuyerID, "price", req.ProposedPrice)
	return nil
}

func (r *PostgresRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *models.PurchaseRequest, err error) {
	ctx, done := instrument(ctx, requestTracer, "GetRequestByID", attribute.String("request_id", id.String()))
	defer func() { done(err) }()

	var req models.PurchaseRequest
	query := `SELECT id, asset_id, buyer_id, proposed_price, status, created_at, updated_at FROM purchase_requests WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.AssetID, &req.BuyerID, &req.ProposedPrice, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrRequestNotFound
	}
	if err != nil {
		slog.Error("failed to get request", "method", "GetByID", "request_id", id, "error", err)
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return &req, nil
}

// holderGuard restricts an update to pending requests on assets still held
// by holderID. The holder parameter is $4.
const holderGuard = `status = $3 AND EXISTS (SELECT 1 FROM assets a WHERE a.id = purchase_requests.asset_id AND a.current_holder_id = $4)`

// UpdatePrice re-prices a pending request on behalf of the current holder.
func (r *PostgresRequestRepository) UpdatePrice(ctx context.Context, id, holderID uuid.UUID, price float64) (err error) {
	ctx, done := instrument(ctx, requestTracer, "UpdateRequestPrice", attribute.String("request_id", id.String()))
	defer func() { done(err) }()

	if price < 0 {
		return pkgerrors.ErrInvalidPrice
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE purchase_requests SET proposed_price = $1, updated_at = now() WHERE id = $2 AND `+holderGuard,
		price, id, models.RequestStatusPending, holderID,
	)
	if err != nil {
		slog.Error("failed to update request price", "method", "UpdatePrice", "request_id", id, "error", err)
		return fmt.Errorf("failed to update request price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainMiss(ctx, id, holderID)
	}

	slog.Info("request price updated", "method", "UpdatePrice", "request_id", id, "price", price)
	return nil
}

// UpdateStatus moves a pending request to a terminal status on behalf of the
// current holder.
func (r *PostgresRequestRepository) UpdateStatus(ctx context.Context, id, holderID uuid.UUID, status models.RequestStatus) (err error) {
	ctx, done := instrument(ctx, requestTracer, "UpdateRequestStatus",
		attribute.String("request_id", id.String()),
		attribute.String("status", string(status)),
	)
	defer func() { done(err) }()

	if !models.RequestStatusPending.CanTransitionTo(status) {
		return fmt.Errorf("%w: cannot move to %q", pkgerrors.ErrInvalidInput, status)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE purchase_requests SET status = $1, updated_at = now() WHERE id = $2 AND `+holderGuard,
		status, id, models.RequestStatusPending, holderID,
	)
	if err != nil {
		slog.Error("failed to update request status", "method", "UpdateStatus", "request_id", id, "error", err)
		return fmt.Errorf("failed to update request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.explainMiss(ctx, id, holderID)
	}

	slog.Info("request status updated", "method", "UpdateStatus", "request_id", id, "status", status)
	return nil
}

// explainMiss tells why a guarded update matched no row.
func (r *PostgresRequestRepository) explainMiss(ctx context.Context, id, holderID uuid.UUID) error {
	var holder uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT a.current_holder_id FROM purchase_requests r JOIN assets a ON a.id = r.asset_id WHERE r.id = $1`, id,
	).Scan(&holder)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return pkgerrors.ErrRequestNotFound
	case err != nil:
		return fmt.Errorf("failed to check request: %w", err)
	case holder != holderID:
		return pkgerrors.ErrForbidden
	}
	return pkgerrors.ErrRequestNotPending
}

func (r *PostgresRequestRepository) CountByAsset(ctx context.Context, assetID uuid.UUID) (_ int64, err error) {
	ctx, done := instrument(ctx, requestTracer, "CountRequestsByAsset", attribute.String("asset_id", assetID.String()))
	defer func() { done(err) }()

	var count int64
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchase_requests WHERE asset_id = $1`, assetID).Scan(&count)
	if err != nil {
		slog.Error("failed to count requests", "method", "CountByAsset", "asset_id", assetID, "error", err)
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

func (r *PostgresRequestRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) (_ []models.RequestSummary, err error) {
	ctx, done := instrument(ctx, requestTracer, "ListRequestsByBuyer", attribute.String("buyer_id", buyerID.String()))
	defer func() { done(err) }()

	query := `SELECT r.id, a.name, r.proposed_price, r.status
	FROM purchase_requests r
	JOIN assets a ON a.id = r.asset_id
	WHERE r.buyer_id = $1
	ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, buyerID)
	if err != nil {
		slog.Error("failed to list requests", "method", "ListByBuyer", "buyer_id", buyerID, "error", err)
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	requests := []models.RequestSummary{}
	for rows.Next() {
		var s models.RequestSummary
		if err = rows.Scan(&s.ID, &s.AssetName, &s.ProposedPrice, &s.Status); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return requests, nil
}
