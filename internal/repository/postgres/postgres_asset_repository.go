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

const assetTracer = "asset-repository"

const assetViewColumns = `a.id, a.name, a.description, a.image, a.status, a.creator_id, a.current_holder_id, a.created_at, a.updated_at, c.username, h.username`

const assetViewFrom = `FROM assets a
	JOIN users c ON c.id = a.creator_id
	JOIN users h ON h.id = a.current_holder_id`

type PostgresAssetRepository struct {
	db *sql.DB
}

func NewPostgresAssetRepository(db *sql.DB) *PostgresAssetRepository {
	return &PostgresAssetRepository{db: db}
}

// Create inserts the asset with its creator as the first holder.
func (r *PostgresAssetRepository) Create(ctx context.Context, asset *models.Asset) (err error) {
	ctx, done := instrument(ctx, assetTracer, "CreateAsset")
	defer func() { done(err) }()

	if asset == nil {
		return pkgerrors.ErrNilAsset
	}
	if !asset.Status.Valid() {
		return pkgerrors.ErrInvalidAssetStatus
	}

	query := `INSERT INTO assets (name, description, image, status, creator_id, current_holder_id) VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, created_at, updated_at`
	err = r.db.QueryRowContext(ctx, query, asset.Name, asset.Description, asset.Image, asset.Status, asset.CreatorID).
		Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		slog.Error("failed to create asset", "method", "Create", "creator_id", asset.CreatorID, "error", err)
		return fmt.Errorf("failed to create asset: %w", err)
	}
	asset.CurrentHolderID = asset.CreatorID

	slog.Info("asset created", "method", "Create", "asset_id", asset.ID, "creator_id", asset.CreatorID, "status", asset.Status)
	return nil
}

func (r *PostgresAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *models.Asset, err error) {
	ctx, done := instrument(ctx, assetTracer, "GetAssetByID", attribute.String("asset_id", id.String()))
	defer func() { done(err) }()

	var a models.Asset
	query := `SELECT id, name, description, image, status, creator_id, current_holder_id, created_at, updated_at FROM assets WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Name, &a.Description, &a.Image, &a.Status, &a.CreatorID, &a.CurrentHolderID, &a.CreatedAt, &a.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAssetNotFound
	}
	if err != nil {
		slog.Error("failed to get asset", "method", "GetByID", "asset_id", id, "error", err)
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &a, nil
}

func (r *PostgresAssetRepository) GetView(ctx context.Context, id uuid.UUID) (_ *models.AssetView, err error) {
	ctx, done := instrument(ctx, assetTracer, "GetAssetView", attribute.String("asset_id", id.String()))
	defer func() { done(err) }()

	query := `SELECT ` + assetViewColumns + ` ` + assetViewFrom + ` WHERE a.id = $1`
	v, err := scanAssetView(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAssetNotFound
	}
	if err != nil {
		slog.Error("failed to get asset view", "method", "GetView", "asset_id", id, "error", err)
		return nil, fmt.Errorf("failed to get asset view: %w", err)
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssetView(row rowScanner) (*models.AssetView, error) {
	var v models.AssetView
	err := row.Scan(
		&v.ID, &v.Name, &v.Description, &v.Image, &v.Status, &v.CreatorID, &v.CurrentHolderID,
		&v.CreatedAt, &v.UpdatedAt, &v.CreatorUsername, &v.CurrentHolderUsername,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update overwrites the editable fields. Creator and holder are never touched.
func (r *PostgresAssetRepository) Update(ctx context.Context, asset *models.Asset) (err error) {
	ctx, done := instrument(ctx, assetTracer, "UpdateAsset")
	defer func() { done(err) }()

	if asset == nil {
		return pkgerrors.ErrNilAsset
	}
	if !asset.Status.Valid() {
		return pkgerrors.ErrInvalidAssetStatus
	}

	query := `UPDATE assets SET name = $1, description = $2, image = $3, status = $4, updated_at = now() WHERE id = $5 RETURNING updated_at`
	err = r.db.QueryRowContext(ctx, query, asset.Name, asset.Description, asset.Image, asset.Status, asset.ID).Scan(&asset.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return pkgerrors.ErrAssetNotFound
	}
	if err != nil {
		slog.Error("failed to update asset", "method", "Update", "asset_id", asset.ID, "error", err)
		return fmt.Errorf("failed to update asset: %w", err)
	}

	slog.Info("asset updated", "method", "Update", "asset_id", asset.ID, "status", asset.Status)
	return nil
}

func (r *PostgresAssetRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.AssetStatus) (err error) {
	ctx, done := instrument(ctx, assetTracer, "SetAssetStatus",
		attribute.String("asset_id", id.String()),
		attribute.String("status", string(status)),
	)
	defer func() { done(err) }()

	if !status.Valid() {
		return pkgerrors.ErrInvalidAssetStatus
	}

	res, err := r.db.ExecContext(ctx, `UPDATE assets SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		slog.Error("failed to set asset status", "method", "SetStatus", "asset_id", id, "error", err)
		return fmt.Errorf("failed to set asset status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pkgerrors.ErrAssetNotFound
	}

	slog.Info("asset status set", "method", "SetStatus", "asset_id", id, "status", status)
	return nil
}

func (r *PostgresAssetRepository) ListByHolder(ctx context.Context, holderID uuid.UUID) (_ []models.AssetView, err error) {
	ctx, done := instrument(ctx, assetTracer, "ListAssetsByHolder", attribute.String("holder_id", holderID.String()))
	defer func() { done(err) }()

	query := `SELECT ` + assetViewColumns + ` ` + assetViewFrom + ` WHERE a.current_holder_id = $1 ORDER BY a.created_at`
	rows, err := r.db.QueryContext(ctx, query, holderID)
	if err != nil {
		slog.Error("failed to list assets", "method", "ListByHolder", "holder_id", holderID, "error", err)
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := []models.AssetView{}
	for rows.Next() {
		v, err := scanAssetView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, *v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}
	return assets, nil
}

func (r *PostgresAssetRepository) ListPublished(ctx context.Context) (_ []models.MarketplaceAsset, err error) {
	ctx, done := instrument(ctx, assetTracer, "ListPublishedAssets")
	defer func() { done(err) }()

	query := `SELECT a.id, a.name, a.description, a.image, h.username
	FROM assets a
	JOIN users h ON h.id = a.current_holder_id
	WHERE a.status = $1
	ORDER BY a.updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, models.AssetStatusPublished)
	if err != nil {
		slog.Error("failed to list marketplace", "method", "ListPublished", "error", err)
		return nil, fmt.Errorf("failed to list marketplace: %w", err)
	}
	defer rows.Close()

	assets := []models.MarketplaceAsset{}
	for rows.Next() {
		var m models.MarketplaceAsset
		if err = rows.Scan(&m.ID, &m.Name, &m.Description, &m.Image, &m.CurrentHolder); err != nil {
			return nil, fmt.Errorf("failed to scan marketplace asset: %w", err)
		}
		assets = append(assets, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate marketplace: %w", err)
	}
	return assets, nil
}

// TradingJourney returns the transfer history in append order.
func (r *PostgresAssetRepository) TradingJourney(ctx context.Context, assetID uuid.UUID) (_ []models.TradeRecord, err error) {
	ctx, done := instrument(ctx, assetTracer, "TradingJourney", attribute.String("asset_id", assetID.String()))
	defer func() { done(err) }()

	query := `SELECT t.seq, t.asset_id, t.holder_id, u.username, t.price, t.traded_at
	FROM asset_transfers t
	JOIN users u ON u.id = t.holder_id
	WHERE t.asset_id = $1
	ORDER BY t.seq`
	rows, err := r.db.QueryContext(ctx, query, assetID)
	if err != nil {
		slog.Error("failed to get trading journey", "method", "TradingJourney", "asset_id", assetID, "error", err)
		return nil, fmt.Errorf("failed to get trading journey: %w", err)
	}
	defer rows.Close()

	journey := []models.TradeRecord{}
	for rows.Next() {
		var t models.TradeRecord
		if err = rows.Scan(&t.Seq, &t.AssetID, &t.HolderID, &t.HolderUsername, &t.Price, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		journey = append(journey, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trading journey: %w", err)
	}
	return journey, nil
}

// Transfer locks the request and then the asset, so two accepts racing on
// the same asset serialise and the second one sees the new holder.
func (r *PostgresAssetRepository) Transfer(ctx context.Context, requestID, sellerID uuid.UUID) (_ *models.Trade, err error) {
	ctx, done := instrument(ctx, assetTracer, "TransferAsset",
		attribute.String("request_id", requestID.String()),
		attribute.String("seller_id", sellerID.String()),
	)
	defer func() { done(err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Transfer", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	trade := models.Trade{RequestID: requestID, SellerID: sellerID}
	var status models.RequestStatus
	err = tx.QueryRowContext(ctx,
		`SELECT asset_id, buyer_id, proposed_price, status FROM purchase_requests WHERE id = $1 FOR UPDATE`, requestID,
	).Scan(&trade.AssetID, &trade.BuyerID, &trade.Price, &status)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, rollback(tx, "Transfer", pkgerrors.ErrRequestNotFound)
	}
	if err != nil {
		return nil, rollback(tx, "Transfer", fmt.Errorf("failed to lock request: %w", err))
	}

	var holderID uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT current_holder_id FROM assets WHERE id = $1 FOR UPDATE`, trade.AssetID).Scan(&holderID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, rollback(tx, "Transfer", pkgerrors.ErrRequestNotFound)
	}
	if err != nil {
		return nil, rollback(tx, "Transfer", fmt.Errorf("failed to lock asset: %w", err))
	}
	if holderID != sellerID {
		return nil, rollback(tx, "Transfer", pkgerrors.ErrForbidden)
	}
	if !status.CanTransitionTo(models.RequestStatusAccepted) {
		return nil, rollback(tx, "Transfer", pkgerrors.ErrRequestNotPending)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE purchase_requests SET status = $1, updated_at = now() WHERE id = $2`, models.RequestStatusAccepted, requestID,
	); err != nil {
		return nil, rollback(tx, "Transfer", fmt.Errorf("failed to accept request: %w", err))
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE assets SET current_holder_id = $1, updated_at = now() WHERE id = $2`, trade.BuyerID, trade.AssetID,
	); err != nil {
		return nil, rollback(tx, "Transfer", fmt.Errorf("failed to reassign holder: %w", err))
	}

	if err = tx.QueryRowContext(ctx,
		`INSERT INTO asset_transfers (asset_id, holder_id, price) VALUES ($1, $2, $3) RETURNING traded_at`,
		trade.AssetID, trade.BuyerID, trade.Price,
	).Scan(&trade.Date); err != nil {
		return nil, rollback(tx, "Transfer", fmt.Errorf("failed to append trade record: %w", err))
	}

	if err = tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Transfer", "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("asset transferred",
		"method", "Transfer",
		"request_id", requestID,
		"asset_id", trade.AssetID,
		"seller_id", sellerID,
		"buyer_id", trade.BuyerID,
		"price", trade.Price)
	return &trade, nil
}
