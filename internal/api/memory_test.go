package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/redis"
	"github.com/honeynil/AssetMarketplace/internal/models"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
)

// memoryStore backs all three repositories so that Transfer can touch users,
// assets and requests under one lock.
type memoryStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	assets   map[uuid.UUID]*models.Asset
	requests map[uuid.UUID]*models.PurchaseRequest
	trades   []models.TradeRecord
	seq      int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[uuid.UUID]*models.User{},
		assets:   map[uuid.UUID]*models.Asset{},
		requests: map[uuid.UUID]*models.PurchaseRequest{},
	}
}

type memoryUserRepo struct{ s *memoryStore }

func (r memoryUserRepo) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return pkgerrors.ErrUserAlreadyExists
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r memoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memoryUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (r memoryUserRepo) TransferCredits(_ context.Context, from, to uuid.UUID, amount float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	src, dst := r.s.users[from], r.s.users[to]
	if src == nil || dst == nil {
		return pkgerrors.ErrUserNotFound
	}
	if src.Credits < amount {
		return pkgerrors.ErrInsufficientFunds
	}
	src.Credits -= amount
	dst.Credits += amount
	return nil
}

type memoryAssetRepo struct{ s *memoryStore }

func (r memoryAssetRepo) Create(_ context.Context, asset *models.Asset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	asset.ID = uuid.New()
	asset.CurrentHolderID = asset.CreatorID
	asset.CreatedAt = time.Now()
	asset.UpdatedAt = asset.CreatedAt
	cp := *asset
	r.s.assets[asset.ID] = &cp
	return nil
}

func (r memoryAssetRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[id]
	if !ok {
		return nil, pkgerrors.ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memoryAssetRepo) view(a *models.Asset) models.AssetView {
	return models.AssetView{
		Asset:                 *a,
		CreatorUsername:       r.s.users[a.CreatorID].Username,
		CurrentHolderUsername: r.s.users[a.CurrentHolderID].Username,
	}
}

func (r memoryAssetRepo) GetView(_ context.Context, id uuid.UUID) (*models.AssetView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[id]
	if !ok {
		return nil, pkgerrors.ErrAssetNotFound
	}
	v := r.view(a)
	return &v, nil
}

func (r memoryAssetRepo) Update(_ context.Context, asset *models.Asset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[asset.ID]
	if !ok {
		return pkgerrors.ErrAssetNotFound
	}
	a.Name, a.Description, a.Image, a.Status = asset.Name, asset.Description, asset.Image, asset.Status
	a.UpdatedAt = time.Now()
	return nil
}

func (r memoryAssetRepo) SetStatus(_ context.Context, id uuid.UUID, status models.AssetStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[id]
	if !ok {
		return pkgerrors.ErrAssetNotFound
	}
	a.Status = status
	return nil
}

func (r memoryAssetRepo) sorted() []*models.Asset {
	out := make([]*models.Asset, 0, len(r.s.assets))
	for _, a := range r.s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r memoryAssetRepo) ListByHolder(_ context.Context, holderID uuid.UUID) ([]models.AssetView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	views := []models.AssetView{}
	for _, a := range r.sorted() {
		if a.CurrentHolderID == holderID {
			views = append(views, r.view(a))
		}
	}
	return views, nil
}

func (r memoryAssetRepo) ListPublished(_ context.Context) ([]models.MarketplaceAsset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.MarketplaceAsset{}
	for _, a := range r.sorted() {
		if a.Status == models.AssetStatusPublished {
			out = append(out, models.MarketplaceAsset{
				ID:            a.ID,
				Name:          a.Name,
				Description:   a.Description,
				Image:         a.Image,
				CurrentHolder: r.s.users[a.CurrentHolderID].Username,
			})
		}
	}
	return out, nil
}

func (r memoryAssetRepo) TradingJourney(_ context.Context, assetID uuid.UUID) ([]models.TradeRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journey := []models.TradeRecord{}
	for _, t := range r.s.trades {
		if t.AssetID == assetID {
			journey = append(journey, t)
		}
	}
	return journey, nil
}

func (r memoryAssetRepo) Transfer(_ context.Context, requestID, sellerID uuid.UUID) (*models.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, pkgerrors.ErrRequestNotFound
	}
	asset, ok := r.s.assets[req.AssetID]
	if !ok {
		return nil, pkgerrors.ErrRequestNotFound
	}
	if asset.CurrentHolderID != sellerID {
		return nil, pkgerrors.ErrForbidden
	}
	if !req.Status.CanTransitionTo(models.RequestStatusAccepted) {
		return nil, pkgerrors.ErrRequestNotPending
	}

	now := time.Now()
	req.Status = models.RequestStatusAccepted
	asset.CurrentHolderID = req.BuyerID
	r.s.seq++
	r.s.trades = append(r.s.trades, models.TradeRecord{
		Seq:            r.s.seq,
		AssetID:        asset.ID,
		HolderID:       req.BuyerID,
		HolderUsername: r.s.users[req.BuyerID].Username,
		Date:           now,
		Price:          req.ProposedPrice,
	})
	return &models.Trade{
		RequestID: req.ID,
		AssetID:   asset.ID,
		SellerID:  sellerID,
		BuyerID:   req.BuyerID,
		Price:     req.ProposedPrice,
		Date:      now,
	}, nil
}

type memoryRequestRepo struct{ s *memoryStore }

func (r memoryRequestRepo) Create(_ context.Context, req *models.PurchaseRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	r.s.requests[req.ID] = &cp
	return nil
}

func (r memoryRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, pkgerrors.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

// pending returns the request if it is still pending on an asset held by holderID.
// Callers hold the lock.
func (r memoryRequestRepo) pending(id, holderID uuid.UUID) (*models.PurchaseRequest, error) {
	req, ok := r.s.requests[id]
	if !ok {
		return nil, pkgerrors.ErrRequestNotFound
	}
	if asset, ok := r.s.assets[req.AssetID]; !ok || asset.CurrentHolderID != holderID {
		return nil, pkgerrors.ErrForbidden
	}
	if req.Status != models.RequestStatusPending {
		return nil, pkgerrors.ErrRequestNotPending
	}
	return req, nil
}

func (r memoryRequestRepo) UpdatePrice(_ context.Context, id, holderID uuid.UUID, price float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, err := r.pending(id, holderID)
	if err != nil {
		return err
	}
	req.ProposedPrice = price
	return nil
}

func (r memoryRequestRepo) UpdateStatus(_ context.Context, id, holderID uuid.UUID, status models.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !models.RequestStatusPending.CanTransitionTo(status) {
		return pkgerrors.ErrInvalidInput
	}
	req, err := r.pending(id, holderID)
	if err != nil {
		return err
	}
	req.Status = status
	return nil
}

func (r memoryRequestRepo) CountByAsset(_ context.Context, assetID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, req := range r.s.requests {
		if req.AssetID == assetID {
			n++
		}
	}
	return n, nil
}

func (r memoryRequestRepo) ListByBuyer(_ context.Context, buyerID uuid.UUID) ([]models.RequestSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.RequestSummary{}
	for _, req := range r.s.requests {
		if req.BuyerID == buyerID {
			out = append(out, models.RequestSummary{
				ID:            req.ID,
				AssetName:     r.s.assets[req.AssetID].Name,
				ProposedPrice: req.ProposedPrice,
				Status:        req.Status,
			})
		}
	}
	return out, nil
}

type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{data: map[string]string{}}
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryRedis) Close() error { return nil }

type sentMessage struct {
	topic, key string
	value      []byte
}

type memoryProducer struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (p *memoryProducer) Send(_ context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func (p *memoryProducer) Close() error { return nil }

func (p *memoryProducer) topic(name string) []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []sentMessage
	for _, m := range p.sent {
		if m.topic == name {
			out = append(out, m)
		}
	}
	return out
}
