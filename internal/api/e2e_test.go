package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/AssetMarketplace/internal/handler"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/kafka"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	service "github.com/honeynil/AssetMarketplace/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	store    *memoryStore
	producer *memoryProducer
}

func newTestEnv(t *testing.T) *testEnv {
	store := newMemoryStore()
	producer := &memoryProducer{}
	redisClient := newMemoryRedis()

	assets := service.NewAssetService(memoryAssetRepo{store}, memoryRequestRepo{store}, producer)
	users := service.NewAuthService(memoryUserRepo{store}, redisClient, producer, testSecret, time.Hour)
	registry := prometheus.NewRegistry()
	require.NoError(t, observability.InitMetrics(registry))
	router := SetupRouter(handler.NewHandler(assets, users), redisClient, testSecret, registry)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{t: t, server: server, store: store, producer: producer}
}

func (e *testEnv) do(method, path, token string, body any) (int, map[string]any) {
	e.t.Helper()
	status, raw := e.doRaw(method, path, token, body)
	var out map[string]any
	if len(raw) > 0 {
		require.NoError(e.t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (e *testEnv) doRaw(method, path, token string, body any) (int, []byte) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var raw bytes.Buffer
	_, err = raw.ReadFrom(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, raw.Bytes()
}

// signup registers and logs in a user, returning the bearer token.
func (e *testEnv) signup(username string) string {
	e.t.Helper()
	status, _ := e.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "pass-" + username,
	})
	require.Equal(e.t, http.StatusCreated, status)

	status, body := e.do(http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": "pass-" + username,
	})
	require.Equal(e.t, http.StatusOK, status)
	return body["token"].(string)
}

func (e *testEnv) createAsset(token, name string) string {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/assets", token, map[string]string{
		"name":        name,
		"description": name + " description",
		"image":       name + ".png",
	})
	require.Equal(e.t, http.StatusCreated, status)
	return body["assetId"].(string)
}

func (e *testEnv) requestToBuy(token, assetID string, price float64) string {
	e.t.Helper()
	status, body := e.do(http.MethodPost, "/assets/"+assetID+"/request", token, map[string]float64{"proposedPrice": price})
	require.Equal(e.t, http.StatusCreated, status, body)
	return body["requestId"].(string)
}

func TestMarketplace_TradeFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup("alice")
	bob := env.signup("bob")

	assetID := env.createAsset(alice, "Sword")

	status, body := env.do(http.MethodGet, "/assets/"+assetID, alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["isListed"])

	status, draftBody := env.do(http.MethodPost, "/assets/"+assetID+"/request", bob, map[string]float64{"proposedPrice": 100})
	assert.Equal(t, http.StatusNotFound, status, "draft assets are not for sale")
	status, missingBody := env.do(http.MethodPost, "/assets/"+uuid.NewString()+"/request", bob, map[string]float64{"proposedPrice": 100})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, missingBody, draftBody)

	status, _ = env.do(http.MethodPut, "/assets/"+assetID+"/publish", alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, raw := env.doRaw(http.MethodGet, "/assets/marketplace/assets", bob, nil)
	require.Equal(t, http.StatusOK, status)
	var market []map[string]any
	require.NoError(t, json.Unmarshal(raw, &market))
	require.Len(t, market, 1)
	assert.Equal(t, "alice", market[0]["currentHolder"])

	requestID := env.requestToBuy(bob, assetID, 100)

	status, _ = env.do(http.MethodPut, "/assets/request/"+requestID+"/accept", bob, nil)
	assert.Equal(t, http.StatusForbidden, status, "only the holder may accept")

	status, _ = env.do(http.MethodPut, "/assets/request/"+requestID+"/accept", alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(http.MethodGet, "/assets/"+assetID, bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["creator"])
	assert.Equal(t, "bob", body["currentHolder"])
	assert.Equal(t, 100.0, body["averageTradingPrice"])
	assert.Equal(t, 100.0, body["lastTradingPrice"])
	assert.Equal(t, 1.0, body["numberOfTransfers"])
	assert.Equal(t, true, body["isListed"])
	assert.Equal(t, 1.0, body["proposals"])

	journey := body["tradingJourney"].([]any)
	require.Len(t, journey, 1)
	entry := journey[0].(map[string]any)
	assert.Equal(t, "bob", entry["holder"])
	assert.Equal(t, 100.0, entry["price"])

	status, raw = env.doRaw(http.MethodGet, "/assets/user/requests", bob, nil)
	require.Equal(t, http.StatusOK, status)
	var requests []map[string]any
	require.NoError(t, json.Unmarshal(raw, &requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "accepted", requests[0]["status"])
	assert.Equal(t, "Sword", requests[0]["assetName"])

	status, raw = env.doRaw(http.MethodGet, "/assets/user/assets", bob, nil)
	require.Equal(t, http.StatusOK, status)
	var owned []map[string]any
	require.NoError(t, json.Unmarshal(raw, &owned))
	require.Len(t, owned, 1)
	assert.Equal(t, assetID, owned[0]["id"])

	trades := env.producer.topic(kafka.TopicTrades)
	require.Len(t, trades, 1)
	assert.Equal(t, assetID, trades[0].key)
}

func TestMarketplace_DecidedRequestsConflict(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup("alice")
	bob := env.signup("bob")

	assetID := env.createAsset(alice, "Shield")
	status, _ := env.do(http.MethodPut, "/assets/"+assetID+"/publish", alice, nil)
	require.Equal(t, http.StatusOK, status)

	denied := env.requestToBuy(bob, assetID, 10)
	status, _ = env.do(http.MethodPut, "/assets/request/"+denied+"/negotiate", alice, map[string]float64{"proposedPrice": 20})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(http.MethodPut, "/assets/request/"+denied+"/deny", alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodPut, "/assets/request/"+denied+"/accept", alice, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = env.do(http.MethodPut, "/assets/request/"+denied+"/negotiate", alice, map[string]float64{"proposedPrice": 30})
	assert.Equal(t, http.StatusConflict, status)

	accepted := env.requestToBuy(bob, assetID, 50)
	status, _ = env.do(http.MethodPut, "/assets/request/"+accepted+"/accept", alice, nil)
	require.Equal(t, http.StatusOK, status)

	// bob holds the asset now, but the request itself is decided.
	status, _ = env.do(http.MethodPut, "/assets/request/"+accepted+"/deny", bob, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestMarketplace_Ownership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup("alice")
	bob := env.signup("bob")
	assetID := env.createAsset(alice, "Helmet")

	status, body := env.do(http.MethodPut, "/assets/"+assetID, bob, map[string]string{
		"name": "Stolen", "description": "mine now", "status": "published",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "asset not found", body["message"])

	status, _ = env.do(http.MethodPut, "/assets/"+assetID+"/publish", bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(http.MethodPut, "/assets/"+assetID, alice, map[string]string{
		"name": "Helmet", "description": "shiny", "status": "published",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, assetID, body["assetId"])

	status, _ = env.do(http.MethodGet, "/assets/not-a-uuid", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMarketplace_BadInput(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup("alice")

	status, _ := env.do(http.MethodPost, "/assets", alice, map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodPost, "/assets", alice, map[string]string{"name": "x", "description": "y", "status": "archived"})
	assert.Equal(t, http.StatusBadRequest, status)

	assetID := env.createAsset(alice, "Ring")
	status, _ = env.do(http.MethodPut, "/assets/"+assetID+"/publish", alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodPost, "/assets/"+assetID+"/request", alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(http.MethodPost, "/assets/"+assetID+"/request", alice, map[string]float64{"proposedPrice": -5})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMarketplace_Auth(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(http.MethodGet, "/assets/user/assets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["message"])

	alice := env.signup("alice")

	status, _ = env.do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(http.MethodGet, "/users/me", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, 10000.0, body["credits"])

	status, _ = env.do(http.MethodPost, "/auth/logout", alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = env.do(http.MethodGet, "/users/me", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMarketplace_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.signup("alice")

	status, raw := env.doRaw(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `endpoint="/auth/login"`)
	assert.Contains(t, string(raw), "marketplace_trades_accepted_total")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		assert.NotEqual(t, "http_requests_total", mf.GetName(), "collectors are registered explicitly, never at import")
	}
}
