package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/auth"
	"github.com/honeynil/AssetMarketplace/internal/infrastructure/observability"
	service "github.com/honeynil/AssetMarketplace/internal/services"
	pkgerrors "github.com/honeynil/AssetMarketplace/pkg/errors"
)

type Handler struct {
	assets service.AssetService
	users  service.AuthService
}

func NewHandler(assets service.AssetService, users service.AuthService) *Handler {
	return &Handler{assets: assets, users: users}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, pkgerrors.ErrAssetNotFound),
		errors.Is(err, pkgerrors.ErrRequestNotFound),
		errors.Is(err, pkgerrors.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrRequestNotPending),
		errors.Is(err, pkgerrors.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidPrice),
		errors.Is(err, pkgerrors.ErrInvalidAssetStatus):
		status = http.StatusBadRequest
	default:
		observability.WithContext(r.Context(), "method", r.Method, "path", r.URL.Path).
			Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Server error"})
		return
	}
	writeJSON(w, status, messageResponse{Message: err.Error()})
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

// RegisterProtectedRoutes expects r to sit behind the auth middleware.
// Fixed paths under /assets are registered before the {id} patterns.
func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	r.HandleFunc("/users/me", h.Profile).Methods(http.MethodGet)

	r.HandleFunc("/assets", h.CreateAsset).Methods(http.MethodPost)
	r.HandleFunc("/assets/user/assets", h.ListUserAssets).Methods(http.MethodGet)
	r.HandleFunc("/assets/marketplace/assets", h.ListMarketplace).Methods(http.MethodGet)
	r.HandleFunc("/assets/user/requests", h.ListUserRequests).Methods(http.MethodGet)
	r.HandleFunc("/assets/request/{id}/negotiate", h.NegotiateRequest).Methods(http.MethodPut)
	r.HandleFunc("/assets/request/{id}/accept", h.AcceptRequest).Methods(http.MethodPut)
	r.HandleFunc("/assets/request/{id}/deny", h.DenyRequest).Methods(http.MethodPut)
	r.HandleFunc("/assets/{id}", h.UpdateAsset).Methods(http.MethodPut)
	r.HandleFunc("/assets/{id}", h.GetAssetDetails).Methods(http.MethodGet)
	r.HandleFunc("/assets/{id}/publish", h.PublishAsset).Methods(http.MethodPut)
	r.HandleFunc("/assets/{id}/request", h.RequestToBuy).Methods(http.MethodPost)
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "user not authenticated"})
	}
	return id, ok
}

// pathID parses the {id} route variable. A malformed id cannot name a stored
// entity, so it is reported with notFound.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, notFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	userID, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully",
		"userId":  userID.String(),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.users.Logout(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"credits":  user.Credits,
	})
}

func (h *Handler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var in service.AssetInput
	if !h.decode(w, r, &in) {
		return
	}

	assetID, err := h.assets.CreateAsset(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Asset created successfully",
		"assetId": assetID.String(),
	})
}

func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	assetID, ok := h.pathID(w, r, pkgerrors.ErrAssetNotFound)
	if !ok {
		return
	}

	var in service.AssetInput
	if !h.decode(w, r, &in) {
		return
	}

	if err := h.assets.UpdateAsset(r.Context(), userID, assetID, in); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Asset updated successfully",
		"assetId": assetID.String(),
	})
}

func (h *Handler) PublishAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	assetID, ok := h.pathID(w, r, pkgerrors.ErrAssetNotFound)
	if !ok {
		return
	}

	if err := h.assets.PublishAsset(r.Context(), userID, assetID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Asset published successfully"})
}

func (h *Handler) GetAssetDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	assetID, ok := h.pathID(w, r, pkgerrors.ErrAssetNotFound)
	if !ok {
		return
	}

	details, err := h.assets.GetAssetDetails(r.Context(), userID, assetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) ListUserAssets(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	assets, err := h.assets.ListUserAssets(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) ListMarketplace(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	assets, err := h.assets.ListMarketplace(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

type priceRequest struct {
	ProposedPrice *float64 `json:"proposedPrice"`
}

func (h *Handler) decodePrice(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req priceRequest
	if !h.decode(w, r, &req) {
		return 0, false
	}
	if req.ProposedPrice == nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "proposedPrice is required"})
		return 0, false
	}
	return *req.ProposedPrice, true
}

func (h *Handler) RequestToBuy(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	assetID, ok := h.pathID(w, r, pkgerrors.ErrAssetNotFound)
	if !ok {
		return
	}
	price, ok := h.decodePrice(w, r)
	if !ok {
		return
	}

	requestID, err := h.assets.RequestToBuy(r.Context(), userID, assetID, price)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":   "Purchase request submitted",
		"requestId": requestID.String(),
	})
}

func (h *Handler) NegotiateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, pkgerrors.ErrRequestNotFound)
	if !ok {
		return
	}
	price, ok := h.decodePrice(w, r)
	if !ok {
		return
	}

	if err := h.assets.NegotiateRequest(r.Context(), userID, requestID, price); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Negotiation updated"})
}

func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, pkgerrors.ErrRequestNotFound)
	if !ok {
		return
	}

	if err := h.assets.AcceptRequest(r.Context(), userID, requestID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Request accepted, ownership transferred"})
}

func (h *Handler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.pathID(w, r, pkgerrors.ErrRequestNotFound)
	if !ok {
		return
	}

	if err := h.assets.DenyRequest(r.Context(), userID, requestID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Request denied"})
}

func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	requests, err := h.assets.ListUserRequests(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}
