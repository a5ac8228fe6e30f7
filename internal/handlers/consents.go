package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/httpx"
	"github.com/ctxguard/ctxguard/internal/types"
)

type ConsentHandler struct {
	Engine *engine.Engine
}

func NewConsentHandler(e *engine.Engine) *ConsentHandler {
	return &ConsentHandler{Engine: e}
}

func (h *ConsentHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req types.ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// malformed requests come back as a denied decision, not an error
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Consents.RequestConsent(r.Context(), req))
}

type hasConsentRequest struct {
	UserID    string   `json:"user_id"`
	Purpose   string   `json:"purpose"`
	DataTypes []string `json:"data_types"`
}

func (h *ConsentHandler) HasValid(w http.ResponseWriter, r *http.Request) {
	var req hasConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ok := h.Engine.Consents.HasValidConsent(req.Purpose, req.DataTypes, req.UserID)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

type consentRevokeRequest struct {
	UserID string `json:"user_id"`
}

func (h *ConsentHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req consentRevokeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if !h.Engine.Consents.RevokeConsent(id, req.UserID) {
		// absent, foreign and irrevocable all look the same
		httpx.WriteError(w, http.StatusNotFound, "consent not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (h *ConsentHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Consents.UserConsents(userID))
}

func (h *ConsentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Consents.ConsentHistory(userID))
}
