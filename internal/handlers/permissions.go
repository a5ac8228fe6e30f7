package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/httpx"
	"github.com/ctxguard/ctxguard/internal/types"
)

type PermissionHandler struct {
	Engine *engine.Engine
}

func NewPermissionHandler(e *engine.Engine) *PermissionHandler {
	return &PermissionHandler{Engine: e}
}

type grantRequest struct {
	UserID       string             `json:"user_id"`
	ResourceType string             `json:"resource_type"`
	Action       types.Action       `json:"action"`
	GrantedBy    string             `json:"granted_by"`
	Options      types.GrantOptions `json:"options"`
}

func (h *PermissionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.ResourceType == "" || req.Action == "" || req.GrantedBy == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing user_id, resource_type, action or granted_by")
		return
	}

	p := h.Engine.Permissions.Grant(r.Context(), req.UserID, req.ResourceType, req.Action, req.GrantedBy, req.Options)
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *PermissionHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req types.PermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.ResourceType == "" || req.Action == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing user_id, resource_type or action")
		return
	}

	// denial is a 200 with granted=false, not an HTTP error
	httpx.WriteJSON(w, http.StatusOK, h.Engine.CheckPermission(r.Context(), req))
}

type revokeRequest struct {
	RevokedBy string `json:"revoked_by"`
}

func (h *PermissionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req revokeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if !h.Engine.Permissions.Revoke(r.Context(), id, req.RevokedBy) {
		httpx.WriteError(w, http.StatusNotFound, "permission not found")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

type revokeAllRequest struct {
	UserID       string `json:"user_id"`
	ResourceType string `json:"resource_type"`
	RevokedBy    string `json:"revoked_by"`
}

func (h *PermissionHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	var req revokeAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.ResourceType == "" {
		httpx.WriteError(w, http.StatusBadRequest, "missing user_id or resource_type")
		return
	}

	n := h.Engine.Permissions.RevokeAll(r.Context(), req.UserID, req.ResourceType, req.RevokedBy)
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

func (h *PermissionHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Permissions.UserPermissions(userID))
}

func (h *PermissionHandler) ListForResource(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	resourceType := chi.URLParam(r, "resourceType")
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Permissions.ResourcePermissions(userID, resourceType))
}
