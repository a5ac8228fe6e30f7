package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctxguard/ctxguard/internal/engine"
	"github.com/ctxguard/ctxguard/internal/httpx"
	"github.com/ctxguard/ctxguard/internal/version"
)

type AdminHandler struct {
	Engine *engine.Engine
}

func NewAdminHandler(e *engine.Engine) *AdminHandler {
	return &AdminHandler{Engine: e}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Stats())
}

func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Engine.CleanupExpired(r.Context()))
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	httpx.WriteJSON(w, http.StatusOK, h.Engine.Ledger.ForUser(userID))
}

func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Snapshot(r.Context()); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, httpx.SafeErrMsg(err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func VersionHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, version.Get())
}
