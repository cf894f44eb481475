package gap

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/httpapi"
	"github.com/youcodecowboy/disco-grid/onboarding"
	"github.com/youcodecowboy/disco-grid/storage"
)

// Request is the body of POST /api/gap-analysis. SessionID takes precedence
// over an inline Contract.
type Request struct {
	SessionID string             `json:"sessionId,omitempty"`
	Contract  *contract.Contract `json:"contract,omitempty"`
}

// Handler serves gap analysis over HTTP.
type Handler struct {
	analyzer *Analyzer
	svc      *onboarding.Service
	logger   *slog.Logger
}

// NewHandler creates the gap analysis handler.
func NewHandler(analyzer *Analyzer, svc *onboarding.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{analyzer: analyzer, svc: svc, logger: logger}
}

// RegisterHTTPHandlers registers POST <prefix> (e.g. "/api/gap-analysis").
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	mux.HandleFunc("POST "+strings.TrimSuffix(prefix, "/"), h.handleAnalyze)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.svc.ContractFor(r.Context(), req.SessionID, req.Contract)
	switch {
	case errors.Is(err, onboarding.ErrNoContract):
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		h.logger.Error("Load session for gap analysis failed", "session_id", req.SessionID, "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), h.svc.Catalog(), c)
	if err != nil {
		httpapi.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report)
}
