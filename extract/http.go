package extract

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

// Request is the body of POST /api/extract-entities. At least one field must
// be set; SessionID takes precedence over an inline Contract.
type Request struct {
	Text      string             `json:"text,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	Contract  *contract.Contract `json:"contract,omitempty"`
}

// Handler serves entity extraction over HTTP.
type Handler struct {
	extractor *Extractor
	svc       *onboarding.Service
	logger    *slog.Logger
}

// NewHandler creates the extraction handler.
func NewHandler(extractor *Extractor, svc *onboarding.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{extractor: extractor, svc: svc, logger: logger}
}

// RegisterHTTPHandlers registers POST <prefix> (e.g. "/api/extract-entities").
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	mux.HandleFunc("POST "+strings.TrimSuffix(prefix, "/"), h.handleExtract)
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.svc.ContractFor(r.Context(), req.SessionID, req.Contract)
	switch {
	case errors.Is(err, onboarding.ErrNoContract):
		if strings.TrimSpace(req.Text) == "" {
			httpapi.WriteError(w, http.StatusBadRequest, "text, contract or sessionId is required")
			return
		}
	case errors.Is(err, storage.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "session not found")
		return
	case err != nil:
		h.logger.Error("Load session for extraction failed", "session_id", req.SessionID, "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := h.extractor.Extract(r.Context(), Input{Text: req.Text, Contract: c})
	if err != nil {
		httpapi.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, result)
}
