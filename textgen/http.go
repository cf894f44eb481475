package textgen

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/youcodecowboy/disco-grid/httpapi"
)

// Handler serves text generation over HTTP.
type Handler struct {
	gen    *Generator
	logger *slog.Logger
}

// NewHandler creates the generation handler.
func NewHandler(gen *Generator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{gen: gen, logger: logger}
}

// RegisterHTTPHandlers registers POST <prefix> (e.g. "/api/generate").
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	mux.HandleFunc("POST "+strings.TrimSuffix(prefix, "/"), h.handleGenerate)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.gen.Generate(r.Context(), req)
	switch {
	case errors.Is(err, ErrEmptyPrompt), errors.Is(err, ErrPromptTooLong),
		errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrInvalidCapability):
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnavailable):
		httpapi.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		h.logger.Warn("Text generation failed", "capability", req.Capability, "error", err)
		httpapi.WriteError(w, http.StatusBadGateway, "text generation failed")
	default:
		httpapi.WriteJSON(w, http.StatusOK, result)
	}
}
