package onboarding

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/httpapi"
	"github.com/youcodecowboy/disco-grid/storage"
)

// Handler serves the onboarding API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler creates the onboarding HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterHTTPHandlers registers the onboarding routes under prefix
// (e.g. "/api/onboarding"):
//
//	GET  <prefix>/catalog
//	POST <prefix>/evaluate
//	POST <prefix>/visible
//	POST <prefix>/sessions
//	GET  <prefix>/sessions/{id}
//	POST <prefix>/sessions/{id}/answers
//	POST <prefix>/sessions/{id}/complete
//	GET  <prefix>/sessions/{id}/entities
func (h *Handler) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	prefix = strings.TrimSuffix(prefix, "/")

	mux.HandleFunc("GET "+prefix+"/catalog", h.handleCatalog)
	mux.HandleFunc("POST "+prefix+"/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST "+prefix+"/visible", h.handleVisible)
	mux.HandleFunc("POST "+prefix+"/sessions", h.handleStart)
	mux.HandleFunc("GET "+prefix+"/sessions/{id}", h.handleState)
	mux.HandleFunc("POST "+prefix+"/sessions/{id}/answers", h.handleAnswer)
	mux.HandleFunc("POST "+prefix+"/sessions/{id}/complete", h.handleComplete)
	mux.HandleFunc("GET "+prefix+"/sessions/{id}/entities", h.handleEntities)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"sections": h.svc.Catalog().Sections(),
	})
}

// EvaluateRequest asks whether one question is visible for a contract. Either
// Question (inline) or QuestionID (from the catalog) must be set.
type EvaluateRequest struct {
	Question   *Question          `json:"question,omitempty"`
	QuestionID string             `json:"questionId,omitempty"`
	Contract   *contract.Contract `json:"contract"`
}

// EvaluateResponse is the result of POST /evaluate.
type EvaluateResponse struct {
	QuestionID string `json:"questionId"`
	Visible    bool   `json:"visible"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := req.Question
	if q == nil {
		found, ok := h.svc.Catalog().Question(req.QuestionID)
		if !ok {
			httpapi.WriteError(w, http.StatusNotFound, "unknown question: "+req.QuestionID)
			return
		}
		q = found
	}
	httpapi.WriteJSON(w, http.StatusOK, EvaluateResponse{
		QuestionID: q.ID,
		Visible:    ShouldShow(q, req.Contract),
	})
}

type visibleRequest struct {
	Contract *contract.Contract `json:"contract"`
}

func (h *Handler) handleVisible(w http.ResponseWriter, r *http.Request) {
	var req visibleRequest
	if err := httpapi.DecodeJSON(w, r, &req, true); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	visible, next, progress := ComputeState(h.svc.Catalog(), req.Contract)
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"visible":  visible,
		"next":     next,
		"progress": progress,
	})
}

type startRequest struct {
	Contract *contract.Contract `json:"contract,omitempty"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httpapi.DecodeJSON(w, r, &req, true); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.svc.Start(r.Context(), req.Contract)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	state, err := h.svc.State(r.Context(), sess.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, state)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.State(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, state)
}

// AnswerRequest is the body of POST /sessions/{id}/answers.
type AnswerRequest struct {
	QuestionID string         `json:"questionId"`
	Value      contract.Value `json:"value"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.QuestionID == "" {
		httpapi.WriteError(w, http.StatusBadRequest, "questionId is required")
		return
	}

	id := r.PathValue("id")
	if _, err := h.svc.Answer(r.Context(), id, req.QuestionID, req.Value); err != nil {
		h.writeServiceError(w, err)
		return
	}
	state, err := h.svc.State(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"entities": MapEntities(sess.Contract, DefaultEntityRules),
	})
}

// writeServiceError maps service errors to status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, ErrUnknownQuestion):
		httpapi.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrQuestionHidden), errors.Is(err, ErrInvalidAnswer):
		httpapi.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrIncomplete), errors.Is(err, storage.ErrConflict):
		httpapi.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Onboarding request failed", "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
