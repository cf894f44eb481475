// Package analysis runs gap analysis and entity extraction over one onboarding
// contract concurrently and returns both results together.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/extract"
	"github.com/youcodecowboy/disco-grid/gap"
	"github.com/youcodecowboy/disco-grid/httpapi"
	"github.com/youcodecowboy/disco-grid/onboarding"
	"github.com/youcodecowboy/disco-grid/storage"
	"golang.org/x/sync/errgroup"
)

// Request is the body of POST /api/analyze.
type Request struct {
	SessionID string             `json:"sessionId,omitempty"`
	Contract  *contract.Contract `json:"contract,omitempty"`
	// Text is optional free text passed to entity extraction.
	Text string `json:"text,omitempty"`
}

// Result combines both analyses with the questionnaire progress.
type Result struct {
	SessionID string              `json:"sessionId,omitempty"`
	Progress  onboarding.Progress `json:"progress"`
	Gaps      *gap.Report         `json:"gaps"`
	Entities  *extract.Result     `json:"entities"`
	Elapsed   string              `json:"elapsed"`
}

// Service fans work out to the gap analyzer and the entity extractor.
type Service struct {
	svc       *onboarding.Service
	analyzer  *gap.Analyzer
	extractor *extract.Extractor
	logger    *slog.Logger
}

// NewService creates the combined analysis service.
func NewService(svc *onboarding.Service, analyzer *gap.Analyzer, extractor *extract.Extractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{svc: svc, analyzer: analyzer, extractor: extractor, logger: logger}
}

// Analyze resolves the contract and runs both analyses. Each degrades to its
// rule-based result on LLM failure, so an error means the contract could not
// be loaded or ctx ended.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	c, err := s.svc.ContractFor(ctx, req.SessionID, req.Contract)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cat := s.svc.Catalog()
	result := &Result{SessionID: req.SessionID}
	_, _, result.Progress = onboarding.ComputeState(cat, c)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		report, err := s.analyzer.Analyze(gctx, cat, c)
		result.Gaps = report
		return err
	})
	g.Go(func() error {
		entities, err := s.extractor.Extract(gctx, extract.Input{Text: req.Text, Contract: c})
		result.Entities = entities
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(start).Round(time.Millisecond).String()
	s.logger.Info("Analysis complete",
		"session_id", req.SessionID,
		"gaps", len(result.Gaps.Gaps),
		"entities", len(result.Entities.Entities),
		"elapsed", result.Elapsed)
	return result, nil
}

// RegisterHTTPHandlers registers POST <prefix> (e.g. "/api/analyze").
func (s *Service) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	mux.HandleFunc("POST "+strings.TrimSuffix(prefix, "/"), s.handleAnalyze)
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpapi.DecodeJSON(w, r, &req, false); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Analyze(r.Context(), req)
	switch {
	case errors.Is(err, onboarding.ErrNoContract):
		httpapi.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpapi.WriteError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		s.logger.Error("Analysis failed", "session_id", req.SessionID, "error", err)
		httpapi.WriteError(w, http.StatusInternalServerError, "internal error")
	default:
		httpapi.WriteJSON(w, http.StatusOK, result)
	}
}
