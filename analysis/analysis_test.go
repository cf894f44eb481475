package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/extract"
	"github.com/youcodecowboy/disco-grid/gap"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

// routedLLM answers each capability with its own canned reply.
type routedLLM struct {
	replies map[string]string
}

func (r *routedLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, ok := r.replies[req.Capability]
	if !ok {
		return nil, llm.ErrNoEndpoints
	}
	return &llm.Response{Content: content, Model: "test-" + req.Capability}, nil
}

func newTestService(t *testing.T, client llm.Completer) (*Service, *onboarding.Service) {
	t.Helper()
	cat, err := onboarding.LoadCatalog("..", []string{"questions/**/*.yaml"})
	require.NoError(t, err)
	svc := onboarding.NewService(onboarding.NewCatalogHolder(cat), onboarding.NewMemorySessionStore())
	return NewService(svc, gap.NewAnalyzer(client), extract.NewExtractor(client), nil), svc
}

func seed(t *testing.T) *contract.Contract {
	t.Helper()
	c, err := contract.FromMap(map[string]any{
		"company":    map[string]any{"name": "Blue Thread", "ownBrand": false},
		"operations": map[string]any{"qualityControl": false, "systems": []any{"ERP"}},
	})
	require.NoError(t, err)
	return c
}

func TestService_Analyze(t *testing.T) {
	client := &routedLLM{replies: map[string]string{
		"analysis":   "<gap><area>team</area><finding>No planner role.</finding><severity>low</severity></gap>",
		"extraction": `{"entities": [{"type": "system", "name": "NetSuite"}]}`,
	}}
	s, svc := newTestService(t, client)
	sess, err := svc.Start(context.Background(), seed(t))
	require.NoError(t, err)

	result, err := s.Analyze(context.Background(), Request{SessionID: sess.ID})
	require.NoError(t, err)

	assert.Equal(t, sess.ID, result.SessionID)
	assert.Positive(t, result.Progress.Total)
	assert.Positive(t, result.Progress.Answered)

	require.NotNil(t, result.Gaps)
	assert.Equal(t, gap.SourceLLM, result.Gaps.Source)
	ids := make([]string, 0, len(result.Gaps.Gaps))
	for _, g := range result.Gaps.Gaps {
		ids = append(ids, g.ID)
	}
	assert.Contains(t, ids, "quality.no_qc")
	assert.Contains(t, ids, "llm.1")

	require.NotNil(t, result.Entities)
	assert.Equal(t, extract.SourceLLM, result.Entities.Source)
	var entityNames []string
	for _, e := range result.Entities.Entities {
		entityNames = append(entityNames, e.Name)
	}
	assert.Equal(t, []string{"Blue Thread", "ERP", "NetSuite"}, entityNames)
	assert.NotEmpty(t, result.Elapsed)
}

func TestService_AnalyzeFallbacks(t *testing.T) {
	s, _ := newTestService(t, &routedLLM{replies: map[string]string{}})

	result, err := s.Analyze(context.Background(), Request{Contract: seed(t)})
	require.NoError(t, err)
	assert.True(t, result.Gaps.Fallback)
	assert.True(t, result.Entities.Fallback)
	assert.Empty(t, result.SessionID)
}

func TestService_AnalyzeCancelled(t *testing.T) {
	s, _ := newTestService(t, &routedLLM{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Analyze(ctx, Request{Contract: seed(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_HTTP(t *testing.T) {
	s, _ := newTestService(t, nil)
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers("/api/analyze", mux)

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := do(`{"contract": {"operations": {"productionTracking": false}}, "text": "We sew jackets."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, gap.SourceHeuristic, result.Gaps.Source)
	assert.True(t, strings.Contains(w.Body.String(), "production.untracked"))

	assert.Equal(t, http.StatusBadRequest, do(`{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(`{"sessionId": "missing"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(`not json`).Code)
}
