package gap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

func newTestMux(t *testing.T) (*http.ServeMux, *onboarding.Service) {
	t.Helper()
	svc := onboarding.NewService(onboarding.NewCatalogHolder(bundledCatalog(t)), onboarding.NewMemorySessionStore())
	mux := http.NewServeMux()
	NewHandler(NewAnalyzer(nil), svc, nil).RegisterHTTPHandlers("/api/gap-analysis", mux)
	return mux, svc
}

func post(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/gap-analysis", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandler_InlineContract(t *testing.T) {
	mux, _ := newTestMux(t)

	w := post(t, mux, `{"contract": {"operations": {"inventoryMethod": "Paper"}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, SourceHeuristic, report.Source)

	var found bool
	for _, g := range report.Gaps {
		if g.ID == "inventory.manual" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestHandler_Session(t *testing.T) {
	mux, svc := newTestMux(t)
	c := answers(t, map[string]any{"operations.qualityControl": false})
	sess, err := svc.Start(context.Background(), c)
	require.NoError(t, err)

	w := post(t, mux, `{"sessionId": "`+sess.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"quality.no_qc"`)
}

func TestHandler_Errors(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed", `{"contract":`, http.StatusBadRequest},
		{"no contract", `{}`, http.StatusBadRequest},
		{"unknown session", `{"sessionId": "missing"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, mux, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
