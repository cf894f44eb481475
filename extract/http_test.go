package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/llm/testutil"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

func newTestMux(t *testing.T, client llm.Completer) (*http.ServeMux, *onboarding.Service) {
	t.Helper()
	cat, err := onboarding.LoadCatalog("..", []string{"questions/**/*.yaml"})
	require.NoError(t, err)
	svc := onboarding.NewService(onboarding.NewCatalogHolder(cat), onboarding.NewMemorySessionStore())
	mux := http.NewServeMux()
	NewHandler(NewExtractor(client), svc, nil).RegisterHTTPHandlers("api/extract-entities/", mux)
	return mux, svc
}

func post(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/extract-entities", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestHandler_Session(t *testing.T) {
	mux, svc := newTestMux(t, nil)
	sess, err := svc.Start(context.Background(), answers(t, map[string]any{
		"team.departments": []string{"Design", "Production"},
	}))
	require.NoError(t, err)

	w := post(t, mux, `{"sessionId": "`+sess.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, SourceRules, result.Source)
	assert.Equal(t, []string{"department:Design", "department:Production"}, names(result.Entities))
}

func TestHandler_TextOnly(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"entities": [{"type": "brand", "name": "Indigo Lane"}]}`,
	}}}
	mux, _ := newTestMux(t, mock)

	w := post(t, mux, `{"text": "We design for our own label, Indigo Lane."}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, SourceLLM, result.Source)
	assert.Equal(t, []string{"brand:Indigo Lane"}, names(result.Entities))
}

func TestHandler_Errors(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"nothing to extract from", `{"text": " "}`, http.StatusBadRequest},
		{"unknown session", `{"sessionId": "nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, mux, tt.body).Code)
		})
	}
}
