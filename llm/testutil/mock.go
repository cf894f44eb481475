// Package testutil provides a scripted LLM client for tests of packages that
// call llm.Client.Complete.
package testutil

import (
	"context"
	"sync"

	"github.com/youcodecowboy/disco-grid/llm"
)

// MockLLMClient returns configured responses in sequence and records every
// request it receives. It is safe for concurrent use.
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{{Content: `{"entities": []}`, Model: "test-model"}},
//	}
type MockLLMClient struct {
	mu            sync.Mutex
	Responses     []*llm.Response
	Err           error // takes precedence over Responses
	requests      []llm.Request
	responseIndex int
}

// Complete returns the next configured response, or Err if set. Once the
// responses run out the last one is repeated.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return &llm.Response{Model: "test-model"}, nil
	}
	resp := m.Responses[min(m.responseIndex, len(m.Responses)-1)]
	m.responseIndex++
	cp := *resp
	return &cp, nil
}

// Requests returns the requests received so far.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Reset clears recorded requests and rewinds the responses.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
}
