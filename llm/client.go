// Package llm is a provider-agnostic LLM client. Requests name a capability;
// the model.Registry turns it into a chain of endpoints that are tried in
// order, each with retries, while a per-endpoint circuit breaker skips
// endpoints that keep failing.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/youcodecowboy/disco-grid/model"
)

// maxResponseSize limits the LLM response body.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Request is an LLM completion request.
type Request struct {
	// Capability selects the endpoint chain ("generation", "analysis", ...).
	Capability string

	// Messages is the chat history.
	Messages []Message

	// Temperature is nil for the endpoint default; 0 is deterministic.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int

	// JSON asks providers that support it for a JSON object response.
	JSON bool
}

// TokenUsage is token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a completion result.
type Response struct {
	// RequestID identifies the Complete call across retries and fallbacks.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model reported by the provider.
	Model string

	// Endpoint is the registry endpoint that answered.
	Endpoint string

	Usage        TokenUsage
	FinishReason string
}

// Completer is satisfied by *Client and by test doubles.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client sends completion requests through the registry's fallback chains.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	metrics     *Metrics
	logger      *slog.Logger
	getenv      func(string) string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithMetrics records call statistics.
func WithMetrics(m *Metrics) ClientOption {
	return func(client *Client) {
		client.metrics = m
	}
}

// WithEnv overrides how API keys are looked up.
func WithEnv(getenv func(string) string) ClientOption {
	return func(client *Client) {
		client.getenv = getenv
	}
}

// NewClient creates a client over the given registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		logger: slog.Default(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the model registry.
func (c *Client) Registry() *model.Registry { return c.registry }

// Complete sends a completion request. Each endpoint of the capability's chain
// is retried on transient errors; the next endpoint is tried when retries run
// out. A fatal error ends the call immediately.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Capability == "" {
		return nil, fmt.Errorf("capability is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	capVal := model.ParseCapability(req.Capability)
	if capVal == "" {
		return nil, NewFatalError(fmt.Errorf("unknown capability %q", req.Capability))
	}
	chain := c.registry.AvailableChain(capVal)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, req.Capability)
	}

	requestID := uuid.New().String()
	var lastErr error

	for i, name := range chain {
		ep := c.registry.Endpoint(name)
		if ep == nil {
			c.logger.Debug("No endpoint for model, skipping", "model", name)
			continue
		}
		if i > 0 {
			c.metrics.observeFallback(req.Capability)
		}

		resp, err := c.tryEndpoint(ctx, name, ep, req)
		if err == nil {
			resp.RequestID = requestID
			resp.Endpoint = name
			c.metrics.observeUsage(ep.Provider, resp.Usage)
			c.logger.Debug("LLM call succeeded",
				"request_id", requestID,
				"capability", req.Capability,
				"model", resp.Model,
				"tokens", resp.Usage.TotalTokens)
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if IsFatal(err) {
			c.logger.Warn("Fatal LLM error, not trying fallbacks",
				"request_id", requestID,
				"model", name,
				"error", err)
			return nil, err
		}
		c.logger.Warn("Endpoint failed, trying fallback",
			"request_id", requestID,
			"model", name,
			"provider", ep.Provider,
			"error", err)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoints, req.Capability)
	}
	return nil, fmt.Errorf("%w for capability %s: %w", ErrAllEndpointsFailed, req.Capability, lastErr)
}

// tryEndpoint runs the retry loop for one endpoint and updates its health.
func (c *Client) tryEndpoint(ctx context.Context, name string, ep *model.EndpointConfig, req Request) (*Response, error) {
	attempts := max(c.retryConfig.MaxAttempts, 1)
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := c.doRequest(ctx, ep, req)
		elapsed := time.Since(start)

		if err == nil {
			c.metrics.observeAttempt(req.Capability, ep.Provider, outcomeSuccess, elapsed)
			c.registry.MarkEndpointSuccess(name)
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) {
			// Auth and bad-request errors are configuration problems, not
			// endpoint health.
			c.metrics.observeAttempt(req.Capability, ep.Provider, outcomeFatal, elapsed)
			return nil, err
		}
		c.metrics.observeAttempt(req.Capability, ep.Provider, outcomeError, elapsed)

		if attempt < attempts {
			backoff := c.retryConfig.backoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"model", name,
				"attempt", attempt,
				"max_attempts", attempts,
				"backoff", backoff,
				"error", err)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, lastErr
}

// doRequest executes one HTTP request against an endpoint.
func (c *Client) doRequest(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider := GetProvider(ep.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", ep.Provider))
	}

	url := provider.BuildURL(ep.URL)
	body, err := provider.BuildRequestBody(ep.Model, req)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	keyEnv := ep.APIKeyEnv
	if keyEnv == "" {
		keyEnv = provider.APIKeyEnv()
	}
	var apiKey string
	if keyEnv != "" {
		apiKey = c.getenv(keyEnv)
	}
	provider.SetHeaders(httpReq, apiKey)

	c.logger.Debug("Sending LLM request",
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"messages", len(req.Messages))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := provider.ParseResponse(respBody, ep.Model)
	if err != nil {
		// Malformed bodies are retried.
		return nil, NewTransientError(err)
	}
	return resp, nil
}
