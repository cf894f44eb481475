package llm

import (
	"net/http"
	"sort"
	"sync"
)

// Provider adapts one LLM HTTP API.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "ollama").
	Name() string

	// BuildURL constructs the completion endpoint URL from an optional base URL.
	BuildURL(baseURL string) string

	// APIKeyEnv is the environment variable read for the API key when the
	// endpoint does not name one.
	APIKeyEnv() string

	// SetHeaders adds authentication and provider-specific headers.
	// apiKey may be empty.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody encodes the request for the given model.
	BuildRequestBody(model string, req Request) ([]byte, error)

	// ParseResponse decodes a successful response body.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider. Providers register themselves in init().
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns the registered provider names, sorted.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
