package model

import (
	"sync"
	"time"
)

// EndpointHealth is a snapshot of one endpoint's health.
type EndpointHealth struct {
	// Available is false while the circuit is open.
	Available bool `json:"available"`

	LastSuccess time.Time `json:"last_success,omitzero"`
	LastFailure time.Time `json:"last_failure,omitzero"`

	// FailureCount is the number of consecutive failures.
	FailureCount int `json:"failure_count"`

	// CircuitOpenedAt is when the circuit last tripped.
	CircuitOpenedAt time.Time `json:"circuit_opened_at,omitzero"`
}

// HealthConfig configures the per-endpoint circuit breaker.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects requests before a
	// probe is allowed through.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns the default breaker settings.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type healthState struct {
	mu       sync.Mutex
	config   HealthConfig
	now      func() time.Time
	statuses map[string]*EndpointHealth
}

func newHealthState(cfg HealthConfig) *healthState {
	return &healthState{
		config:   cfg,
		now:      time.Now,
		statuses: make(map[string]*EndpointHealth),
	}
}

// status returns the entry for name, creating it. Callers hold h.mu.
func (h *healthState) status(name string) *EndpointHealth {
	s, ok := h.statuses[name]
	if !ok {
		s = &EndpointHealth{Available: true}
		h.statuses[name] = s
	}
	return s
}

// MarkEndpointSuccess closes the circuit for an endpoint.
func (r *Registry) MarkEndpointSuccess(name string) {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	s.LastSuccess = h.now()
	s.FailureCount = 0
	s.Available = true
}

// MarkEndpointFailure records a failure and opens the circuit once the
// threshold is reached. A failure during a half-open probe reopens it.
func (r *Registry) MarkEndpointFailure(name string) {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.status(name)
	now := h.now()
	s.LastFailure = now
	s.FailureCount++
	if s.FailureCount >= h.config.FailureThreshold {
		s.Available = false
		s.CircuitOpenedAt = now
	}
}

// IsEndpointAvailable reports whether requests may be sent to an endpoint.
// An open circuit lets a probe through after the recovery timeout.
func (r *Registry) IsEndpointAvailable(name string) bool {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok || s.Available {
		return true
	}
	return h.now().Sub(s.CircuitOpenedAt) > h.config.RecoveryTimeout
}

// EndpointHealth returns a copy of an endpoint's health, or nil if no request
// has been recorded.
func (r *Registry) EndpointHealth(name string) *EndpointHealth {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.statuses[name]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// AvailableChain returns Chain filtered to endpoints whose circuit admits
// requests. When every endpoint is open the full chain is returned.
func (r *Registry) AvailableChain(c Capability) []string {
	chain := r.Chain(c)
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if r.IsEndpointAvailable(name) {
			available = append(available, name)
		}
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// SetHealthConfig replaces the breaker settings.
func (r *Registry) SetHealthConfig(cfg HealthConfig) {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	h.config = cfg
}

// ResetEndpointHealth forgets an endpoint's history.
func (r *Registry) ResetEndpointHealth(name string) {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.statuses, name)
}

// setClock overrides the health clock; used in tests.
func (r *Registry) setClock(now func() time.Time) {
	h := r.health
	h.mu.Lock()
	defer h.mu.Unlock()

	h.now = now
}
