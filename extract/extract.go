// Package extract derives business entities (company, brands, product
// categories, sites, departments, systems) from onboarding answers and free
// text. An LLM does the extraction; when it fails or returns nothing usable,
// the rule mapping from the onboarding package is used instead.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

const systemPrompt = `You extract business entities for a manufacturing operations platform.
Return a single JSON object of the form:

{"entities": [{"type": "...", "name": "...", "attributes": {...}}]}

Allowed types: company, brand, product_category, location, department, system.
Use the names exactly as the company refers to them. Omit anything you are
not sure about. Return {"entities": []} if nothing applies.`

// Source values reported in a Result.
const (
	SourceLLM   = "llm"
	SourceRules = "rules"
)

// sourceText marks entities that came from free text rather than a contract path.
const sourceText = "text"

// Input is what entities are extracted from. Either field may be empty.
type Input struct {
	Text     string
	Contract *contract.Contract
}

// Result is the outcome of an extraction.
type Result struct {
	Entities  []onboarding.Entity `json:"entities"`
	Source    string              `json:"source"`
	Fallback  bool                `json:"fallback"`
	Model     string              `json:"model,omitempty"`
	RequestID string              `json:"requestId,omitempty"`
}

// Extractor turns answers and text into entities.
type Extractor struct {
	client     llm.Completer
	rules      []onboarding.EntityRule
	capability string
	logger     *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRules replaces the fallback mapping rules.
func WithRules(rules []onboarding.EntityRule) Option {
	return func(e *Extractor) {
		e.rules = rules
	}
}

// WithCapability sets the LLM capability used for extraction.
func WithCapability(capability string) Option {
	return func(e *Extractor) {
		e.capability = capability
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor. A nil client uses the rules only.
func NewExtractor(client llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{
		client:     client,
		rules:      onboarding.DefaultEntityRules,
		capability: "extraction",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns entities for in. Rule-mapped entities from the contract are
// always included; LLM entities are added to them. Only a cancelled context
// is returned as an error.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	mapped := onboarding.MapEntities(in.Contract, e.rules)
	result := &Result{Entities: mapped, Source: SourceRules}

	if e.client == nil || (strings.TrimSpace(in.Text) == "" && in.Contract.Len() == 0) {
		return result, nil
	}

	resp, entities, err := e.extract(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("LLM entity extraction failed, using rule mapping", "error", err)
		result.Fallback = true
		return result, nil
	}

	result.Entities = merge(mapped, entities)
	result.Source = SourceLLM
	result.Model = resp.Model
	result.RequestID = resp.RequestID
	e.logger.Debug("Entities extracted",
		"mapped", len(mapped),
		"llm", len(entities),
		"total", len(result.Entities))
	return result, nil
}

// wireEntity is the JSON shape the model is asked for.
type wireEntity struct {
	Type       string                    `json:"type"`
	Name       string                    `json:"name"`
	Attributes map[string]contract.Value `json:"attributes"`
}

func (e *Extractor) extract(ctx context.Context, in Input) (*llm.Response, []onboarding.Entity, error) {
	var b strings.Builder
	if in.Contract.Len() > 0 {
		answers, err := json.MarshalIndent(in.Contract, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode contract: %w", err)
		}
		b.WriteString("Onboarding answers:\n")
		b.Write(answers)
		b.WriteString("\n\n")
	}
	if text := strings.TrimSpace(in.Text); text != "" {
		b.WriteString("Company description:\n")
		b.WriteString(text)
		b.WriteString("\n")
	}

	temp := 0.0
	resp, err := e.client.Complete(ctx, llm.Request{
		Capability: e.capability,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature: &temp,
		JSON:        true,
	})
	if err != nil {
		return nil, nil, err
	}

	var doc struct {
		Entities []wireEntity `json:"entities"`
	}
	if err := llm.DecodeJSON(resp.Content, &doc); err != nil {
		return nil, nil, err
	}

	entities := make([]onboarding.Entity, 0, len(doc.Entities))
	for _, w := range doc.Entities {
		t := onboarding.EntityType(strings.ToLower(strings.TrimSpace(w.Type)))
		name := strings.TrimSpace(w.Name)
		if !t.IsValid() || name == "" {
			e.logger.Debug("Dropping extracted entity", "type", w.Type, "name", w.Name)
			continue
		}
		entities = append(entities, onboarding.Entity{
			Type:       t,
			Name:       name,
			Attributes: w.Attributes,
			Source:     sourceText,
		})
	}
	if len(entities) == 0 && len(doc.Entities) > 0 {
		return nil, nil, fmt.Errorf("no valid entities in %d returned", len(doc.Entities))
	}
	return resp, entities, nil
}

// merge appends extracted entities whose (type, name) is not already mapped.
// Names compare case-insensitively.
func merge(mapped, extracted []onboarding.Entity) []onboarding.Entity {
	key := func(e onboarding.Entity) string {
		return string(e.Type) + "\x00" + strings.ToLower(e.Name)
	}
	seen := make(map[string]bool, len(mapped)+len(extracted))
	out := make([]onboarding.Entity, 0, len(mapped)+len(extracted))
	for _, e := range mapped {
		seen[key(e)] = true
		out = append(out, e)
	}
	for _, e := range extracted {
		if k := key(e); !seen[k] {
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}
