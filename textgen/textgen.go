// Package textgen generates free text for the assistant surfaces (summaries,
// descriptions, report copy) through the LLM client.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/model"
)

// Format selects how generated content is returned.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// MaxPromptLength bounds the prompt size in bytes.
const MaxPromptLength = 32 * 1024

// Validation errors.
var (
	ErrEmptyPrompt       = errors.New("prompt is required")
	ErrPromptTooLong     = fmt.Errorf("prompt exceeds %d bytes", MaxPromptLength)
	ErrInvalidFormat     = errors.New("format must be text or markdown")
	ErrInvalidCapability = errors.New("unknown capability")
)

// ErrUnavailable is returned when the generator has no LLM client.
var ErrUnavailable = errors.New("text generation is not configured")

const systemPrompt = `You write concise, factual copy for an operations platform used by
manufacturers. Use the supplied context when it is relevant and do not invent
figures.`

// Request is a generation request.
type Request struct {
	Prompt string `json:"prompt"`
	// Context is optional structured or free-text background.
	Context    contract.Value `json:"context,omitzero"`
	Capability string         `json:"capability,omitempty"`
	Format     Format         `json:"format,omitempty"`
	MaxTokens  int            `json:"maxTokens,omitempty"`
}

// Result is generated content.
type Result struct {
	Content   string `json:"content"`
	Title     string `json:"title,omitempty"`
	Format    Format `json:"format"`
	Model     string `json:"model"`
	RequestID string `json:"requestId"`
}

// Generator produces text through an LLM.
type Generator struct {
	client    llm.Completer
	converter *Converter
	logger    *slog.Logger
}

// NewGenerator creates a generator. A nil client makes every valid request
// fail with ErrUnavailable.
func NewGenerator(client llm.Completer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, converter: NewConverter(), logger: logger}
}

// Validate fills defaults and rejects malformed requests.
func (r *Request) Validate() error {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(r.Prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	if r.Format == "" {
		r.Format = FormatText
	}
	if r.Format != FormatText && r.Format != FormatMarkdown {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, r.Format)
	}
	if r.Capability == "" {
		r.Capability = model.CapabilityGeneration.String()
	}
	if model.ParseCapability(r.Capability) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCapability, r.Capability)
	}
	if r.MaxTokens < 0 {
		r.MaxTokens = 0
	}
	return nil
}

// Generate validates req and runs it. Validation errors are returned as is;
// LLM failures are wrapped.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if g.client == nil {
		return nil, ErrUnavailable
	}

	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	if bg := contextText(req.Context); bg != "" {
		messages = append(messages, llm.Message{Role: "user", Content: "Context:\n" + bg})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Prompt})
	if req.Format == FormatMarkdown {
		messages[0].Content += "\nFormat the answer as Markdown."
	}

	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: req.Capability,
		Messages:   messages,
		MaxTokens:  req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	result := &Result{
		Content:   strings.TrimSpace(resp.Content),
		Format:    req.Format,
		Model:     resp.Model,
		RequestID: resp.RequestID,
	}
	if req.Format == FormatMarkdown {
		markdown, err := g.converter.ToMarkdown(resp.Content)
		if err != nil {
			g.logger.Warn("Markdown conversion failed, returning raw content", "request_id", resp.RequestID, "error", err)
		} else {
			result.Content = markdown
		}
		result.Title = Title(result.Content)
	}
	return result, nil
}

// contextText renders a context value for the prompt.
func contextText(v contract.Value) string {
	switch v.Kind() {
	case contract.KindUndefined, contract.KindNull:
		return ""
	case contract.KindString:
		s, _ := v.AsString()
		return strings.TrimSpace(s)
	}
	return v.String()
}
