// Package main implements a fake LLM server for running discogrid offline.
// It answers OpenAI-compatible /v1/chat/completions requests from fixture
// files chosen by the request's "model" field.
//
// Usage:
//
//	mock-llm --fixtures cmd/mock-llm/fixtures --addr :11434
//	DISCOGRID_LLM_REGISTRY=cmd/mock-llm/registry.json discogrid serve
//
// Fixtures are named after the model: "mock-analysis.txt" answers model
// "mock-analysis". Files may be .json (validated), .txt or .md. Numbered files
// ("mock-analysis.1.txt", "mock-analysis.2.txt") are returned on successive
// calls, after which the base file repeats.
package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// capturedRequest is a served request, kept for inspection via /requests.
type capturedRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"`
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string
	logger   *slog.Logger

	mu       sync.Mutex
	total    int
	calls    map[string]int
	requests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		fixtures: fixtures,
		logger:   logger,
		calls:    make(map[string]int),
		requests: make(map[string][]capturedRequest),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /requests", s.handleRequests)
	return mux
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var fixtureDir, addr string

	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "Serve canned LLM completions from fixture files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			if fixtureDir == "" {
				fixtureDir = "fixtures"
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			fixtures, err := loadFixtures(fixtureDir)
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}
			for _, model := range sortedKeys(fixtures) {
				logger.Info("Fixture loaded", "model", model, "responses", len(fixtures[model]))
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           newServer(fixtures, logger).routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("Mock LLM server listening", "addr", addr)
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory containing fixture files (default $MOCK_LLM_FIXTURES or ./fixtures)")
	cmd.Flags().StringVar(&addr, "addr", ":11434", "Listen address")
	return cmd
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	seq, ok := s.fixtures[req.Model]
	if !ok {
		seq, ok = s.fixtures[strings.TrimPrefix(req.Model, "mock-")]
	}
	if !ok {
		s.logger.Warn("No fixture for model", "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for model %q", req.Model), http.StatusNotFound)
		return
	}

	s.mu.Lock()
	s.total++
	index := s.calls[req.Model]
	s.calls[req.Model] = index + 1
	s.requests[req.Model] = append(s.requests[req.Model], capturedRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: index + 1,
		Timestamp: time.Now().UnixMilli(),
	})
	s.mu.Unlock()

	content := seq[min(index, len(seq)-1)]
	s.logger.Debug("Serving fixture", "model", req.Model, "call", index+1, "of", len(seq))

	prompt := 0
	for _, m := range req.Messages {
		prompt += len(m.Content) / 4
	}
	writeJSON(w, chatResponse{
		ID:      "mock-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     prompt,
			CompletionTokens: len(content) / 4,
			TotalTokens:      prompt + len(content)/4,
		},
	})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	models := make([]modelEntry, 0, len(s.fixtures))
	for _, name := range sortedKeys(s.fixtures) {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": models})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byModel := make(map[string]int, len(s.calls))
	for model, n := range s.calls {
		byModel[model] = n
	}
	total := s.total
	s.mu.Unlock()

	writeJSON(w, map[string]any{"total_calls": total, "calls_by_model": byModel})
}

// handleRequests returns captured requests, optionally filtered by the model
// and call (1-based) query parameters.
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	modelFilter := r.URL.Query().Get("model")
	call, _ := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for model, reqs := range s.requests {
		if modelFilter != "" && model != modelFilter {
			continue
		}
		for _, req := range reqs {
			if call == 0 || req.CallIndex == call {
				result[model] = append(result[model], req)
			}
		}
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{"requests_by_model": result})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fixtureNameRe splits "model.json" and "model.3.txt" into model and index.
var fixtureNameRe = regexp.MustCompile(`^(.+?)(?:\.(\d+))?\.(json|txt|md)$`)

// loadFixtures reads fixture files below dir into per-model response
// sequences: numbered files in numeric order, then the base file.
func loadFixtures(dir string) (map[string][]string, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "**/*.{json,txt,md}")
	if err != nil {
		return nil, err
	}

	type numbered struct {
		index   int
		content string
	}
	base := make(map[string]string)
	steps := make(map[string][]numbered)

	for _, name := range matches {
		m := fixtureNameRe.FindStringSubmatch(path.Base(name))
		if m == nil {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if m[3] == "json" && !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", name)
		}

		model, content := m[1], strings.TrimSpace(string(data))
		if m[2] == "" {
			base[model] = content
			continue
		}
		index, _ := strconv.Atoi(m[2])
		steps[model] = append(steps[model], numbered{index: index, content: content})
	}

	fixtures := make(map[string][]string)
	for model, seq := range steps {
		sort.Slice(seq, func(i, j int) bool { return seq[i].index < seq[j].index })
		for _, n := range seq {
			fixtures[model] = append(fixtures[model], n.content)
		}
	}
	for model, content := range base {
		fixtures[model] = append(fixtures[model], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
