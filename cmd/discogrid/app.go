package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/youcodecowboy/disco-grid/analysis"
	"github.com/youcodecowboy/disco-grid/config"
	"github.com/youcodecowboy/disco-grid/extract"
	"github.com/youcodecowboy/disco-grid/gap"
	"github.com/youcodecowboy/disco-grid/httpapi"
	"github.com/youcodecowboy/disco-grid/llm"
	"github.com/youcodecowboy/disco-grid/onboarding"
	"github.com/youcodecowboy/disco-grid/textgen"
)

// Route prefixes.
const (
	onboardingPrefix = "/api/onboarding"
	generatePrefix   = "/api/generate"
	gapPrefix        = "/api/gap-analysis"
	extractPrefix    = "/api/extract-entities"
	analyzePrefix    = "/api/analyze"
)

// App wires configuration, storage, the LLM client and the HTTP routes.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	metrics *prometheus.Registry
	holder  *onboarding.CatalogHolder
	watcher *onboarding.CatalogWatcher
	nats    *natsclient.Client
	store   onboarding.SessionStore
	client  llm.Completer
	handler http.Handler
}

// NewApp builds every component named by cfg. Close releases what it opened.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: prometheus.NewRegistry(),
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := a.initCatalog(); err != nil {
		return nil, err
	}
	if err := a.initStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initLLM(); err != nil {
		a.Close()
		return nil, err
	}
	rules, err := a.gapRules()
	if err != nil {
		a.Close()
		return nil, err
	}

	svc := onboarding.NewService(a.holder, a.store, onboarding.WithLogger(logger))
	analyzer := gap.NewAnalyzer(a.client, gap.WithRules(rules), gap.WithLogger(logger))
	extractor := extract.NewExtractor(a.client, extract.WithLogger(logger))

	mux := http.NewServeMux()
	onboarding.NewHandler(svc, logger).RegisterHTTPHandlers(onboardingPrefix, mux)
	textgen.NewHandler(textgen.NewGenerator(a.client, logger), logger).RegisterHTTPHandlers(generatePrefix, mux)
	gap.NewHandler(analyzer, svc, logger).RegisterHTTPHandlers(gapPrefix, mux)
	extract.NewHandler(extractor, svc, logger).RegisterHTTPHandlers(extractPrefix, mux)
	analysis.NewService(svc, analyzer, extractor, logger).RegisterHTTPHandlers(analyzePrefix, mux)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{Registry: a.metrics}))

	a.handler = newHTTPMetrics(a.metrics).wrap(logRequests(logger, mux))
	return a, nil
}

func (a *App) initCatalog() error {
	cc := a.cfg.Catalog
	cat, err := onboarding.LoadCatalog(cc.BaseDir, cc.Patterns)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	a.holder = onboarding.NewCatalogHolder(cat)
	a.logger.Info("Catalog loaded",
		"sections", len(cat.Sections()),
		"questions", len(cat.Questions()),
		"files", len(cat.Sources()))

	if cc.Watch {
		w, err := onboarding.NewCatalogWatcher(onboarding.WatchConfig{
			BaseDir:  cc.BaseDir,
			Patterns: cc.Patterns,
			Debounce: cc.Debounce,
		}, a.holder, a.logger)
		if err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
		a.watcher = w
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	sc := a.cfg.Storage
	if sc.Backend != config.BackendNATS {
		a.store = onboarding.NewMemorySessionStore()
		return nil
	}

	client, err := connectToNATS(ctx, sc.NATSURL, a.logger)
	if err != nil {
		return err
	}
	a.nats = client

	js, err := client.JetStream()
	if err != nil {
		return fmt.Errorf("get JetStream context: %w", err)
	}
	store, err := onboarding.NewKVSessionStore(ctx, js, sc.SessionTTL)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	a.store = store
	return nil
}

func (a *App) initLLM() error {
	lc := a.cfg.LLM
	if lc.Disabled {
		a.logger.Info("LLM disabled, assistant routes use rule-based fallbacks")
		return nil
	}
	registry, err := lc.ModelRegistry()
	if err != nil {
		return fmt.Errorf("model registry: %w", err)
	}

	retry := llm.DefaultRetryConfig()
	if lc.MaxAttempts > 0 {
		retry.MaxAttempts = lc.MaxAttempts
	}
	a.client = llm.NewClient(registry,
		llm.WithHTTPClient(&http.Client{Timeout: lc.Timeout}),
		llm.WithRetryConfig(retry),
		llm.WithMetrics(llm.NewMetrics(a.metrics)),
		llm.WithLogger(a.logger),
	)
	return nil
}

func (a *App) gapRules() ([]gap.Rule, error) {
	path := a.cfg.Catalog.GapRulesFile
	if path == "" {
		return gap.DefaultRules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gap rules: %w", err)
	}
	rules, err := gap.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("gap rules %s: %w", path, err)
	}
	a.logger.Info("Gap rules loaded", "path", path, "rules", len(rules))
	return rules, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.watcher != nil {
		go a.watcher.Run(watchCtx)
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error stopping HTTP server", "error", err)
		return err
	}
	a.logger.Info("Discogrid shutdown complete")
	return nil
}

// Close stops the catalog watcher and the NATS connection.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.Debug("Close catalog watcher", "error", err)
		}
		a.watcher = nil
	}
	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.nats.Close(ctx)
		a.nats = nil
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Storage   string `json:"storage"`
	LLM       bool   `json:"llm"`
	Questions int    `json:"questions"`
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Storage:   a.cfg.Storage.Backend,
		LLM:       a.client != nil,
		Questions: len(a.holder.Catalog().Questions()),
	})
}

func connectToNATS(ctx context.Context, url string, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", url)

	client, err := natsclient.NewClient(url,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, url)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		client.Close(ctx)
		return nil, wrapNATSError(err, url)
	}

	logger.Info("Connected to NATS", "url", url)
	return client, nil
}

// wrapNATSError adds setup guidance to connection failures.
func wrapNATSError(err error, url string) error {
	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no servers available") ||
		strings.Contains(msg, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

Start a JetStream-enabled server (nats-server -js), point NATS_URL at one,
or set DISCOGRID_STORAGE=memory.`, err, url)
	}
	return fmt.Errorf("NATS connection failed: %w", err)
}
