package onboarding

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is used when WatchConfig.Debounce is zero.
const defaultDebounce = 300 * time.Millisecond

// WatchConfig configures catalog hot reloading.
type WatchConfig struct {
	// BaseDir resolves relative patterns.
	BaseDir string
	// Patterns are the catalog glob patterns.
	Patterns []string
	// Debounce is how long to wait for more changes before reloading.
	Debounce time.Duration
}

// CatalogWatcher reloads the catalog in a CatalogHolder when its files change.
// A failed reload keeps the previous catalog.
type CatalogWatcher struct {
	config  WatchConfig
	holder  *CatalogHolder
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// roots are the base directories of "**" patterns. Directories created
	// below a root are watched as they appear.
	roots []string

	mu      sync.Mutex
	timer   *time.Timer
	reloads chan struct{}
	done    chan struct{}
}

// NewCatalogWatcher creates a watcher over the base directory of every
// pattern, every directory below the base of a "**" pattern, and the
// directories holding the catalog files currently matched.
func NewCatalogWatcher(cfg WatchConfig, holder *CatalogHolder, logger *slog.Logger) (*CatalogWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	w := &CatalogWatcher{
		config:  cfg,
		holder:  holder,
		watcher: fsw,
		logger:  logger,
		reloads: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	dirs, err := w.watchDirs()
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *CatalogWatcher) watchDirs() ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range w.config.Patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(w.config.BaseDir, pattern)
		}
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		if info, err := os.Stat(base); err != nil || !info.IsDir() {
			continue
		}
		add(base)
		if !strings.Contains(rest, "**") {
			continue
		}
		w.roots = append(w.roots, base)
		sub, err := subdirs(base)
		if err != nil {
			return nil, err
		}
		for _, d := range sub {
			add(d)
		}
	}

	files, err := ResolveCatalogFiles(w.config.BaseDir, w.config.Patterns)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		add(filepath.Dir(f))
	}
	return dirs, nil
}

// subdirs lists every directory below root, root included.
func subdirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// watchNewDir adds a directory created below a "**" root, and everything
// already inside it, to the watcher. It reports whether path was such a
// directory.
func (w *CatalogWatcher) watchNewDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || !w.underRoot(path) {
		return false
	}
	dirs, err := subdirs(path)
	if err != nil {
		w.logger.Warn("Failed to list new catalog directory", "path", path, "error", err)
		return false
	}
	for _, d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			w.logger.Warn("Failed to watch catalog directory", "path", d, "error", err)
			continue
		}
		w.logger.Debug("Watching catalog directory", "path", d)
	}
	return true
}

func (w *CatalogWatcher) underRoot(path string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Reloaded signals after every reload attempt. Intended for tests and logging.
func (w *CatalogWatcher) Reloaded() <-chan struct{} { return w.reloads }

// Run processes file events until ctx is cancelled or the watcher is closed.
func (w *CatalogWatcher) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("Catalog watcher started", "patterns", w.config.Patterns, "debounce", w.config.Debounce)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.stopTimer()
				return
			}
			if event.Op&fsnotify.Create != 0 && w.watchNewDir(event.Name) {
				// The directory may already hold catalog files.
				w.schedule()
				continue
			}
			if !isYAML(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Catalog file changed", "path", event.Name, "op", event.Op.String())
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.stopTimer()
				return
			}
			w.logger.Warn("Catalog watcher error", "error", err)
		}
	}
}

func (w *CatalogWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, w.Reload)
}

func (w *CatalogWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Reload loads the catalog again and swaps it in on success.
func (w *CatalogWatcher) Reload() {
	c, err := LoadCatalog(w.config.BaseDir, w.config.Patterns)
	if err != nil {
		w.logger.Error("Catalog reload failed, keeping previous catalog", "error", err)
	} else {
		w.holder.Swap(c)
		w.logger.Info("Catalog reloaded", "questions", len(c.Questions()), "files", len(c.Sources()))
	}
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (w *CatalogWatcher) Done() <-chan struct{} { return w.done }

// Close stops the underlying file watcher, which also ends Run.
func (w *CatalogWatcher) Close() error {
	err := w.watcher.Close()
	w.stopTimer()
	return err
}

func isYAML(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
