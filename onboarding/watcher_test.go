package onboarding

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oneQuestion = `
sections:
  - id: s
    questions:
      - {id: a, prompt: A}
`

const twoQuestions = `
sections:
  - id: s
    questions:
      - {id: a, prompt: A}
      - {id: b, prompt: B, type: boolean}
`

func newTestWatcher(t *testing.T) (*CatalogWatcher, *CatalogHolder, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	writeFile(t, path, oneQuestion)

	cfg := WatchConfig{BaseDir: dir, Patterns: []string{"*.yaml"}, Debounce: 20 * time.Millisecond}
	cat, err := LoadCatalog(cfg.BaseDir, cfg.Patterns)
	require.NoError(t, err)
	holder := NewCatalogHolder(cat)

	w, err := NewCatalogWatcher(cfg, holder, nil)
	require.NoError(t, err)
	return w, holder, path
}

func TestCatalogWatcher_Reload(t *testing.T) {
	w, holder, path := newTestWatcher(t)
	defer w.Close()

	writeFile(t, path, twoQuestions)
	w.Reload()
	assert.Len(t, holder.Catalog().Questions(), 2)
}

func TestCatalogWatcher_ReloadKeepsPreviousOnError(t *testing.T) {
	w, holder, path := newTestWatcher(t)
	defer w.Close()

	before := holder.Catalog()
	writeFile(t, path, "sections: [{id: s, questions: [{id: a}]}]")
	w.Reload()
	assert.Same(t, before, holder.Catalog())
}

func TestCatalogWatcher_Run(t *testing.T) {
	w, holder, path := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	writeFile(t, path, twoQuestions)

	select {
	case <-w.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.Len(t, holder.Catalog().Questions(), 2)

	cancel()
	<-w.Done()
	require.NoError(t, w.Close())
}

func TestCatalogWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "questions", "10-base.yaml"), oneQuestion)

	cfg := WatchConfig{BaseDir: dir, Patterns: []string{"questions/**/*.yaml"}, Debounce: 20 * time.Millisecond}
	cat, err := LoadCatalog(cfg.BaseDir, cfg.Patterns)
	require.NoError(t, err)
	holder := NewCatalogHolder(cat)

	w, err := NewCatalogWatcher(cfg, holder, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	defer func() {
		cancel()
		<-w.Done()
		_ = w.Close()
	}()

	writeFile(t, filepath.Join(dir, "questions", "extra", "nested", "20-more.yaml"), `
sections:
  - id: more
    questions:
      - id: more.q
        prompt: "More?"
        type: boolean
`)

	require.Eventually(t, func() bool {
		return len(holder.Catalog().Questions()) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCatalogWatcher_UnderRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "questions")
	w := &CatalogWatcher{roots: []string{root}}

	assert.True(t, w.underRoot(filepath.Join(root, "extra")))
	assert.True(t, w.underRoot(root))
	assert.False(t, w.underRoot(filepath.Dir(root)))
	assert.False(t, w.underRoot(root+"-other"))
}
