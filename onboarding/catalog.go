package onboarding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/youcodecowboy/disco-grid/contract"
	"gopkg.in/yaml.v3"
)

// Section groups related questions.
type Section struct {
	ID        string      `json:"id" yaml:"id"`
	Title     string      `json:"title" yaml:"title"`
	Questions []*Question `json:"questions" yaml:"questions"`
}

// catalogFile is the on-disk YAML layout.
type catalogFile struct {
	Sections []Section `yaml:"sections"`
}

// Catalog is an immutable, validated set of questions in presentation order.
type Catalog struct {
	sections []Section
	ordered  []*Question
	byID     map[string]*Question
	sources  []string
}

// ParseCatalog parses a single YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Sections)
}

// NewCatalog validates sections and builds a catalog.
func NewCatalog(sections []Section) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]*Question)}
	paths := make(map[string]bool)

	var errs []error
	for si := range sections {
		s := sections[si]
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("section %d: id is required", si))
		}
		qs := make([]*Question, 0, len(s.Questions))
		for qi, src := range s.Questions {
			if src == nil {
				errs = append(errs, fmt.Errorf("section %s question %d: empty entry", s.ID, qi))
				continue
			}
			q := *src
			q.Section = s.ID
			if q.Type == "" {
				q.Type = QuestionTypeText
			}
			if err := validateQuestion(&q); err != nil {
				errs = append(errs, err)
				continue
			}
			if _, dup := c.byID[q.ID]; dup {
				errs = append(errs, fmt.Errorf("question %s: duplicate id", q.ID))
				continue
			}
			c.byID[q.ID] = &q
			c.ordered = append(c.ordered, &q)
			qs = append(qs, &q)
			paths[q.Path()] = true
		}
		s.Questions = qs
		c.sections = append(c.sections, s)
	}

	for _, q := range c.ordered {
		if q.Conditional == nil {
			continue
		}
		if !paths[q.Conditional.DependsOn] {
			errs = append(errs, fmt.Errorf("question %s: dependsOn %q is not answered by any question",
				q.ID, q.Conditional.DependsOn))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func validateQuestion(q *Question) error {
	if q.ID == "" {
		return fmt.Errorf("question in section %s: id is required", q.Section)
	}
	if q.Prompt == "" {
		return fmt.Errorf("question %s: prompt is required", q.ID)
	}
	if !q.Type.IsValid() {
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	if (q.Type == QuestionTypeSingleSelect || q.Type == QuestionTypeMultiSelect) && len(q.Options) == 0 {
		return fmt.Errorf("question %s: %s requires options", q.ID, q.Type)
	}
	if !contract.ValidPath(q.Path()) {
		return fmt.Errorf("question %s: invalid answer path %q", q.ID, q.AnswerPath)
	}
	if q.Conditional != nil {
		if q.Conditional.DependsOn == "" {
			return fmt.Errorf("question %s: conditional requires dependsOn", q.ID)
		}
		if !contract.ValidPath(q.Conditional.DependsOn) {
			return fmt.Errorf("question %s: invalid dependsOn path %q", q.ID, q.Conditional.DependsOn)
		}
	}
	return nil
}

// Sections returns the catalog sections in order.
func (c *Catalog) Sections() []Section { return c.sections }

// Questions returns every question in presentation order.
func (c *Catalog) Questions() []*Question { return c.ordered }

// Question looks up a question by ID.
func (c *Catalog) Question(id string) (*Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Sources lists the files the catalog was loaded from.
func (c *Catalog) Sources() []string { return c.sources }

// Visible returns the questions shown for the contract, in catalog order.
func (c *Catalog) Visible(ct *contract.Contract) []*Question {
	var out []*Question
	for _, q := range c.ordered {
		if ShouldShow(q, ct) {
			out = append(out, q)
		}
	}
	return out
}

// LoadCatalog loads and merges every YAML file matching the glob patterns.
// Relative patterns are resolved against baseDir. Sections from later files
// are appended after earlier ones; files are read in lexical order.
func LoadCatalog(baseDir string, patterns []string) (*Catalog, error) {
	files, err := ResolveCatalogFiles(baseDir, patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no catalog files match %v", patterns)
	}

	var sections []Section
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		sections = append(sections, f.Sections...)
	}

	c, err := NewCatalog(sections)
	if err != nil {
		return nil, err
	}
	c.sources = files
	return c, nil
}

// ResolveCatalogFiles expands glob patterns (with ** support) to a sorted,
// de-duplicated list of files.
func ResolveCatalogFiles(baseDir string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// CatalogHolder publishes the current catalog and lets it be swapped on reload.
type CatalogHolder struct {
	current atomic.Pointer[Catalog]
}

// NewCatalogHolder wraps an initial catalog.
func NewCatalogHolder(c *Catalog) *CatalogHolder {
	h := &CatalogHolder{}
	h.current.Store(c)
	return h
}

// Catalog returns the current catalog.
func (h *CatalogHolder) Catalog() *Catalog { return h.current.Load() }

// Swap replaces the current catalog.
func (h *CatalogHolder) Swap(c *Catalog) { h.current.Store(c) }
