// Package portfolio holds the catalog of past projects and answers which of
// them best demonstrate a set of required skills.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/coldmail/internal/logger"
	"github.com/spigell/coldmail/internal/model"
)

const (
	// DefaultMaxLinks is the number of links returned by QueryLinks unless configured.
	DefaultMaxLinks    = 2
	defaultLoadTimeout = 30 * time.Second
)

// Entry is one portfolio project: the skills it demonstrates and where to see it.
type Entry struct {
	Skills []string
	Link   string
}

// Catalog is loaded once per session and is read-only afterwards.
type Catalog struct {
	maxLinks    int
	loadTimeout time.Duration
	logger      *zap.Logger

	mu      sync.RWMutex
	loaded  bool
	source  string
	entries []Entry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithMaxLinks caps the number of links returned by QueryLinks.
func WithMaxLinks(k int) Option {
	return func(c *Catalog) {
		if k > 0 {
			c.maxLinks = k
		}
	}
}

// WithLoadTimeout bounds the time a Load may take.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		c.logger = l
	}
}

func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		maxLinks:    DefaultMaxLinks,
		loadTimeout: defaultLoadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNop(c.logger)
	return c
}

// Load reads the catalog from src. Once a load has succeeded further calls
// are no-ops; a failed load leaves the catalog empty and may be retried.
func (c *Catalog) Load(ctx context.Context, src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		c.logger.Debug("portfolio catalog already loaded", zap.String("source", c.source))
		return nil
	}

	if src == nil {
		return &model.CatalogLoadError{Cause: errors.New("no catalog source configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	entries, err := src.Read(ctx)
	if err != nil {
		return &model.CatalogLoadError{
			Source: src.Location(),
			Cause:  model.AsTimeout(err, "load portfolio catalog", c.loadTimeout),
		}
	}

	for i := range entries {
		entry := Entry{Skills: SplitSkills(entries[i].Skills...), Link: strings.TrimSpace(entries[i].Link)}
		entries[i] = entry
		if len(entry.Skills) == 0 {
			return &model.CatalogLoadError{Source: src.Location(), Cause: fmt.Errorf("entry %d has no skills", i+1)}
		}
		if entry.Link == "" {
			return &model.CatalogLoadError{Source: src.Location(), Cause: fmt.Errorf("entry %d has no link", i+1)}
		}
	}

	c.entries = entries
	c.source = src.Location()
	c.loaded = true

	c.logger.Info("portfolio catalog loaded",
		zap.String("source", c.source),
		zap.Int("entries", len(entries)),
		zap.Int("max_links", c.maxLinks),
	)

	return nil
}

// Loaded reports whether a Load has succeeded.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a copy of the loaded entries in catalog order.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Skills: append([]string(nil), e.Skills...), Link: e.Link}
	}
	return out
}

// QueryLinks returns up to K distinct links of the entries sharing at least
// one skill with required. Entries with more shared skills come first; ties
// keep catalog order.
func (c *Catalog) QueryLinks(required []string) []string {
	links := []string{}

	query := SplitSkills(required...)
	if len(query) == 0 {
		return links
	}

	wanted := make(map[string]struct{}, len(query))
	for _, skill := range query {
		wanted[skill] = struct{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type candidate struct {
		link    string
		overlap int
	}

	candidates := make([]candidate, 0, len(c.entries))
	for _, entry := range c.entries {
		overlap := 0
		for _, skill := range entry.Skills {
			if _, ok := wanted[skill]; ok {
				overlap++
			}
		}
		if overlap > 0 {
			candidates = append(candidates, candidate{link: entry.Link, overlap: overlap})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].overlap > candidates[j].overlap
	})

	seen := make(map[string]struct{}, c.maxLinks)
	for _, cand := range candidates {
		if len(links) == c.maxLinks {
			break
		}
		if _, ok := seen[cand.link]; ok {
			continue
		}
		seen[cand.link] = struct{}{}
		links = append(links, cand.link)
	}

	return links
}
