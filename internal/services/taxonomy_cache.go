package services

import (
	"context"
	"fmt"

	"github.com/kylemichaelreaves/pokemon-tcg-manager/internal/database"
)

type taxonomyJournalEntry struct {
	kind       database.TaxonomyKind
	name       string
	introduced bool
}

// TaxonomyCache is the per-run name to id map over rarities, card types and
// energy types. Names resolved through GetOrCreate that were not loaded at
// start are reported as introduced by the run.
//
// Every addition is journaled so a rolled-back transaction can drop the
// entries it created with Revert; otherwise the cache would hand out ids of
// rows that no longer exist.
type TaxonomyCache struct {
	ids        map[database.TaxonomyKind]map[string]uint
	introduced map[database.TaxonomyKind][]string
	journal    []taxonomyJournalEntry
}

func NewTaxonomyCache() *TaxonomyCache {
	c := &TaxonomyCache{
		ids:        make(map[database.TaxonomyKind]map[string]uint),
		introduced: make(map[database.TaxonomyKind][]string),
	}
	for _, kind := range database.TaxonomyKinds() {
		c.ids[kind] = make(map[string]uint)
	}
	return c
}

// Load replaces the cache contents with the current table rows
func (c *TaxonomyCache) Load(ctx context.Context, q database.Queries) error {
	for _, kind := range database.TaxonomyKinds() {
		ids, err := q.LoadTaxonomy(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to load %s taxonomy: %w", kind, err)
		}
		c.ids[kind] = ids
	}
	c.introduced = make(map[database.TaxonomyKind][]string)
	c.journal = nil
	return nil
}

// Lookup returns the cached id without touching the database
func (c *TaxonomyCache) Lookup(kind database.TaxonomyKind, name string) (uint, bool) {
	id, ok := c.ids[kind][name]
	return id, ok
}

// GetOrCreate resolves name to an id, inserting the row when it is missing.
// Database errors are returned as is.
func (c *TaxonomyCache) GetOrCreate(ctx context.Context, kind database.TaxonomyKind, name string, q database.Queries) (uint, error) {
	if id, ok := c.ids[kind][name]; ok {
		return id, nil
	}

	if err := q.InsertTaxonomy(ctx, kind, name); err != nil {
		return 0, err
	}
	id, err := q.TaxonomyID(ctx, kind, name)
	if err != nil {
		return 0, err
	}

	entry := taxonomyJournalEntry{kind: kind, name: name}
	c.ids[kind][name] = id
	if !c.isIntroduced(kind, name) {
		c.introduced[kind] = append(c.introduced[kind], name)
		entry.introduced = true
	}
	c.journal = append(c.journal, entry)
	return id, nil
}

// Mark returns a position to pass to Revert
func (c *TaxonomyCache) Mark() int {
	return len(c.journal)
}

// Revert forgets every entry added since mark
func (c *TaxonomyCache) Revert(mark int) {
	for i := len(c.journal) - 1; i >= mark; i-- {
		entry := c.journal[i]
		delete(c.ids[entry.kind], entry.name)
		if entry.introduced {
			c.forgetIntroduced(entry.kind, entry.name)
		}
	}
	if mark < len(c.journal) {
		c.journal = c.journal[:mark]
	}
}

// Introduced returns the names of kind added during this run, in order
func (c *TaxonomyCache) Introduced(kind database.TaxonomyKind) []string {
	names := c.introduced[kind]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (c *TaxonomyCache) isIntroduced(kind database.TaxonomyKind, name string) bool {
	for _, n := range c.introduced[kind] {
		if n == name {
			return true
		}
	}
	return false
}

func (c *TaxonomyCache) forgetIntroduced(kind database.TaxonomyKind, name string) {
	names := c.introduced[kind]
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] == name {
			c.introduced[kind] = append(names[:i], names[i+1:]...)
			return
		}
	}
}
