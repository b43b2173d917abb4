package state

import (
	"maps"

	"github.com/craigedmunds/eda-mesh/internal/factory"
)

// Origin identifies where a catalog entry was first seen.
type Origin string

const (
	OriginImagesYAML Origin = "images.yaml"
	OriginImages     Origin = "state/images"
	OriginBaseImages Origin = "state/base-images"
)

// CatalogEntry is one merged entry of a Catalog.
type CatalogEntry struct {
	Name string
	// Origin is where the entry was first seen. Entries first seen in
	// images.yaml are declared; all others are only known from state.
	Origin Origin
	// Declared is the entry exactly as written in images.yaml, or nil if the
	// name is not declared there.
	Declared map[string]any
	// Merged is the entry after merging all sources.
	Merged map[string]any
}

// Catalog is the name-keyed merge of images.yaml and both state
// directories. Entries keep the order in which their names were first seen.
type Catalog struct {
	entries []*CatalogEntry
	byName  map[string]*CatalogEntry
}

func newCatalog() *Catalog {
	return &Catalog{byName: map[string]*CatalogEntry{}}
}

// add merges entry into the catalog. Entries without a string name are
// ignored and reported as such.
func (c *Catalog) add(origin Origin, entry map[string]any, preferIncoming bool) bool {
	name, _ := entry[factory.KeyName].(string)
	if name == "" {
		return false
	}
	existing, ok := c.byName[name]
	if !ok {
		existing = &CatalogEntry{
			Name:   name,
			Origin: origin,
			Merged: map[string]any{},
		}
		c.byName[name] = existing
		c.entries = append(c.entries, existing)
	}
	if origin == OriginImagesYAML {
		if existing.Declared == nil {
			existing.Declared = maps.Clone(entry)
		} else {
			mergeEntry(existing.Declared, entry, true)
		}
	}
	mergeEntry(existing.Merged, entry, preferIncoming)
	return true
}

// Entries returns all entries in first-seen order.
func (c *Catalog) Entries() []*CatalogEntry {
	return c.entries
}

// Get returns the entry with the given name, if any.
func (c *Catalog) Get(name string) (*CatalogEntry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Declared returns the entries declared in images.yaml, in declaration
// order.
func (c *Catalog) Declared() []*CatalogEntry {
	var out []*CatalogEntry
	for _, e := range c.entries {
		if e.Declared != nil {
			out = append(out, e)
		}
	}
	return out
}

// Orphans returns the names of entries found only in state/images. Base
// image entries are never declared and so are not reported.
func (c *Catalog) Orphans() []string {
	var out []string
	for _, e := range c.entries {
		if e.Declared == nil && e.Origin == OriginImages {
			out = append(out, e.Name)
		}
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
