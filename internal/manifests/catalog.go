package manifests

import (
	"fmt"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/state"
	"github.com/craigedmunds/eda-mesh/internal/yaml"
)

const defaultRegistry = "ghcr.io"

// catalogImage is the view of one catalog entry that resources are
// generated from. Persisted state wins over the declaration, which only
// fills in what no state has recorded yet.
type catalogImage struct {
	name  string
	state factory.ImageState
	decl  *factory.ImageDeclaration
}

func newCatalogImage(entry *state.CatalogEntry) (*catalogImage, error) {
	img := &catalogImage{name: entry.Name}
	if err := yaml.Convert(entry.Merged, &img.state); err != nil {
		return nil, fmt.Errorf("error decoding entry %q: %w", entry.Name, err)
	}
	if entry.Declared != nil {
		decl, err := factory.DecodeDeclaration(entry.Declared)
		if err != nil {
			return nil, err
		}
		img.decl = &decl
	}
	return img, nil
}

// source returns the image's source, or nil if it is not a managed image.
func (c *catalogImage) source() *factory.Source {
	if c.state.IsManaged() {
		return c.state.Enrollment.Source
	}
	if c.decl != nil && c.decl.IsManaged() {
		return c.decl.Source
	}
	return nil
}

func (c *catalogImage) managed() bool {
	return c.source() != nil
}

// repoURL is the image's registry/repository, used by managed images.
func (c *catalogImage) repoURL() string {
	registry := c.state.Enrollment.Registry
	repository := c.state.Enrollment.Repository
	if c.decl != nil {
		if registry == "" {
			registry = c.decl.Registry
		}
		if repository == "" {
			repository = c.decl.Repository
		}
	}
	if registry == "" {
		registry = defaultRegistry
	}
	return registry + "/" + repository
}

func (c *catalogImage) currentVersion() string {
	if c.state.CurrentVersion != "" {
		return c.state.CurrentVersion
	}
	if c.decl != nil {
		return c.decl.CurrentVersion
	}
	return ""
}

// warehouse returns the subscription of a base or external image.
func (c *catalogImage) warehouse() factory.Warehouse {
	wh := factory.Warehouse{
		RepoURL:                c.state.RepoURL,
		AllowTags:              c.state.AllowTags,
		ImageSelectionStrategy: c.state.ImageSelectionStrategy,
	}
	if c.decl != nil && c.decl.Warehouse != nil {
		if wh.RepoURL == "" {
			wh.RepoURL = c.decl.Warehouse.RepoURL
		}
		if wh.AllowTags == "" {
			wh.AllowTags = c.decl.Warehouse.AllowTags
		}
		if wh.ImageSelectionStrategy == "" {
			wh.ImageSelectionStrategy = c.decl.Warehouse.ImageSelectionStrategy
		}
	}
	if wh.ImageSelectionStrategy == "" || !wh.ImageSelectionStrategy.Valid() {
		wh.ImageSelectionStrategy = factory.SelectionStrategyLexical
	}
	return wh
}
