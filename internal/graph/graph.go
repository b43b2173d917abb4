// Package graph derives the dependency relation between base images and the
// managed images built from them.
package graph

import (
	"slices"

	"github.com/craigedmunds/eda-mesh/internal/factory"
)

// Edge records that Image is built from Base.
type Edge struct {
	Base  string
	Image string
}

// Graph maps base image names to the images that depend on them. It is
// rebuilt from image states on demand and never persisted.
type Graph struct {
	dependents map[string][]string
	bases      []string
}

// Build derives the Graph from the baseImages lists of the provided image
// states. The result is independent of the order of states.
func Build(states []*factory.ImageState) *Graph {
	g := &Graph{dependents: map[string][]string{}}
	for _, st := range states {
		if st == nil {
			continue
		}
		for _, base := range st.BaseImages {
			deps := g.dependents[base]
			if slices.Contains(deps, st.Name) {
				continue
			}
			if deps == nil {
				g.bases = append(g.bases, base)
			}
			g.dependents[base] = append(deps, st.Name)
		}
	}
	slices.Sort(g.bases)
	for _, deps := range g.dependents {
		slices.Sort(deps)
	}
	return g
}

// Bases returns the names of all base images with at least one dependent,
// sorted.
func (g *Graph) Bases() []string {
	return slices.Clone(g.bases)
}

// Dependents returns the sorted names of the images built from base.
func (g *Graph) Dependents(base string) []string {
	return slices.Clone(g.dependents[base])
}

// Edges returns every base/image pair, ordered by base and then image.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, base := range g.bases {
		for _, img := range g.dependents[base] {
			edges = append(edges, Edge{Base: base, Image: img})
		}
	}
	return edges
}

// Referenced reports whether any image depends on base.
func (g *Graph) Referenced(base string) bool {
	return len(g.dependents[base]) > 0
}
