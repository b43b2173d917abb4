package reconcile

import (
	"fmt"
	"strings"
)

// DockerfileMissingError reports that a managed image's Dockerfile could not
// be found. The image is reconciled with no base images.
type DockerfileMissingError struct {
	Image string
	Path  string
	Err   error
}

func (e *DockerfileMissingError) Error() string {
	return fmt.Sprintf("Dockerfile %s for image %q not found: %v", e.Path, e.Image, e.Err)
}

func (e *DockerfileMissingError) Unwrap() error {
	return e.Err
}

// Collision records distinct image references that normalize to the same
// base image name.
type Collision struct {
	Name       string
	References []string
}

// NameCollisionError aggregates every Collision found in a pass.
type NameCollisionError struct {
	Collisions []Collision
}

func (e *NameCollisionError) Error() string {
	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("%s <- [%s]", c.Name, strings.Join(c.References, ", ")))
	}
	return fmt.Sprintf(
		"distinct base image references normalize to the same name: %s",
		strings.Join(parts, "; "),
	)
}

// collisionTracker remembers, per normalized name, the canonical forms of
// every reference that produced it.
type collisionTracker struct {
	order []string
	refs  map[string][]string
}

func newCollisionTracker() *collisionTracker {
	return &collisionTracker{refs: map[string][]string{}}
}

// observe records ref under name and reports whether this introduced a new
// collision.
func (c *collisionTracker) observe(name, ref string) bool {
	refs, seen := c.refs[name]
	if !seen {
		c.order = append(c.order, name)
	}
	for _, r := range refs {
		if r == ref {
			return false
		}
	}
	c.refs[name] = append(refs, ref)
	return len(refs) > 0
}

func (c *collisionTracker) collisions() []Collision {
	var out []Collision
	for _, name := range c.order {
		if refs := c.refs[name]; len(refs) > 1 {
			out = append(out, Collision{Name: name, References: refs})
		}
	}
	return out
}
