package image

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
)

// DockerHubRegistry is the canonical host reported for every Docker Hub
// reference, whatever alias it was written with.
const DockerHubRegistry = "docker.io"

const defaultTag = "latest"

// Reference is the decomposition of an image reference found in a FROM
// instruction.
type Reference struct {
	// Registry is the registry host, e.g. "docker.io" or "ghcr.io:443".
	Registry string
	// Repository is the repository path within the registry. Official Docker
	// Hub images carry the implicit "library/" prefix.
	Repository string
	// Tag is the image tag. It defaults to "latest" unless the reference is
	// pinned by digest only, in which case it is empty.
	Tag string
	// Digest is the digest the reference is pinned to, if any.
	Digest string
}

// ParseReference splits an image reference into registry, repository, tag
// and digest. Docker Hub hosts (docker.io, index.docker.io and
// registry-1.docker.io) are all reported as docker.io. A port on the
// registry host is never mistaken for a tag.
func ParseReference(ref string) (Reference, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Reference{}, fmt.Errorf("empty image reference")
	}
	base, digest, pinned := strings.Cut(ref, "@")

	tag, err := name.NewTag(base, name.WeakValidation)
	if err != nil {
		return Reference{}, fmt.Errorf("error parsing image reference %q: %w", ref, err)
	}
	r := Reference{
		Registry:   registryHost(tag.Context().RegistryStr()),
		Repository: tag.Context().RepositoryStr(),
		Tag:        tag.TagStr(),
	}

	if pinned {
		d, err := name.NewDigest(tag.Context().Name()+"@"+digest, name.WeakValidation)
		if err != nil {
			return Reference{}, fmt.Errorf("error parsing image reference %q: %w", ref, err)
		}
		r.Digest = d.DigestStr()
		if !hasExplicitTag(base) {
			r.Tag = ""
		}
	}
	return r, nil
}

// RepoURL returns registry/repository, the form used to subscribe to the
// image.
func (r Reference) RepoURL() string {
	return r.Registry + "/" + r.Repository
}

// AllowTags returns an anchored regular expression matching only the
// reference's own tag, or an empty string if the reference has no tag.
func (r Reference) AllowTags() string {
	if r.Tag == "" {
		return ""
	}
	return "^" + regexp.QuoteMeta(r.Tag) + "$"
}

// String reassembles the fully qualified reference.
func (r Reference) String() string {
	s := r.RepoURL()
	if r.Tag != "" {
		s += ":" + r.Tag
	}
	if r.Digest != "" {
		s += "@" + r.Digest
	}
	return s
}

func registryHost(reg string) string {
	// For all images from Docker Hub, reg will be one of docker.io,
	// index.docker.io, or registry-1.docker.io after parsing.
	switch reg {
	case name.DefaultRegistry, "registry-1.docker.io", DockerHubRegistry:
		return DockerHubRegistry
	}
	return reg
}

func hasExplicitTag(base string) bool {
	lastSegment := base[strings.LastIndex(base, "/")+1:]
	return strings.Contains(lastSegment, ":")
}
