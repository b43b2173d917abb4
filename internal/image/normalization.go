package image

import "strings"

// NormalizeBaseImageName derives the file-system and resource safe name used
// to key a base image's state from a raw image reference. A leading registry
// host is dropped, path and tag separators become dashes and the result is
// lower-cased with every character outside [a-z0-9.-] replaced by a dash.
//
//	node:22-bookworm-slim      -> node-22-bookworm-slim
//	docker.io/library/node:22  -> library-node-22
//	ghcr.io/owner/image:v1.0   -> owner-image-v1.0
//
// The mapping is not injective: distinct references can normalize to the
// same name, so callers that care must detect collisions themselves.
func NormalizeBaseImageName(ref string) string {
	s := strings.TrimSpace(ref)
	if first, rest, ok := strings.Cut(s, "/"); ok && isRegistryHost(first) {
		s = rest
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

// isRegistryHost reports whether the first path segment of a reference names
// a registry rather than a Docker Hub namespace. This mirrors how the Docker
// CLI disambiguates "foo/bar" from "foo.io/bar".
func isRegistryHost(segment string) bool {
	return strings.ContainsAny(segment, ".:") || segment == "localhost"
}
