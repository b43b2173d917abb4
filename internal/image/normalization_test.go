package image

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeBaseImageName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"node:22-bookworm-slim", "node-22-bookworm-slim"},
		{"docker.io/library/node:22", "library-node-22"},
		{"ghcr.io/owner/image:v1.0", "owner-image-v1.0"},
		{"node:18-alpine", "node-18-alpine"},
		{"nginx", "nginx"},
		{"library/nginx:alpine", "library-nginx-alpine"},
		{"localhost/tools/builder:dev", "tools-builder-dev"},
		{"localhost:5000/tools/builder:dev", "tools-builder-dev"},
		{"GCR.IO/Distroless/Python3-Debian12:Latest", "distroless-python3-debian12-latest"},
		{"alpine@sha256:abc123", "alpine-sha256-abc123"},
		{"  node:22  ", "node-22"},
		{"repo/image_with_underscores:v1", "repo-image-with-underscores-v1"},
	}

	for _, tc := range tests {
		got := NormalizeBaseImageName(tc.input)
		require.Equal(t, tc.expected, got, "input: %s", tc.input)
	}
}

func TestNormalizeBaseImageNameCollisions(t *testing.T) {
	// Different references can map to the same name.
	require.Equal(t,
		NormalizeBaseImageName("foo/bar:baz"),
		NormalizeBaseImageName("foo:bar-baz"),
	)
}
