package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeState(t *testing.T) {
	tests := []struct {
		name       string
		existing   map[string]any
		incoming   map[string]any
		preferNew  bool
		assertions func(*testing.T, map[string]any)
	}{
		{
			name: "config updated and runtime preserved",
			existing: map[string]any{
				"name":       "backstage",
				"enrolledAt": "2024-01-01T00:00:00Z",
				"enrollment": map[string]any{
					"registry":   "ghcr.io",
					"repository": "old/backstage",
				},
				"currentDigest":  "sha256:abc123",
				"lastBuilt":      "2024-12-01T00:00:00Z",
				"rebuildHistory": []any{map[string]any{"date": "2024-12-01"}},
			},
			incoming: map[string]any{
				"name":       "backstage",
				"enrolledAt": "2024-12-04T00:00:00Z",
				"enrollment": map[string]any{
					"registry":   "ghcr.io",
					"repository": "new/backstage",
				},
				"baseImages": []any{"node-22-bookworm-slim"},
			},
			preferNew: true,
			assertions: func(t *testing.T, merged map[string]any) {
				require.Equal(t, map[string]any{
					"registry":   "ghcr.io",
					"repository": "new/backstage",
				}, merged["enrollment"])
				require.Equal(t, []any{"node-22-bookworm-slim"}, merged["baseImages"])
				require.Equal(t, "2024-01-01T00:00:00Z", merged["enrolledAt"])
				require.Equal(t, "sha256:abc123", merged["currentDigest"])
				require.Equal(t, "2024-12-01T00:00:00Z", merged["lastBuilt"])
				require.Equal(t, []any{map[string]any{"date": "2024-12-01"}}, merged["rebuildHistory"])
			},
		},
		{
			name:     "runtime fields set when absent from existing",
			existing: map[string]any{"name": "x"},
			incoming: map[string]any{
				"name":       "x",
				"enrolledAt": "2025-01-01T00:00:00Z",
			},
			preferNew: true,
			assertions: func(t *testing.T, merged map[string]any) {
				require.Equal(t, "2025-01-01T00:00:00Z", merged["enrolledAt"])
			},
		},
		{
			name:      "prefer existing only fills gaps",
			existing:  map[string]any{"name": "x", "repo": "old"},
			incoming:  map[string]any{"name": "x", "repo": "new", "extra": 1},
			preferNew: false,
			assertions: func(t *testing.T, merged map[string]any) {
				require.Equal(t, map[string]any{"name": "x", "repo": "old", "extra": 1}, merged)
			},
		},
		{
			name:      "nil existing",
			incoming:  map[string]any{"name": "x"},
			preferNew: true,
			assertions: func(t *testing.T, merged map[string]any) {
				require.Equal(t, map[string]any{"name": "x"}, merged)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertions(t, MergeState(tt.existing, tt.incoming, tt.preferNew))
		})
	}
}

func TestMergeStateDoesNotModifyArguments(t *testing.T) {
	existing := map[string]any{"name": "x", "repo": "old"}
	incoming := map[string]any{"name": "x", "repo": "new"}
	_ = MergeState(existing, incoming, true)
	require.Equal(t, "old", existing["repo"])
	require.Equal(t, "new", incoming["repo"])
}
