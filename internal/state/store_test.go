package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	"github.com/craigedmunds/eda-mesh/internal/logging"
)

func testContext() context.Context {
	return logging.ContextWithLogger(context.Background(), logging.NewDiscardLogger())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestStoreLoadImagesYAML(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*testing.T, string)
		assertions func(*testing.T, []map[string]any, error)
	}{
		{
			name:  "missing",
			setup: func(*testing.T, string) {},
			assertions: func(t *testing.T, _ []map[string]any, err error) {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
				require.ErrorIs(t, err, os.ErrNotExist)
				require.Contains(t, err.Error(), ImagesFile)
			},
		},
		{
			name: "unparsable",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ImagesFile), "- name: [oops\n")
			},
			assertions: func(t *testing.T, _ []map[string]any, err error) {
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
			},
		},
		{
			name: "not a sequence",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ImagesFile), "name: backstage\n")
			},
			assertions: func(t *testing.T, _ []map[string]any, err error) {
				require.ErrorContains(t, err, "expected a sequence")
			},
		},
		{
			name: "empty",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ImagesFile), "")
			},
			assertions: func(t *testing.T, entries []map[string]any, err error) {
				require.NoError(t, err)
				require.Empty(t, entries)
			},
		},
		{
			name: "non-mapping items skipped",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, ImagesFile), "- name: a\n- just-a-string\n- name: b\n")
			},
			assertions: func(t *testing.T, entries []map[string]any, err error) {
				require.NoError(t, err)
				require.Len(t, entries, 2)
				require.Equal(t, "a", entries[0]["name"])
				require.Equal(t, "b", entries[1]["name"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			entries, err := NewStore(dir).LoadImagesYAML(testContext())
			tt.assertions(t, entries, err)
		})
	}
}

func TestStoreLoadDir(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	imagesDir := s.ImagesDirPath()

	entries, err := s.LoadDir(testContext(), imagesDir)
	require.NoError(t, err)
	require.Empty(t, entries)

	writeFile(t, filepath.Join(imagesDir, "b.yaml"), "name: b\n")
	writeFile(t, filepath.Join(imagesDir, "a.yaml"), "name: a\n")
	writeFile(t, filepath.Join(imagesDir, "template.example.yaml"), "name: template\n")
	writeFile(t, filepath.Join(imagesDir, "broken.yaml"), "name: [\n")
	writeFile(t, filepath.Join(imagesDir, "notes.txt"), "name: notes\n")
	writeFile(t, filepath.Join(imagesDir, "nested", "c.yaml"), "name: c\n")

	entries, err = s.LoadDir(testContext(), imagesDir)
	require.NoError(t, err)
	require.Equal(t, []map[string]any{{"name": "a"}, {"name": "b"}}, entries)
}

func TestStoreReadStateFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	m, err := s.ReadStateFile(s.ImageStatePath("missing"))
	require.NoError(t, err)
	require.Nil(t, m)

	writeFile(t, s.ImageStatePath("broken"), "- not\n- a mapping\n")
	_, err = s.ReadStateFile(s.ImageStatePath("broken"))
	var loadErr *StateLoadError
	require.True(t, errors.As(err, &loadErr))
	require.Equal(t, s.ImageStatePath("broken"), loadErr.Path)

	st, err := s.ReadImageState("broken")
	require.ErrorAs(t, err, &loadErr)
	require.Nil(t, st)
}

func TestStoreWriteAndReadImageState(t *testing.T) {
	s := NewStore(t.TempDir())
	autoRebuild := true
	st := &factory.ImageState{
		Name:       "backstage",
		EnrolledAt: "2024-01-01T00:00:00Z",
		Enrollment: factory.Enrollment{
			Registry:   "ghcr.io",
			Repository: "craigedmunds/backstage",
			Source: &factory.Source{
				Provider:   factory.ProviderGitHub,
				Repo:       "craigedmunds/eda-mesh",
				Branch:     "main",
				Dockerfile: "apps/backstage/Dockerfile",
				Workflow:   "backstage.yml",
			},
			AutoRebuild: &autoRebuild,
		},
		DiscoveryStatus: factory.DiscoveryStatusPending,
		BaseImages:      []string{"node-22-bookworm-slim"},
		Extra: map[string]any{
			"rebuildHistory": []any{map[string]any{"date": "2024-11-01"}},
		},
	}
	require.NoError(t, s.WriteImageState(st))

	data, err := os.ReadFile(s.ImageStatePath("backstage"))
	require.NoError(t, err)
	assert.Equal(t, `name: backstage
enrolledAt: "2024-01-01T00:00:00Z"
enrollment:
  registry: ghcr.io
  repository: craigedmunds/backstage
  source:
    provider: github
    repo: craigedmunds/eda-mesh
    branch: main
    dockerfile: apps/backstage/Dockerfile
    workflow: backstage.yml
  autoRebuild: true
discoveryStatus: pending
baseImages:
  - node-22-bookworm-slim
rebuildHistory:
  - date: "2024-11-01"
`, string(data))

	got, err := s.ReadImageState("backstage")
	require.NoError(t, err)
	require.Equal(t, st, got)

	missing, err := s.ReadImageState("nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestStoreWriteRejectsUnsafeNames(t *testing.T) {
	s := NewStore(t.TempDir())
	require.Error(t, s.WriteImageState(&factory.ImageState{Name: "../escape"}))
	require.Error(t, s.WriteBaseImageState(&factory.BaseImageState{Name: ""}))
}

func TestStoreMergeImages(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	writeFile(t, s.ImagesFilePath(), `- name: x
  repo: new
- repo: nameless
- name: y
  repo: declared
`)
	writeFile(t, s.ImageStatePath("x"), "name: x\nrepo: old\nextra: 1\n")
	writeFile(t, s.ImageStatePath("orphan"), "name: orphan\n")
	writeFile(t, s.BaseImageStatePath("node-22"), "name: node-22\nrepoURL: docker.io/library/node\n")
	writeFile(t, s.BaseImageStatePath("y"), "name: y\nrepo: from-base\nfill: yes-please\n")

	catalog, err := s.MergeImages(testContext())
	require.NoError(t, err)
	require.Equal(t, 4, catalog.Len())

	x, ok := catalog.Get("x")
	require.True(t, ok)
	require.Equal(t, map[string]any{"name": "x", "repo": "new", "extra": 1}, x.Merged)
	require.Equal(t, map[string]any{"name": "x", "repo": "new"}, x.Declared)
	require.Equal(t, OriginImagesYAML, x.Origin)

	y, ok := catalog.Get("y")
	require.True(t, ok)
	require.Equal(t, "declared", y.Merged["repo"])
	require.Equal(t, "yes-please", y.Merged["fill"])

	var names []string
	for _, e := range catalog.Entries() {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"x", "y", "orphan", "node-22"}, names)

	declared := catalog.Declared()
	require.Len(t, declared, 2)
	require.Equal(t, []string{"orphan"}, catalog.Orphans())
}

func TestStoreMergeImagesMissingConfig(t *testing.T) {
	_, err := NewStore(t.TempDir()).MergeImages(testContext())
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.WriteBaseImageState(&factory.BaseImageState{Name: "node-22"}))
	require.NoError(t, s.DeleteBaseImageState("node-22"))
	_, err := os.Stat(s.BaseImageStatePath("node-22"))
	require.ErrorIs(t, err, os.ErrNotExist)
	// Deleting again is not an error.
	require.NoError(t, s.DeleteBaseImageState("node-22"))
	require.NoError(t, s.DeleteImageState("never-existed"))
}
