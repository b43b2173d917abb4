// Package state reads, merges and writes the image factory's persisted
// state: images.yaml and the per-image files under state/images and
// state/base-images.
package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/craigedmunds/eda-mesh/internal/factory"
	libfs "github.com/craigedmunds/eda-mesh/internal/io/fs"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/yaml"
)

const (
	ImagesFile    = "images.yaml"
	ImagesDir     = "state/images"
	BaseImagesDir = "state/base-images"

	statePattern   = "*.yaml"
	examplePattern = "*.example.yaml"
	fileMode       = 0o644
)

// Store provides access to the state rooted at an image factory directory.
// It performs plain per-file writes; concurrent invocations against the same
// directory are not coordinated.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at the provided image factory directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the image factory directory.
func (s *Store) Dir() string {
	return s.dir
}

// ImagesFilePath returns the path of images.yaml.
func (s *Store) ImagesFilePath() string {
	return filepath.Join(s.dir, ImagesFile)
}

// ImagesDirPath returns the directory holding image states.
func (s *Store) ImagesDirPath() string {
	return filepath.Join(s.dir, filepath.FromSlash(ImagesDir))
}

// BaseImagesDirPath returns the directory holding base image states.
func (s *Store) BaseImagesDirPath() string {
	return filepath.Join(s.dir, filepath.FromSlash(BaseImagesDir))
}

// ImageStatePath returns the path of the named image's state file.
func (s *Store) ImageStatePath(name string) string {
	return filepath.Join(s.ImagesDirPath(), name+".yaml")
}

// BaseImageStatePath returns the path of the named base image's state file.
func (s *Store) BaseImageStatePath(name string) string {
	return filepath.Join(s.BaseImagesDirPath(), name+".yaml")
}

// LoadImagesYAML reads the sequence of image declarations from images.yaml.
// A missing or unparsable file yields a *ConfigError. Sequence items that
// are not mappings are skipped with a warning.
func (s *Store) LoadImagesYAML(ctx context.Context) ([]map[string]any, error) {
	logger := logging.LoggerFromContext(ctx)
	path := s.ImagesFilePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	doc, err := yaml.Unmarshal(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if doc == nil {
		return []map[string]any{}, nil
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, &ConfigError{
			Path: path,
			Err:  fmt.Errorf("expected a sequence of image declarations, got %T", doc),
		}
	}
	entries := make([]map[string]any, 0, len(items))
	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			logger.Warn("skipping image declaration that is not a mapping", "index", i)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LoadDir reads every *.yaml file directly under dir, except *.example.yaml
// files, in lexical order of file name. A missing directory yields no
// entries. Files that cannot be parsed are skipped and reported as
// *StateLoadError warnings.
func (s *Store) LoadDir(ctx context.Context, dir string) ([]map[string]any, error) {
	logger := logging.LoggerFromContext(ctx)
	paths, err := s.statePaths(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(paths))
	for _, path := range paths {
		entry, err := s.ReadStateFile(path)
		if err != nil {
			var loadErr *StateLoadError
			if errors.As(err, &loadErr) {
				logger.Warn("skipping malformed state file", "path", s.rel(path), "error", loadErr.Err)
				continue
			}
			return nil, err
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// statePaths lists the state files in dir.
func (s *Store) statePaths(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading state directory %s: %w", dir, err)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), statePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("error listing state directory %s: %w", dir, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if isExample, _ := doublestar.Match(examplePattern, m); isExample {
			continue
		}
		paths = append(paths, filepath.Join(dir, m))
	}
	slices.Sort(paths)
	return paths, nil
}

// ReadStateFile reads a single state file as a generic mapping. It returns
// nil and no error if the file does not exist, and a *StateLoadError if it
// exists but is not a YAML mapping.
func (s *Store) ReadStateFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading state file: %w", libfs.SanitizePathError(err, s.dir))
	}
	m, err := yaml.UnmarshalMap(data)
	if err != nil {
		return nil, &StateLoadError{Path: path, Err: err}
	}
	return m, nil
}

// ReadImageState returns the persisted state of the named image, or nil if
// there is none.
func (s *Store) ReadImageState(name string) (*factory.ImageState, error) {
	path := s.ImageStatePath(name)
	m, err := s.ReadStateFile(path)
	if err != nil || m == nil {
		return nil, err
	}
	st := &factory.ImageState{}
	if err = yaml.Convert(m, st); err != nil {
		return nil, &StateLoadError{Path: path, Err: err}
	}
	return st, nil
}

// ReadBaseImageState returns the persisted state of the named base image, or
// nil if there is none.
func (s *Store) ReadBaseImageState(name string) (*factory.BaseImageState, error) {
	path := s.BaseImageStatePath(name)
	m, err := s.ReadStateFile(path)
	if err != nil || m == nil {
		return nil, err
	}
	st := &factory.BaseImageState{}
	if err = yaml.Convert(m, st); err != nil {
		return nil, &StateLoadError{Path: path, Err: err}
	}
	return st, nil
}

// WriteImageState persists the provided image state.
func (s *Store) WriteImageState(st *factory.ImageState) error {
	if err := factory.ValidateName(st.Name); err != nil {
		return err
	}
	return s.writeStateFile(s.ImageStatePath(st.Name), st)
}

// WriteBaseImageState persists the provided base image state.
func (s *Store) WriteBaseImageState(st *factory.BaseImageState) error {
	if err := factory.ValidateName(st.Name); err != nil {
		return err
	}
	return s.writeStateFile(s.BaseImageStatePath(st.Name), st)
}

func (s *Store) writeStateFile(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err = libfs.WriteFileAtomic(path, data, fileMode); err != nil {
		return fmt.Errorf("error writing state file %s: %w", s.rel(path), err)
	}
	return nil
}

// ListImageStates returns every readable image state, ordered by name.
// Malformed files are skipped with a warning.
func (s *Store) ListImageStates(ctx context.Context) ([]*factory.ImageState, error) {
	entries, err := s.LoadDir(ctx, s.ImagesDirPath())
	if err != nil {
		return nil, err
	}
	return convertEntries[factory.ImageState](ctx, entries), nil
}

// ListBaseImageStates returns every readable base image state, ordered by
// name. Malformed files are skipped with a warning.
func (s *Store) ListBaseImageStates(ctx context.Context) ([]*factory.BaseImageState, error) {
	entries, err := s.LoadDir(ctx, s.BaseImagesDirPath())
	if err != nil {
		return nil, err
	}
	return convertEntries[factory.BaseImageState](ctx, entries), nil
}

func convertEntries[T any](ctx context.Context, entries []map[string]any) []*T {
	logger := logging.LoggerFromContext(ctx)
	out := make([]*T, 0, len(entries))
	for _, e := range entries {
		v := new(T)
		if err := yaml.Convert(e, v); err != nil {
			logger.Warn("skipping state entry with unexpected shape", "name", e[factory.KeyName], "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// DeleteImageState removes the named image's state file.
func (s *Store) DeleteImageState(name string) error {
	return s.remove(s.ImageStatePath(name))
}

// DeleteBaseImageState removes the named base image's state file.
func (s *Store) DeleteBaseImageState(name string) error {
	return s.remove(s.BaseImageStatePath(name))
}

func (s *Store) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing state file: %w", libfs.SanitizePathError(err, s.dir))
	}
	return nil
}

// MergeImages builds the Catalog of every known image. Entries from
// images.yaml are merged first and take precedence. Entries from
// state/images and then state/base-images only fill keys that are still
// absent. Entries without a name are skipped with a warning.
func (s *Store) MergeImages(ctx context.Context) (*Catalog, error) {
	logger := logging.LoggerFromContext(ctx)
	declared, err := s.LoadImagesYAML(ctx)
	if err != nil {
		return nil, err
	}
	images, err := s.LoadDir(ctx, s.ImagesDirPath())
	if err != nil {
		return nil, err
	}
	baseImages, err := s.LoadDir(ctx, s.BaseImagesDirPath())
	if err != nil {
		return nil, err
	}

	catalog := newCatalog()
	seen := map[string]struct{}{}
	for i, entry := range declared {
		if name, _ := entry[factory.KeyName].(string); name != "" {
			if _, dup := seen[name]; dup {
				logger.Warn("image declared more than once; later declaration wins", "name", name)
			}
			seen[name] = struct{}{}
		}
		if !catalog.add(OriginImagesYAML, entry, true) {
			logger.Warn("skipping image declaration without a name", "index", i)
		}
	}
	for _, src := range []struct {
		origin  Origin
		entries []map[string]any
	}{
		{OriginImages, images},
		{OriginBaseImages, baseImages},
	} {
		for _, entry := range src.entries {
			if !catalog.add(src.origin, entry, false) {
				logger.Warn("skipping state entry without a name", "origin", string(src.origin))
			}
		}
	}
	return catalog, nil
}

func (s *Store) rel(path string) string {
	return filepath.ToSlash(libfs.ContainedRelPath(s.dir, path))
}
