// Package source opens the files managed images are built from, either from
// a working tree on disk or from a commit in a git repository.
package source

import (
	"errors"
	"io"
)

// ErrNotFound is returned, wrapped, when a requested file does not exist.
var ErrNotFound = errors.New("file not found")

// Source provides read access to files addressed by slash-separated paths
// relative to a source root. Paths that would escape the root are confined
// to it.
type Source interface {
	// Open opens the file at the provided path. If the file does not exist the
	// returned error wraps ErrNotFound.
	Open(path string) (io.ReadCloser, error)
	// String describes the source for log messages.
	String() string
}

// New returns a Source for the provided root. If revision is empty, files
// are read from the working tree; otherwise they are read from the commit
// the revision resolves to in the git repository containing root.
func New(root, revision string) (Source, error) {
	if revision == "" {
		return NewFilesystem(root), nil
	}
	return NewGitRevision(root, revision)
}
