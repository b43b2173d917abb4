package source

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Filesystem is a Source backed by a directory on disk.
type Filesystem struct {
	root string
}

// NewFilesystem returns a Source that reads files beneath root.
func NewFilesystem(root string) *Filesystem {
	return &Filesystem{root: root}
}

func (f *Filesystem) Open(path string) (io.ReadCloser, error) {
	absPath, err := securejoin.SecureJoin(f.root, path)
	if err != nil {
		return nil, fmt.Errorf("could not secure join path %q: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	return file, nil
}

func (f *Filesystem) String() string {
	return f.root
}
