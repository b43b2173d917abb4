package fs

import (
	"path/filepath"
	"strings"
)

// ContainedRelPath returns a path relative to the base path, or the file name
// if the path cannot be made relative without escaping base.
func ContainedRelPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}
