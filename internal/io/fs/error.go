package fs

import (
	"errors"
	"io/fs"
)

// SanitizePathError rewrites the path in a path error to be relative to
// baseDir. If the path cannot be made relative, the file name is used
// instead. Errors that are not path errors are returned unchanged.
func SanitizePathError(err error, baseDir string) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &fs.PathError{
			Op:   pathErr.Op,
			Path: ContainedRelPath(baseDir, pathErr.Path),
			Err:  pathErr.Err,
		}
	}
	return err
}
