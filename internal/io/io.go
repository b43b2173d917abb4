package io

import (
	"fmt"
	"io"
)

// LimitRead reads all of r and closes it. An error is returned if r holds
// more than limit bytes.
func LimitRead(r io.ReadCloser, limit int64) ([]byte, error) {
	defer r.Close()
	// One byte past the limit is enough to tell an oversized input apart.
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("error reading: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("content exceeds limit of %d bytes", limit)
	}
	return data, nil
}
