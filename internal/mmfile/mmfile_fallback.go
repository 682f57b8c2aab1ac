//go:build !unix

package mmfile

import "os"

// Map reads the whole file when mmap is unavailable. The unmap function is
// a no-op.
func Map(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
