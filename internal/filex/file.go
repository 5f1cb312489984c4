// Package filex holds small filesystem helpers used by the local byte store.
package filex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrIsDirectory = errors.New("path is a directory")

// EnsureDir creates dir (and parents) when missing and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}

// ReadLocalFile returns the bytes of a regular file. Missing paths and
// directories are reported as errors.
func ReadLocalFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("read file: %w", os.ErrNotExist)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("read %s: %w", path, ErrIsDirectory)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}

// CopyFile copies src into dst and returns the number of bytes written.
// dst is created or truncated.
func CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("copy %s: %w", src, ErrIsDirectory)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}

// RemoveIfExists deletes path; a missing file is not an error.
func RemoveIfExists(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
