// Package assets stores item images as files on local disk.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultExt is used when a blob is saved without a usable extension.
const DefaultExt = "jpg"

// Local persists blobs under a base directory with generated names.
type Local struct {
	dir string
}

// NewLocal ensures dir exists and returns a store rooted there.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "images"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving images directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating images directory: %w", err)
	}
	return &Local{dir: abs}, nil
}

// Dir returns the absolute base directory.
func (s *Local) Dir() string {
	return s.dir
}

// Save copies r into a new file named item_<uuid>.<ext> and returns its
// absolute path. The name never collides with an existing blob.
func (s *Local) Save(r io.Reader, ext string) (string, error) {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = DefaultExt
	}
	path := filepath.Join(s.dir, "item_"+uuid.NewString()+"."+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing image file: %w", err)
	}
	return path, nil
}

// Open returns a reader for a stored blob.
func (s *Local) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image file: %w", err)
	}
	return f, nil
}

// Exists reports whether path refers to an existing regular file.
func (s *Local) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes a stored blob if present.
func (s *Local) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting image file: %w", err)
	}
	return nil
}
