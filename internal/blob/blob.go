// Package blob stores uploaded artifacts by their stored filename. The local
// filesystem backend lives here; the S3 backend is in package s3storage.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that are not a plain basename.
var ErrInvalidName = errors.New("invalid stored name")

// ErrNotExist is returned when no artifact has the requested name.
var ErrNotExist = errors.New("artifact does not exist")

// Store persists artifact bytes addressed by name.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// ValidName reports whether name can address an artifact: non-empty, no path
// separators, no parent references.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}

// Dir stores artifacts as files below a single upload root.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a Dir backed by it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the upload directory.
func (d *Dir) Root() string { return d.root }

// Put writes r to a temporary file and renames it into place, so a reader
// never observes a half-written artifact.
func (d *Dir) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	tmp, err := os.CreateTemp(d.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.root, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Open implements Store.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// Delete implements Store. Deleting a missing artifact is not an error.
func (d *Dir) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(d.root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
