// Package file provides a BlobStore over the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store resolves storage locators to files. With a root, locators are
// paths relative to it and may not escape it. Without one, locators are
// absolute paths.
type Store struct {
	root string
}

// NewStore creates a store rooted at root. An empty root accepts absolute paths.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return &Store{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Open returns a reader for the file behind locator.
func (s *Store) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	path, err := s.Resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, locator)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, locator)
	}
	return f, nil
}

// Resolve maps a locator to a filesystem path.
func (s *Store) Resolve(locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", domain.ErrInvalidInput)
	}
	if s.root == "" {
		if !filepath.IsAbs(locator) {
			return "", fmt.Errorf("%w: locator %q must be absolute", domain.ErrInvalidInput, locator)
		}
		return filepath.Clean(locator), nil
	}

	path := filepath.Join(s.root, filepath.FromSlash(locator))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: locator %q escapes the blob root", domain.ErrInvalidInput, locator)
	}
	return path, nil
}

// Locator returns the locator for a filesystem path, the inverse of Resolve.
func (s *Store) Locator(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if s.root == "" {
		return abs, nil
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the blob root", domain.ErrInvalidInput, path)
	}
	return filepath.ToSlash(rel), nil
}
