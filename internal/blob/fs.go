package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mesh-intelligence/docgraph/internal/atomicfile"
)

// FS is a Store keeping one file per key under a root directory.
type FS struct {
	root string
}

// NewFS returns a filesystem store rooted at root, creating it if needed.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("blob root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{root: root}, nil
}

func (s *FS) Driver() Driver { return DriverFS }

// Root returns the directory holding the payloads.
func (s *FS) Root() string { return s.root }

func (s *FS) pathFor(key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Put writes data to the key's file atomically.
func (s *FS) Put(_ context.Context, key string, data []byte) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	return atomicfile.WriteBytes(p, data)
}

// Get reads the key's file.
func (s *FS) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

// Delete removes the key's file.
func (s *FS) Delete(_ context.Context, key string) error {
	p, err := s.pathFor(key)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return err
}

// List walks the root and returns keys starting with prefix, sorted.
func (s *FS) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}
