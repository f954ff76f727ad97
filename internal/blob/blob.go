// Package blob stores external data: bulk payloads kept outside the document
// dictionary and addressed by "<object uuid>/<name>" keys.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// Driver identifies a Store implementation.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFS     Driver = "fs"
	DriverS3     Driver = "s3"
	DriverSQLite Driver = "sqlite"
)

// ErrNotFound is returned by Get and Delete for a missing key.
var ErrNotFound = types.ErrBlobNotFound

// Store is a flat key/value store for payloads.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Driver() Driver
}

// Key returns the key for an object's named payload.
func Key(objectUUID, name string) string {
	return objectUUID + "/" + name
}

// CleanKey rejects empty, absolute and escaping keys and returns the key in
// canonical slash form.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}
