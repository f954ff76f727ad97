// Package sqlite provides the public API for the SQLite document backend.
// It exposes the factory for creating backends while keeping implementation
// details internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/docgraph/internal/sqlite"
)

// Backend stores one document per slot and its external data in a SQLite
// database. It serves as both a document sink and a blob store.
type Backend = sqlite.Backend

// Option configures a Backend.
type Option = sqlite.Option

// DefaultDocumentID is the slot used when none is given.
const DefaultDocumentID = sqlite.DefaultDocumentID

// WithDocumentID selects the slot the backend reads and writes.
func WithDocumentID(id string) Option { return sqlite.WithDocumentID(id) }

// WithLogger sets the backend logger.
func WithLogger(logger *slog.Logger) Option { return sqlite.WithLogger(logger) }

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".docgraph-data",
//	})
//	defer backend.Detach()
//	doc, err := model.Open(ctx, backend, model.WithBlobs(backend))
func NewBackend(opts ...Option) *Backend {
	return sqlite.NewBackend(opts...)
}
