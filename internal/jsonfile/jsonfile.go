// Package jsonfile keeps a document as a single JSON file and exports the
// flattened object table as JSONL.
package jsonfile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mesh-intelligence/docgraph/internal/atomicfile"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// File is a document sink over one JSON file. Every write replaces the file
// atomically.
type File struct {
	path   string
	indent bool
}

// Option configures a File.
type Option func(*File)

// Indented writes human-readable JSON.
func Indented() Option {
	return func(f *File) { f.indent = true }
}

// New returns a sink writing to path.
func New(path string, opts ...Option) *File {
	f := &File{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// WriteDocument implements dictstore.Sink.
func (f *File) WriteDocument(_ context.Context, doc map[string]any) error {
	return atomicfile.Write(f.path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		if f.indent {
			enc.SetIndent("", "  ")
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		return nil
	})
}

// ReadDocument implements dictstore.Sink. A missing file returns
// types.ErrDocumentNotFound.
func (f *File) ReadDocument(_ context.Context) (map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return doc, nil
}
