package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/docgraph/internal/blob"
	"github.com/mesh-intelligence/docgraph/internal/dictstore"
	"github.com/mesh-intelligence/docgraph/internal/jsonfile"
	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/model"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
	"github.com/mesh-intelligence/docgraph/pkg/sqlite"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// session is one opened document and the storage behind it.
type session struct {
	doc     *model.Document
	backend *sqlite.Backend
}

// open attaches the configured backend and opens the document it holds,
// creating an empty project on first use. The caller must call close.
func (a *app) open(ctx context.Context) (*session, error) {
	s := &session{}
	var sink dictstore.Sink
	switch a.cfg.Backend {
	case types.BackendSQLite:
		s.backend = sqlite.NewBackend(sqlite.WithLogger(a.logger))
		if err := s.backend.Attach(a.cfg); err != nil {
			return nil, sysError("attach backend", err)
		}
		sink = s.backend
	case types.BackendJSON:
		if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
			return nil, sysError("create data directory", err)
		}
		sink = jsonfile.New(filepath.Join(a.cfg.DataDir, paths.DocumentFileName), jsonfile.Indented())
	default:
		sink = dictstore.NewMemorySink()
	}

	blobs, err := a.openBlobs(ctx, s.backend)
	if err != nil {
		s.detach()
		return nil, sysError("open external data store", err)
	}

	doc, err := model.Open(ctx, sink,
		model.WithLogger(a.logger),
		model.WithMetrics(a.metrics),
		model.WithBlobs(blobs),
		model.WithStoreOptions(dictstore.WithConfig(a.cfg)))
	if err != nil {
		s.detach()
		return nil, sysError("open document", err)
	}
	s.doc = doc
	return s, nil
}

// openBlobs builds the external data store for the configured driver. The
// backend driver uses the SQLite database when there is one and a directory
// beside the document otherwise.
func (a *app) openBlobs(ctx context.Context, backend *sqlite.Backend) (blob.Store, error) {
	switch a.cfg.Blob.Driver {
	case types.BlobDriverMemory:
		return blob.NewMemory(), nil
	case types.BlobDriverS3:
		return blob.NewS3(ctx, a.cfg.Blob.S3)
	case types.BlobDriverFS:
		dir := a.cfg.Blob.Dir
		if dir == "" {
			dir = paths.BlobDir(a.cfg.DataDir)
		}
		return blob.NewFS(dir)
	}
	switch {
	case backend != nil:
		return backend, nil
	case a.cfg.Backend == types.BackendJSON:
		return blob.NewFS(paths.BlobDir(a.cfg.DataDir))
	default:
		return blob.NewMemory(), nil
	}
}

// close writes pending changes, closes the document and detaches the backend.
func (s *session) close(ctx context.Context) error {
	var err error
	if s.doc != nil {
		err = s.doc.Close(ctx)
	}
	return errors.Join(err, s.detach())
}

func (s *session) detach() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Detach()
}

// withDocument opens the document, runs fn and closes it again. Errors from
// fn are returned as is; storage errors become system errors. Inside an edit
// script fn runs against the script's document.
func (a *app) withDocument(ctx context.Context, fn func(*model.Document) error) error {
	if a.active != nil {
		return fn(a.active)
	}
	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	fnErr := fn(s.doc)
	if err := s.close(ctx); err != nil && fnErr == nil {
		return sysError("close document", err)
	}
	return fnErr
}

// parseSpecifier reads a UUID argument.
func parseSpecifier(kind, arg string) (persistence.Specifier, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return persistence.Specifier{}, userError("invalid %s id %q", kind, arg)
	}
	return persistence.NewSpecifier(id), nil
}

// displayByID resolves a display item argument.
func displayByID(doc *model.Document, arg string) (*model.DisplayItem, error) {
	spec, err := parseSpecifier("display", arg)
	if err != nil {
		return nil, err
	}
	d := doc.Project.DisplayItemBySpecifier(spec)
	if d == nil {
		return nil, userError("%v: %s", model.ErrDisplayItemNotFound, arg)
	}
	return d, nil
}

func describe(p persistence.Persistent) string {
	obj := p.PersistentObject()
	return fmt.Sprintf("%s %s", obj.Type(), obj.UUID())
}
