package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/docgraph/internal/blob"
	"github.com/mesh-intelligence/docgraph/internal/dictstore"
	"github.com/mesh-intelligence/docgraph/internal/metrics"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
	"github.com/mesh-intelligence/docgraph/pkg/undo"
)

// ErrNotAProject is returned when a stored document's root is not a project.
var ErrNotAProject = errors.New("stored document is not a project")

// Document ties a project to its context, storage and undo history.
type Document struct {
	Project *Project
	Context *persistence.Context
	Store   *dictstore.Store
	Undo    *undo.Stack

	logger *slog.Logger
}

// Option configures New and Open.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	blobs     blob.Store
	storeOpts []dictstore.Option
}

// WithLogger sets the logger shared by the context, store and undo stack.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records registrations, flushes and undo activity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBlobs sets where external data is kept. The default is in memory.
func WithBlobs(store blob.Store) Option {
	return func(o *options) { o.blobs = store }
}

// WithStoreOptions passes options through to the dictionary store.
func WithStoreOptions(opts ...dictstore.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.blobs == nil {
		o.blobs = blob.NewMemory()
	}
	return o
}

func (o *options) build(sink dictstore.Sink) *Document {
	return &Document{
		Project: NewProject(),
		Context: persistence.NewContext(persistence.WithLogger(o.logger), persistence.WithMetrics(o.metrics)),
		Store: dictstore.New(sink, o.blobs, append([]dictstore.Option{
			dictstore.WithLogger(o.logger),
			dictstore.WithMetrics(o.metrics),
		}, o.storeOpts...)...),
		Undo:   undo.NewStack(undo.WithLogger(o.logger), undo.WithMetrics(o.metrics)),
		logger: o.logger,
	}
}

// New returns an empty document kept only in memory.
func New(opts ...Option) *Document {
	d := newOptions(opts).build(nil)
	d.Project.SetPersistentObjectContext(d.Context)
	// Without a sink Attach only wires the store and cannot fail.
	_ = d.Store.Attach(context.Background(), d.Project, nil)
	return d
}

// Open loads the project stored in sink, or starts a new one when sink is
// empty, and keeps sink up to date with every change.
func Open(ctx context.Context, sink dictstore.Sink, opts ...Option) (*Document, error) {
	o := newOptions(opts)
	stored, err := dictstore.Load(ctx, sink)
	if err != nil {
		return nil, err
	}
	d := o.build(sink)
	if stored != nil {
		if err := readProject(d.Project, stored); err != nil {
			d.Project.Close()
			return nil, err
		}
	}
	d.Project.SetPersistentObjectContext(d.Context)
	if err := d.Store.Attach(ctx, d.Project, stored); err != nil {
		d.Project.Close()
		return nil, err
	}
	d.logger.Debug("document opened",
		"uuid", d.Project.UUID(),
		"data_items", len(d.Project.DataItems()),
		"display_items", len(d.Project.DisplayItems()))
	return d, nil
}

// readProject reads stored into p, turning malformed children into an error.
func readProject(p *Project, stored map[string]any) (err error) {
	if t, _ := stored[persistence.KeyType].(string); t != TypeProject {
		return fmt.Errorf("%w: type %q", ErrNotAProject, t)
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, persistence.ErrContractViolation) {
				err = fmt.Errorf("reading project: %w", e)
				return
			}
			panic(r)
		}
	}()
	p.ReadFromDict(stored)
	return nil
}

// Push records cmd on the undo stack. A nil cmd, from a change that is not
// recorded, is ignored.
func (d *Document) Push(cmd *undo.Command) {
	if cmd != nil {
		d.Undo.Push(cmd)
	}
}

// Flush writes pending changes.
func (d *Document) Flush(ctx context.Context) error { return d.Store.Flush(ctx) }

// Close discards undo history, writes pending changes and closes the
// project.
func (d *Document) Close(ctx context.Context) error {
	d.Undo.Close()
	err := d.Store.Close(ctx)
	d.Project.Close()
	return err
}
