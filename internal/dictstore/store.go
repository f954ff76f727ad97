// Package dictstore implements persistence.Storage over an in-memory nested
// dictionary mirroring the document graph. Every notification updates the
// dictionary in place; the dictionary then reaches a Sink according to the
// configured sync strategy.
package dictstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/docgraph/internal/blob"
	"github.com/mesh-intelligence/docgraph/internal/metrics"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// Sink persists whole documents.
type Sink interface {
	// WriteDocument stores doc, replacing the previous document.
	WriteDocument(ctx context.Context, doc map[string]any) error
	// ReadDocument returns the stored document or types.ErrDocumentNotFound.
	ReadDocument(ctx context.Context) (map[string]any, error)
}

// Store is the storage attached to a document root.
type Store struct {
	mu   sync.Mutex
	doc  map[string]any
	root persistence.Persistent

	sink  Sink
	blobs blob.Store

	syncStrategy  string
	batchSize     int
	batchInterval time.Duration
	pending       int
	batchTimer    *time.Timer

	delayed map[uuid.UUID]int
	err     error
	closed  bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithSyncStrategy sets when changes reach the sink: types.SyncImmediate
// (default), types.SyncOnClose or types.SyncBatch.
func WithSyncStrategy(strategy string) Option {
	return func(s *Store) { s.syncStrategy = strategy }
}

// WithBatch sets the batch size and interval for types.SyncBatch. Either may
// be zero to disable that trigger.
func WithBatch(size int, interval time.Duration) Option {
	return func(s *Store) {
		s.batchSize = size
		s.batchInterval = interval
	}
}

// WithConfig applies the sync settings from cfg.
func WithConfig(cfg types.Config) Option {
	return func(s *Store) {
		cfg = cfg.Normalize()
		s.syncStrategy = cfg.SyncStrategy
		s.batchSize = cfg.BatchSize
		s.batchInterval = cfg.BatchDuration()
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics records flushes and pending writes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a store writing to sink and keeping external data in blobs.
// Either may be nil: without a sink changes stay in memory, without blobs
// external data calls fail.
func New(sink Sink, blobs blob.Store, opts ...Option) *Store {
	s := &Store{
		sink:         sink,
		blobs:        blobs,
		syncStrategy: types.SyncImmediate,
		delayed:      make(map[uuid.UUID]int),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the stored document from sink. A missing document returns
// (nil, nil) so callers can start a new one.
func Load(ctx context.Context, sink Sink) (map[string]any, error) {
	doc, err := sink.ReadDocument(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading document: %w", err)
	}
	return doc, nil
}

// Attach makes s the storage of root. doc is the dictionary root was read
// from; nil encodes root afresh and writes it.
func (s *Store) Attach(ctx context.Context, root persistence.Persistent, doc map[string]any) error {
	s.mu.Lock()
	fresh := doc == nil
	if fresh {
		doc = root.PersistentObject().WriteToDict()
	}
	s.doc = doc
	s.root = root
	s.mu.Unlock()

	root.PersistentObject().SetPersistentStorage(s)
	if s.syncStrategy == types.SyncBatch && s.batchInterval > 0 {
		s.startBatchTimer()
	}
	if !fresh {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	return s.flushLocked(ctx)
}

// StorageProperties returns the live root dictionary.
func (s *Store) StorageProperties() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Properties returns the live dictionary for p, or nil when p is not part of
// the attached document.
func (s *Store) Properties(p persistence.Persistent) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dictFor(p)
}

// dictFor walks from p up to the root and back down the dictionary.
func (s *Store) dictFor(p persistence.Persistent) map[string]any {
	if p == nil || s.doc == nil {
		return nil
	}
	obj := p.PersistentObject()
	if s.root != nil && obj == s.root.PersistentObject() {
		return s.doc
	}
	parent := obj.Parent()
	if parent == nil || parent.Object == nil {
		return nil
	}
	pd := s.dictFor(parent.Object)
	if pd == nil {
		return nil
	}
	if parent.ItemName != "" {
		d, _ := pd[parent.ItemName].(map[string]any)
		return d
	}
	key := parent.Object.PersistentObject().RelationshipStorageKey(parent.RelationshipName)
	return RelationshipDictByUUID(pd, key, obj.UUID())
}

// RelationshipDictByUUID finds the element of the relationship list stored
// under key whose "uuid" is id.
func RelationshipDictByUUID(properties map[string]any, key string, id uuid.UUID) map[string]any {
	want := id.String()
	for _, e := range asList(properties[key]) {
		if d, ok := e.(map[string]any); ok && d[persistence.KeyUUID] == want {
			return d
		}
	}
	return nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i, d := range t {
			out[i] = d
		}
		return out
	}
	return nil
}

func (s *Store) touch(d map[string]any, p persistence.Persistent) {
	d[persistence.KeyModified] = persistence.FormatModified(p.PersistentObject().Modified())
}

// InsertItem inserts the encoding of item into the parent's list.
func (s *Store) InsertItem(parent persistence.Persistent, key string, beforeIndex int, item persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd := s.dictFor(parent)
	if pd == nil {
		return
	}
	list := asList(pd[key])
	beforeIndex = min(max(beforeIndex, 0), len(list))
	pd[key] = slices.Insert(list, beforeIndex, any(item.PersistentObject().WriteToDict()))
	s.touch(pd, parent)
	s.changedLocked(parent)
}

// RemoveItem removes the encoding of item from the parent's list.
func (s *Store) RemoveItem(parent persistence.Persistent, key string, index int, item persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd := s.dictFor(parent)
	if pd == nil {
		return
	}
	want := item.PersistentObject().UUID().String()
	list := slices.DeleteFunc(slices.Clone(asList(pd[key])), func(e any) bool {
		d, ok := e.(map[string]any)
		return ok && d[persistence.KeyUUID] == want
	})
	if len(list) == 0 {
		delete(pd, key)
	} else {
		pd[key] = list
	}
	s.touch(pd, parent)
	s.changedLocked(parent)
}

// SetItem stores the encoding of item under name, or removes it for nil.
func (s *Store) SetItem(parent persistence.Persistent, name string, item persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pd := s.dictFor(parent)
	if pd == nil {
		return
	}
	if item == nil {
		delete(pd, name)
	} else {
		pd[name] = item.PersistentObject().WriteToDict()
	}
	s.touch(pd, parent)
	s.changedLocked(parent)
}

// SetProperty stores an encoded property value.
func (s *Store) SetProperty(p persistence.Persistent, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dictFor(p)
	if d == nil {
		return
	}
	d[key] = value
	s.touch(d, p)
	s.changedLocked(p)
}

// ClearProperty removes an encoded property value.
func (s *Store) ClearProperty(p persistence.Persistent, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dictFor(p)
	if d == nil {
		return
	}
	delete(d, key)
	s.touch(d, p)
	s.changedLocked(p)
}

// RewriteItem replaces item's stored dictionary with a fresh encoding.
func (s *Store) RewriteItem(item persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dictFor(item)
	if d == nil {
		return
	}
	clear(d)
	for k, v := range item.PersistentObject().WriteToDict() {
		d[k] = v
	}
	s.changedLocked(item)
}

// EnterWriteDelay holds sink writes for p and its subtree.
func (s *Store) EnterWriteDelay(p persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayed[p.PersistentObject().UUID()]++
}

// ExitWriteDelay releases one hold; when the last is released, changes made
// during the delay are written.
func (s *Store) ExitWriteDelay(p persistence.Persistent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := p.PersistentObject().UUID()
	if s.delayed[id] <= 1 {
		delete(s.delayed, id)
		s.changedLocked(p)
		return
	}
	s.delayed[id]--
}

// IsWriteDelayed reports whether p or an ancestor holds a write delay.
func (s *Store) IsWriteDelayed(p persistence.Persistent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDelayedLocked(p)
}

func (s *Store) isDelayedLocked(p persistence.Persistent) bool {
	for p != nil {
		obj := p.PersistentObject()
		if s.delayed[obj.UUID()] > 0 {
			return true
		}
		parent := obj.Parent()
		if parent == nil {
			return false
		}
		p = parent.Object
	}
	return false
}

// ReadExternalData returns the payload name of item.
func (s *Store) ReadExternalData(ctx context.Context, item persistence.Persistent, name string) ([]byte, error) {
	if s.blobs == nil {
		return nil, persistence.ErrNoStorage
	}
	return s.blobs.Get(ctx, blob.Key(item.PersistentObject().UUID().String(), name))
}

// WriteExternalData stores the payload name of item.
func (s *Store) WriteExternalData(ctx context.Context, item persistence.Persistent, name string, data []byte) error {
	if s.blobs == nil {
		return persistence.ErrNoStorage
	}
	return s.blobs.Put(ctx, blob.Key(item.PersistentObject().UUID().String(), name), data)
}

// ReserveExternalData stores a zeroed payload of size bytes.
func (s *Store) ReserveExternalData(ctx context.Context, item persistence.Persistent, name string, size int) error {
	if size < 0 {
		return fmt.Errorf("reserve %s: negative size %d", name, size)
	}
	return s.WriteExternalData(ctx, item, name, make([]byte, size))
}

// changedLocked counts one mutation and writes according to the strategy.
func (s *Store) changedLocked(p persistence.Persistent) {
	if s.closed || s.isDelayedLocked(p) {
		return
	}
	s.pending++
	s.metrics.PendingWrites(s.pending)
	switch s.syncStrategy {
	case types.SyncOnClose:
	case types.SyncBatch:
		if s.batchSize > 0 && s.pending >= s.batchSize {
			_ = s.flushLocked(context.Background())
		}
	default:
		_ = s.flushLocked(context.Background())
	}
}

// Pending returns the number of mutations not yet written.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Flush writes pending changes to the sink.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

func (s *Store) flushLocked(ctx context.Context) error {
	if s.pending == 0 || s.sink == nil || s.doc == nil {
		return nil
	}
	start := time.Now()
	err := s.sink.WriteDocument(ctx, s.doc)
	s.metrics.Flush(err == nil, time.Since(start).Seconds())
	if err != nil {
		s.err = fmt.Errorf("flush document: %w", err)
		s.logger.Error("document flush failed", "pending", s.pending, "error", err)
		return s.err
	}
	s.logger.Debug("document flushed", "pending", s.pending, "strategy", s.syncStrategy)
	s.pending = 0
	s.metrics.PendingWrites(0)
	return nil
}

// Err returns the last flush error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the batch timer and writes pending changes. Closing twice is
// a no-op.
func (s *Store) Close(ctx context.Context) error {
	s.stopBatchTimer()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked(ctx)
	s.closed = true
	return err
}

func (s *Store) startBatchTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchTimer != nil {
		return
	}
	s.batchTimer = time.AfterFunc(s.batchInterval, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		_ = s.flushLocked(context.Background())
		if s.batchTimer != nil {
			s.batchTimer.Reset(s.batchInterval)
		}
	})
}

func (s *Store) stopBatchTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchTimer != nil {
		s.batchTimer.Stop()
		s.batchTimer = nil
	}
}
