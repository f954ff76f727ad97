// Package sqlite stores documents and their external data in a SQLite
// database under the data directory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docgraph/internal/blob"
	"github.com/mesh-intelligence/docgraph/internal/paths"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// DefaultDocumentID is the slot documents are written to unless
// WithDocumentID says otherwise.
const DefaultDocumentID = "main"

// Backend is a document sink and blob store over one SQLite file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	docID    string
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithDocumentID selects the document slot.
func WithDocumentID(id string) Option {
	return func(b *Backend) { b.docID = id }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// NewBackend creates a detached backend; call Attach to open the database.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{docID: DefaultDocumentID, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Path returns the database file for dataDir.
func Path(dataDir string) string {
	if dataDir == "" {
		dataDir = "."
	}
	return filepath.Join(dataDir, paths.DatabaseFileName)
}

// Attach creates DataDir if needed, opens the database and applies the
// schema. Returns types.ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", Path(dataDir))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps writes serialized.
	db.SetMaxOpenConns(1)
	for _, stmt := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("sqlite backend attached", "path", Path(dataDir))
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

func (b *Backend) conn() (*sql.DB, error) {
	if !b.attached {
		return nil, types.ErrDetached
	}
	return b.db, nil
}

// WriteDocument stores doc in the backend's slot, replacing the previous one.
func (b *Backend) WriteDocument(ctx context.Context, doc map[string]any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	docUUID, _ := doc[persistence.KeyUUID].(string)
	modified, _ := doc[persistence.KeyModified].(string)
	_, err = db.ExecContext(ctx, `INSERT INTO documents (doc_id, doc_uuid, payload, modified)
VALUES (?, ?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET doc_uuid = excluded.doc_uuid, payload = excluded.payload, modified = excluded.modified`,
		b.docID, docUUID, string(payload), modified)
	if err != nil {
		return fmt.Errorf("writing document %s: %w", b.docID, err)
	}
	return nil
}

// ReadDocument returns the document in the backend's slot or
// types.ErrDocumentNotFound.
func (b *Backend) ReadDocument(ctx context.Context) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}

	var payload string
	err = db.QueryRowContext(ctx, `SELECT payload FROM documents WHERE doc_id = ?`, b.docID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", b.docID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", b.docID, err)
	}
	return doc, nil
}

// Documents lists the stored document slots.
func (b *Backend) Documents(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT doc_id FROM documents ORDER BY doc_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Driver implements blob.Store.
func (b *Backend) Driver() blob.Driver { return blob.DriverSQLite }

// Put implements blob.Store.
func (b *Backend) Put(ctx context.Context, key string, data []byte) error {
	k, err := blob.CleanKey(key)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	objectUUID, _, _ := strings.Cut(k, "/")
	_, err = db.ExecContext(ctx, `INSERT INTO external_data (data_key, object_uuid, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(data_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		k, objectUUID, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	return nil
}

// Get implements blob.Store.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	key, err := blob.CleanKey(key)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	var data []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM external_data WHERE data_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// Delete implements blob.Store.
func (b *Backend) Delete(ctx context.Context, key string) error {
	key, err := blob.CleanKey(key)
	if err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM external_data WHERE data_key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	return nil
}

// List implements blob.Store.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT data_key FROM external_data ORDER BY data_key`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}
