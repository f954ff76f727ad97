package dictstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// MemorySink keeps the last written document as JSON in memory. Documents
// come back decoded, the same shape a file or database sink returns.
type MemorySink struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteDocument implements Sink.
func (m *MemorySink) WriteDocument(_ context.Context, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	m.writes++
	return nil
}

// ReadDocument implements Sink.
func (m *MemorySink) ReadDocument(_ context.Context) (map[string]any, error) {
	m.mu.Lock()
	data := m.data
	m.mu.Unlock()
	if data == nil {
		return nil, types.ErrDocumentNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// Writes returns how many documents have been written.
func (m *MemorySink) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func isNotFound(err error) bool {
	return errors.Is(err, types.ErrDocumentNotFound)
}
