package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docgraph/internal/dictstore"
	"github.com/mesh-intelligence/docgraph/pkg/types"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"type":     "project",
		"uuid":     "root",
		"modified": "2026-10-19T08:00:00.000000",
		"title":    "Session",
		"displays": []any{
			map[string]any{
				"type":         "display_item",
				"uuid":         "d1",
				"display_type": "image",
				"display_data_channel": map[string]any{
					"type":                "data_channel",
					"uuid":                "c1",
					"data_item_specifier": "i1",
				},
				"graphics": []any{
					map[string]any{"type": "rect-graphic", "uuid": "g1", "bounds": []any{0.0, 0.0, 1.0, 1.0}},
					map[string]any{"type": "point-graphic", "uuid": "g2"},
				},
			},
		},
		"tags": []any{"raw", "calibrated"},
	}
}

func TestFileDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "document.json")

	tests := []struct {
		name string
		opts []Option
	}{
		{"compact", nil},
		{"indented", []Option{Indented()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(path, tt.opts...)
			require.NoError(t, f.WriteDocument(ctx, sampleDoc()))
			got, err := f.ReadDocument(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Session", got["title"])
			assert.Len(t, got["displays"], 1)
		})
	}
}

func TestFileMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := New(filepath.Join(dir, "none.json")).ReadDocument(ctx)
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = New(bad).ReadDocument(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrDocumentNotFound)
}

func TestFileIsADictStoreSink(t *testing.T) {
	ctx := context.Background()
	var sink dictstore.Sink = New(filepath.Join(t.TempDir(), "document.json"))

	doc, err := dictstore.Load(ctx, sink)
	require.NoError(t, err)
	assert.Nil(t, doc)
	require.NoError(t, sink.WriteDocument(ctx, sampleDoc()))
	doc, err = dictstore.Load(ctx, sink)
	require.NoError(t, err)
	assert.Equal(t, "root", doc["uuid"])
}

func TestFlatten(t *testing.T) {
	records := Flatten(sampleDoc())
	require.Len(t, records, 5)

	byUUID := make(map[string]Record, len(records))
	for _, r := range records {
		byUUID[r.UUID] = r
	}

	tests := []struct {
		uuid   string
		typ    string
		parent string
		slot   string
		index  int
	}{
		{"root", "project", "", "", 0},
		{"d1", "display_item", "root", "displays", 0},
		{"c1", "data_channel", "d1", "display_data_channel", 0},
		{"g1", "rect-graphic", "d1", "graphics", 0},
		{"g2", "point-graphic", "d1", "graphics", 1},
	}
	for _, tt := range tests {
		t.Run(tt.uuid, func(t *testing.T) {
			r, ok := byUUID[tt.uuid]
			require.True(t, ok)
			assert.Equal(t, tt.typ, r.Type)
			assert.Equal(t, tt.parent, r.ParentUUID)
			assert.Equal(t, tt.slot, r.Slot)
			assert.Equal(t, tt.index, r.Index)
		})
	}

	root := byUUID["root"]
	assert.Equal(t, "Session", root.Properties["title"])
	assert.Equal(t, []any{"raw", "calibrated"}, root.Properties["tags"], "plain lists stay properties")
	assert.NotContains(t, root.Properties, "displays")
	assert.Nil(t, byUUID["g2"].Properties)
}

func TestExportJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.jsonl")

	n, err := ExportJSONL(path, sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	records, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "root", records[0].UUID)
}

func TestReadJSONLSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.jsonl")
	content := "{\"uuid\":\"a\"}\n\nnot json\n{\"uuid\":\"b\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	raw, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var rec Record
	require.NoError(t, json.Unmarshal(raw[1], &rec))
	assert.Equal(t, "b", rec.UUID)

	_, err = ReadJSONL(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestWriteJSONLReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.jsonl")
	require.NoError(t, WriteJSONL(path, []json.RawMessage{json.RawMessage(`{"uuid":"old"}`)}))
	require.NoError(t, WriteJSONL(path, []json.RawMessage{json.RawMessage(`{"uuid":"new"}`)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"uuid\":\"new\"}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
