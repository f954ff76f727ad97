package jsonfile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mesh-intelligence/docgraph/internal/atomicfile"
	"github.com/mesh-intelligence/docgraph/pkg/persistence"
)

// Record is one object of a document with its children stripped out.
type Record struct {
	UUID       string         `json:"uuid"`
	Type       string         `json:"type,omitempty"`
	ParentUUID string         `json:"parent_uuid,omitempty"`
	Slot       string         `json:"slot,omitempty"`
	Index      int            `json:"index"`
	Modified   string         `json:"modified,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Flatten walks doc depth-first and returns one record per object. A nested
// dictionary with a "uuid" is a child item; a list of such dictionaries is a
// relationship. Everything else stays a property.
func Flatten(doc map[string]any) []Record {
	var out []Record
	flatten(doc, "", "", 0, &out)
	return out
}

func flatten(d map[string]any, parent, slot string, index int, out *[]Record) {
	rec := Record{
		ParentUUID: parent,
		Slot:       slot,
		Index:      index,
		Properties: make(map[string]any),
	}
	rec.UUID, _ = d[persistence.KeyUUID].(string)
	rec.Type, _ = d[persistence.KeyType].(string)
	rec.Modified, _ = d[persistence.KeyModified].(string)
	at := len(*out)
	*out = append(*out, rec)

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case persistence.KeyUUID, persistence.KeyType, persistence.KeyModified:
			continue
		}
		v := d[k]
		if child, ok := objectDict(v); ok {
			flatten(child, rec.UUID, k, 0, out)
			continue
		}
		if children, ok := objectList(v); ok {
			for i, child := range children {
				flatten(child, rec.UUID, k, i, out)
			}
			continue
		}
		rec.Properties[k] = v
	}
	if len(rec.Properties) == 0 {
		(*out)[at].Properties = nil
	}
}

func objectDict(v any) (map[string]any, bool) {
	d, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	_, ok = d[persistence.KeyUUID].(string)
	return d, ok
}

func objectList(v any) ([]map[string]any, bool) {
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case []map[string]any:
		out := make([]map[string]any, 0, len(t))
		for _, d := range t {
			if _, ok := objectDict(d); !ok {
				return nil, false
			}
			out = append(out, d)
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
	out := make([]map[string]any, 0, len(list))
	for _, e := range list {
		d, ok := objectDict(e)
		if !ok {
			return nil, false
		}
		out = append(out, d)
	}
	return out, len(out) > 0
}

// ExportJSONL writes the flattened records of doc to path, one JSON object
// per line, atomically. It returns the number of records written.
func ExportJSONL(path string, doc map[string]any) (int, error) {
	records := Flatten(doc)
	raw := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encoding %s: %w", r.UUID, err)
		}
		raw = append(raw, b)
	}
	if err := WriteJSONL(path, raw); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ReadJSONL returns each non-empty, parseable line of path. Malformed lines
// are skipped.
func ReadJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// WriteJSONL atomically writes records to path, one per line.
func WriteJSONL(path string, records []json.RawMessage) error {
	return atomicfile.Write(path, func(w *bufio.Writer) error {
		for _, rec := range records {
			if _, err := w.Write(rec); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("writing newline: %w", err)
			}
		}
		return nil
	})
}

// ReadRecords decodes the records of a file written by ExportJSONL.
func ReadRecords(path string) ([]Record, error) {
	raw, err := ReadJSONL(path)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		var rec Record
		if err := json.Unmarshal(r, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
