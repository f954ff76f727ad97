package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Specifier is the portable identity of a persistent object. It references an
// object without holding it and is comparable, so it can key a map.
type Specifier struct {
	id uuid.UUID
}

// NewSpecifier wraps id.
func NewSpecifier(id uuid.UUID) Specifier {
	return Specifier{id: id}
}

// SpecifierFor returns the specifier of p, or the zero Specifier when p is nil.
func SpecifierFor(p Persistent) Specifier {
	if p == nil {
		return Specifier{}
	}
	return p.PersistentObject().Specifier()
}

// UUID returns the wrapped identifier.
func (s Specifier) UUID() uuid.UUID { return s.id }

// IsZero reports whether s identifies nothing.
func (s Specifier) IsZero() bool { return s.id == uuid.Nil }

func (s Specifier) String() string { return s.id.String() }

// Write returns the canonical encoding: the bare UUID string.
func (s Specifier) Write() string { return s.id.String() }

// ReadSpecifier decodes a specifier from any of the accepted encodings: a UUID
// string, a uuid.UUID, or a map holding "item_uuid" or "uuid". It returns
// false when v is none of these or does not parse.
func ReadSpecifier(v any) (Specifier, bool) {
	switch t := v.(type) {
	case Specifier:
		return t, !t.IsZero()
	case uuid.UUID:
		return NewSpecifier(t), t != uuid.Nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return Specifier{}, false
		}
		return NewSpecifier(id), true
	case map[string]any:
		for _, key := range []string{"item_uuid", "uuid"} {
			if raw, ok := t[key].(string); ok {
				return ReadSpecifier(raw)
			}
		}
	}
	return Specifier{}, false
}

// MarshalJSON encodes s in its canonical string form.
func (s Specifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Write())
}

// UnmarshalJSON accepts every encoding ReadSpecifier accepts. null decodes to
// the zero Specifier.
func (s *Specifier) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = Specifier{}
		return nil
	}
	spec, ok := ReadSpecifier(raw)
	if !ok {
		return fmt.Errorf("invalid specifier %s", data)
	}
	*s = spec
	return nil
}
