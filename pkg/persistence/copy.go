package persistence

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

// DeepCopier is implemented by property values that copy themselves. Values
// whose unexported fields hold slices, maps or pointers must implement it.
type DeepCopier interface {
	DeepCopy() any
}

var (
	deepCopyOption = copier.Option{DeepCopy: true}

	// Types copied by value even though they hold pointers internally.
	immutableTypes = map[reflect.Type]bool{
		reflect.TypeFor[time.Time]():      true,
		reflect.TypeFor[time.Location]():  true,
		reflect.TypeFor[*time.Location](): true,
	}

	// sharedFields caches sharedField results per type.
	sharedFields sync.Map
)

// deepCopy returns a copy of v that shares no mutable state with it.
// JSON-shaped values (map[string]any, []any) are copied recursively; other
// composite values go through copier. Scalars are returned as is. A value
// that cannot be isolated panics with ErrContractViolation.
func deepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case DeepCopier:
		return t.DeepCopy()
	case time.Time:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []string:
		return append([]string(nil), t...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return v
		}
		mustIsolate(v, rv.Type())
		dst := reflect.New(rv.Type())
		copyWith(dst.Interface(), v)
		return dst.Elem().Interface()
	case reflect.Struct, reflect.Array:
		mustIsolate(v, rv.Type())
		// Unexported fields are plain values once mustIsolate passes, so the
		// seed carries them; copier replaces exported reference fields.
		dst := reflect.New(rv.Type())
		dst.Elem().Set(rv)
		copyWith(dst.Interface(), v)
		return dst.Elem().Interface()
	case reflect.Pointer:
		if rv.IsNil() {
			return v
		}
		elem := rv.Elem()
		switch elem.Kind() {
		case reflect.Struct:
			mustIsolate(v, elem.Type())
			dst := reflect.New(elem.Type())
			dst.Elem().Set(elem)
			copyWith(dst.Interface(), v)
			return dst.Interface()
		case reflect.Interface:
			mustf(false, "cannot copy %T: pointer to interface", v)
		}
		dst := reflect.New(elem.Type())
		dst.Elem().Set(reflect.ValueOf(deepCopy(elem.Interface())))
		return dst.Interface()
	default:
		return v
	}
}

func copyWith(dst, src any) {
	if err := copier.CopyWithOption(dst, src, deepCopyOption); err != nil {
		panic(fmt.Errorf("%w: copying %T: %w", ErrContractViolation, src, err))
	}
}

func mustIsolate(v any, t reflect.Type) {
	if field := sharedField(t); field != "" {
		panic(fmt.Errorf("%w: cannot copy %T: unexported field %s would be shared; implement DeepCopier",
			ErrContractViolation, v, field))
	}
}

// sharedField names the first unexported field reachable from t that holds a
// reference copier cannot replace, or returns "".
func sharedField(t reflect.Type) string {
	if cached, ok := sharedFields.Load(t); ok {
		return cached.(string)
	}
	field := findSharedField(t, map[reflect.Type]bool{})
	sharedFields.Store(t, field)
	return field
}

func findSharedField(t reflect.Type, seen map[reflect.Type]bool) string {
	if immutableTypes[t] || seen[t] {
		return ""
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return findSharedField(t.Elem(), seen)
	case reflect.Map:
		if f := findSharedField(t.Key(), seen); f != "" {
			return f
		}
		return findSharedField(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				switch f.Type.Kind() {
				case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Chan, reflect.UnsafePointer:
					if !immutableTypes[f.Type] {
						return t.String() + "." + f.Name
					}
					continue
				}
			}
			if name := findSharedField(f.Type, seen); name != "" {
				return name
			}
		}
	}
	return ""
}

// isNilValue reports whether v is nil or a typed nil pointer, map or slice.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
