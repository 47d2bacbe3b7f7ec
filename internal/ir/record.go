package ir

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// maxDepth bounds nesting so a self-referencing unit output cannot recurse forever.
const maxDepth = 64

// ErrNotMapping is returned by ToRecord when a value is not a key-value mapping.
var ErrNotMapping = errors.New("not a key-value mapping")

// Record is one raw key-value mapping produced by a unit.
//
// After ToRecord the values form a JSON value tree made only of:
// nil, bool, string, int64, float64, []any and map[string]any.
type Record map[string]any

// Kind returns the first non-empty string found under fields, in order.
// The tag is returned as written; callers match it exactly.
// Returns "" if none of the fields carries a string tag.
func (r Record) Kind(fields []string) string {
	for _, f := range fields {
		if s, ok := r[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a copy of the record minus the named fields.
func (r Record) Without(fields []string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// ToRecord normalizes v and requires the result to be a mapping.
// Maps with string keys and structs (via their JSON encoding) qualify.
func ToRecord(v any) (Record, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotMapping, describe(v))
	}
	return Record(m), nil
}

// Normalize converts an arbitrary Go value into a JSON value tree.
//
// Pointers and interfaces are dereferenced, integers become int64, floats
// become float64, maps must have string keys, slices and arrays become []any,
// time.Time becomes an RFC 3339 string, []byte becomes base64 and structs go
// through encoding/json. NaN and infinities are rejected.
func Normalize(v any) (any, error) {
	return normalizeValue(reflect.ValueOf(v), 0)
}

func normalizeValue(v reflect.Value, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", maxDepth)
	}
	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeValue(v.Elem(), depth)
	}

	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case json.Number:
			return normalizeNumber(x)
		case time.Time:
			return x.UTC().Format(time.RFC3339Nano), nil
		case []byte:
			return base64.StdEncoding.EncodeToString(x), nil
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return float64(u), nil
		}
		return int64(u), nil
	case reflect.Float32:
		// Round-trip through the shortest float32 text so 0.1 stays 0.1.
		f, _ := strconv.ParseFloat(strconv.FormatFloat(v.Float(), 'g', -1, 32), 64)
		return checkFinite(f)
	case reflect.Float64:
		return checkFinite(v.Float())
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeList(v, depth)
	case reflect.Array:
		return normalizeList(v, depth)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s is not a string", v.Type().Key())
		}
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			elem, err := normalizeValue(iter.Value(), depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = elem
		}
		return out, nil
	case reflect.Struct:
		if !v.CanInterface() {
			return nil, fmt.Errorf("unexported struct %s", v.Type())
		}
		data, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", v.Type(), err)
		}
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		var decoded any
		if err := dec.Decode(&decoded); err != nil {
			return nil, fmt.Errorf("decode %s: %w", v.Type(), err)
		}
		return normalizeValue(reflect.ValueOf(decoded), depth+1)
	default:
		return nil, fmt.Errorf("unsupported type %s", v.Type())
	}
}

func normalizeList(v reflect.Value, depth int) (any, error) {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem, err := normalizeValue(v.Index(i), depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = elem
	}
	return out, nil
}

func normalizeNumber(n json.Number) (any, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	return checkFinite(f)
}

func checkFinite(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number %v", f)
	}
	return f, nil
}

func describe(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
