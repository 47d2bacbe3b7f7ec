package normalize

import (
	"strings"
	"unicode/utf8"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/schema"
)

// MaxNameRunes bounds the display-name column.
const MaxNameRunes = 256

// Projector maps raw records onto a kind's attribute table.
type Projector struct{}

// Project returns the display name and the full attribute set of rec.
//
// For each attribute the aliases are tried in order and the first non-empty
// value that can be coerced to the attribute's type wins. Unmapped source
// fields are ignored. Attributes with no usable alias get the type's default.
func (Projector) Project(k *schema.Kind, rec ir.Record) (string, map[string]any) {
	attrs := make(map[string]any, len(k.Attributes))
	for _, a := range k.Attributes {
		attrs[a.Name] = defaultFor(a.Type)
		for _, alias := range a.Aliases {
			if v, ok := coerce(a.Type, rec[alias]); ok {
				attrs[a.Name] = v
				break
			}
		}
	}

	name, _ := attrs[schema.NameAttribute].(string)
	return truncateRunes(name, MaxNameRunes), attrs
}

func defaultFor(t schema.AttrType) any {
	switch t {
	case schema.TypeList:
		return []any{}
	case schema.TypeObject:
		return map[string]any{}
	default:
		return nil
	}
}

// isEmpty reports nil, blank strings and empty collections.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// coerce converts v to type t where no information is lost.
func coerce(t schema.AttrType, v any) (any, bool) {
	if isEmpty(v) {
		return nil, false
	}

	switch t {
	case schema.TypeString:
		switch x := v.(type) {
		case string:
			return x, true
		case bool:
			if x {
				return "true", true
			}
			return "false", true
		case int64, float64, int:
			return formatNumber(x), true
		}
		return nil, false

	case schema.TypeNumber:
		switch v.(type) {
		case int64, float64, int:
			return v, true
		}
		return nil, false

	case schema.TypeList:
		switch x := v.(type) {
		case []any:
			return x, true
		case map[string]any:
			return nil, false
		}
		return []any{v}, true

	case schema.TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, true
		}
		return nil, false

	default:
		return v, true
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
