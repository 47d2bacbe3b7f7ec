package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/schema"
)

// Tier names the rule that produced an identifier.
type Tier string

const (
	TierStrong       Tier = "strong"
	TierNameLocation Tier = "name_location"
	TierContent      Tier = "content"
)

// Resolver derives deterministic identifiers from record content.
//
// Identifier formats:
//   - strong:        "<kind>:<value>"
//   - name+location: "<kind>:nm:<hash>"
//   - content:       "<kind>:h:<hash>"
//
// Resolve is a pure function of its arguments. Volatile fields never take
// part in the content hash.
type Resolver struct {
	identity schema.Identity
}

// NewResolver creates a resolver over the schema's identity fields.
func NewResolver(id schema.Identity) *Resolver {
	return &Resolver{identity: id}
}

// Resolve returns the identifier of rec within kind and the tier used.
func (r *Resolver) Resolve(kind string, rec ir.Record) (string, Tier, error) {
	for _, f := range r.identity.Strong {
		if v, ok := strongValue(rec[f]); ok {
			return kind + ":" + v, TierStrong, nil
		}
	}

	if parts, ok := r.nameLocation(rec); ok {
		sum := ir.ShortHash(ir.DomainNameLocation, []byte(strings.Join(parts, "|")), r.identity.HashLength)
		return kind + ":nm:" + sum, TierNameLocation, nil
	}

	body, err := ir.MarshalCanonical(rec.Without(r.identity.Volatile))
	if err != nil {
		return "", "", fmt.Errorf("content identity: %w", err)
	}
	data := make([]byte, 0, len(kind)+1+len(body))
	data = append(data, kind...)
	data = append(data, '|')
	data = append(data, body...)
	return kind + ":h:" + ir.ShortHash(ir.DomainContent, data, r.identity.HashLength), TierContent, nil
}

// nameLocation returns the normalized name followed by every present
// location value, in declaration order. ok is false unless there is a name
// and at least one location.
func (r *Resolver) nameLocation(rec ir.Record) ([]string, bool) {
	var name string
	for _, f := range r.identity.Names {
		if v, ok := textValue(rec[f]); ok {
			name = v
			break
		}
	}
	if name == "" {
		return nil, false
	}

	parts := []string{name}
	for _, f := range r.identity.Locations {
		if v, ok := textValue(rec[f]); ok {
			parts = append(parts, v)
		}
	}
	return parts, len(parts) > 1
}

// strongValue accepts non-blank strings, trimmed, and numbers.
func strongValue(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return "", false
		}
		return x, true
	case int64, float64, int:
		return formatNumber(x), true
	}
	return "", false
}

// textValue renders a scalar in the form used for name+location hashing:
// NFC, trimmed, lower-cased, inner whitespace collapsed.
func textValue(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int64, float64, int:
		s = formatNumber(x)
	default:
		return "", false
	}

	s = norm.NFC.String(s)
	s = cases.Lower(language.Und).String(s)
	s = strings.Join(strings.Fields(s), " ")
	return s, s != ""
}

func formatNumber(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
