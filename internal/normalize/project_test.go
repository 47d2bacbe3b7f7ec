package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/ir"
	"github.com/roach88/harvest/internal/schema"
)

func kindOf(t *testing.T, name string) *schema.Kind {
	t.Helper()
	s, err := schema.Default()
	require.NoError(t, err)
	k, ok := s.Lookup(name)
	require.True(t, ok, name)
	return k
}

func TestProject_FoodbankDefaultsAndAliases(t *testing.T) {
	k := kindOf(t, "foodbank")

	name, attrs := Projector{}.Project(k, ir.Record{
		"type":        "foodbank",
		"title":       "Central Pantry",
		"description": "Serves the east side",
		"zip":         int64(78701),
		"language":    "es",
		"services":    []any{"pantry", "delivery"},
		"unmapped":    "ignored",
	})

	assert.Equal(t, "Central Pantry", name)
	assert.Len(t, attrs, len(k.Attributes))
	assert.Equal(t, "Central Pantry", attrs["name"])
	assert.Equal(t, "Serves the east side", attrs["about"])
	assert.Equal(t, "78701", attrs["zipcode"], "number coerced to string")
	assert.Equal(t, []any{"es"}, attrs["languages"], "scalar wrapped into a list")
	assert.Equal(t, []any{"pantry", "delivery"}, attrs["services"])
	assert.Nil(t, attrs["website"])
	assert.Nil(t, attrs["capacity"])
	assert.NotContains(t, attrs, "unmapped")
}

func TestProject_FirstNonEmptyAliasWins(t *testing.T) {
	k := kindOf(t, "foodbank")

	_, attrs := Projector{}.Project(k, ir.Record{
		"website":   "",
		"url":       "   ",
		"homepage":  "https://example.org",
		"phone":     nil,
		"telephone": "555-0100",
	})

	assert.Equal(t, "https://example.org", attrs["website"])
	assert.Equal(t, "555-0100", attrs["phone"])
}

func TestProject_NonCoercibleAliasSkipped(t *testing.T) {
	k := kindOf(t, "program")

	_, attrs := Projector{}.Project(k, ir.Record{
		"name":  map[string]any{"en": "Meals"},
		"title": "Meals on Wheels",
		"links": "https://example.org",
	})

	assert.Equal(t, "Meals on Wheels", attrs["name"])
	assert.Equal(t, map[string]any{}, attrs["links"], "string is not an object")
}

func TestProject_SponsorObjectsAndAny(t *testing.T) {
	k := kindOf(t, "sponsor")

	name, attrs := Projector{}.Project(k, ir.Record{
		"organization_name": "Acme",
		"amount":            float64(2500.5),
		"contact":           map[string]any{"email": "a@example.org"},
		"tax_id":            true,
	})

	assert.Equal(t, "Acme", name)
	assert.Equal(t, float64(2500.5), attrs["contribution_amt"])
	assert.Equal(t, map[string]any{"email": "a@example.org"}, attrs["contact"])
	assert.Equal(t, map[string]any{}, attrs["media"])
	assert.Equal(t, "true", attrs["ein"], "bool coerced to string")
}

func TestProject_NameTruncated(t *testing.T) {
	k := kindOf(t, "foodbank")
	long := strings.Repeat("é", MaxNameRunes+10)

	name, attrs := Projector{}.Project(k, ir.Record{"name": long})

	assert.Equal(t, MaxNameRunes, len([]rune(name)))
	assert.Equal(t, long, attrs["name"], "attribute keeps the full value")
}

func TestProject_NoName(t *testing.T) {
	name, _ := Projector{}.Project(kindOf(t, "program"), ir.Record{"about": "x"})
	assert.Empty(t, name)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		typ  schema.AttrType
		in   any
		want any
		ok   bool
	}{
		{schema.TypeString, "x", "x", true},
		{schema.TypeString, int64(3), "3", true},
		{schema.TypeString, float64(2.5), "2.5", true},
		{schema.TypeString, []any{"x"}, nil, false},
		{schema.TypeNumber, int64(3), int64(3), true},
		{schema.TypeNumber, "3", nil, false},
		{schema.TypeList, []any{"a"}, []any{"a"}, true},
		{schema.TypeList, "a", []any{"a"}, true},
		{schema.TypeList, map[string]any{"a": "b"}, nil, false},
		{schema.TypeList, []any{}, nil, false},
		{schema.TypeObject, map[string]any{"a": "b"}, map[string]any{"a": "b"}, true},
		{schema.TypeObject, []any{"a"}, nil, false},
		{schema.TypeAny, false, false, true},
		{schema.TypeAny, nil, nil, false},
	}

	for _, tt := range tests {
		got, ok := coerce(tt.typ, tt.in)
		assert.Equal(t, tt.ok, ok, "%s %v", tt.typ, tt.in)
		assert.Equal(t, tt.want, got, "%s %v", tt.typ, tt.in)
	}
}
