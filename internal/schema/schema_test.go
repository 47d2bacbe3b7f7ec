package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_DeclaresDirectoryKinds(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"foodbank", "program", "sponsor"}, s.KindNames())
	assert.Equal(t, []string{"type", "__bucket__"}, s.KindFields)
	assert.Equal(t, 16, s.Identity.HashLength)
	assert.Equal(t, "id", s.Identity.Strong[0])

	fb, ok := s.Lookup("foodbank")
	require.True(t, ok)
	assert.Equal(t, "foodbanks", fb.Table)
	assert.Len(t, fb.Attributes, 16)

	prg, ok := s.Lookup("program")
	require.True(t, ok)
	assert.Len(t, prg.Attributes, 12)

	spn, ok := s.Lookup("sponsor")
	require.True(t, ok)
	assert.Len(t, spn.Attributes, 15)

	_, ok = s.Lookup("volunteer")
	assert.False(t, ok)
}

func TestDefault_AttributeTypes(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)

	fb, _ := s.Lookup("foodbank")
	types := map[string]AttrType{}
	for _, a := range fb.Attributes {
		types[a.Name] = a.Type
	}

	assert.Equal(t, TypeList, types["languages"])
	assert.Equal(t, TypeList, types["services"])
	assert.Equal(t, TypeAny, types["capacity"])
	assert.Equal(t, TypeString, types["name"])
}

func TestLoad_RejectsUnknownAttributeType(t *testing.T) {
	src := `
kind_fields: ["type"]
identity: {strong: ["id"], names: ["name"], locations: ["city"], volatile: [], hash_length: 16}
kinds: [{
	name: "foodbank"
	table: "foodbanks"
	attributes: [{name: "name", type: "text", aliases: ["name"]}]
}]
`
	_, err := Load("bad.cue", []byte(src))
	require.Error(t, err)

	var schemaErr *Error
	assert.True(t, errors.As(err, &schemaErr))
}

func TestLoad_RejectsDuplicateKinds(t *testing.T) {
	src := `
kind_fields: ["type"]
identity: {strong: ["id"], names: ["name"], locations: ["city"], volatile: [], hash_length: 16}
kinds: [
	{name: "foodbank", table: "foodbanks", attributes: [{name: "name", type: "string", aliases: ["name"]}]},
	{name: "foodbank", table: "foodbanks_2", attributes: [{name: "name", type: "string", aliases: ["name"]}]},
]
`
	_, err := Load("dup.cue", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate kind "foodbank"`)
}

func TestLoad_RejectsShortHash(t *testing.T) {
	src := `
kind_fields: ["type"]
identity: {strong: ["id"], names: ["name"], locations: ["city"], volatile: [], hash_length: 4}
kinds: [{name: "foodbank", table: "foodbanks", attributes: [{name: "name", type: "string", aliases: ["name"]}]}]
`
	_, err := Load("short.cue", []byte(src))
	require.Error(t, err)
}

func TestLoadFile_CustomKinds(t *testing.T) {
	src := `
kind_fields: ["kind"]
identity: {strong: ["code"], names: ["label"], locations: ["town"], volatile: ["seen_at"], hash_length: 12}
kinds: [{
	name: "pantry"
	table: "pantries"
	attributes: [
		{name: "name", type: "string", aliases: ["label", "name"]},
		{name: "tags", type: "list", aliases: ["tags"]},
	]
}]
`
	path := filepath.Join(t.TempDir(), "kinds.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pantry"}, s.KindNames())
	assert.Equal(t, []string{"kind"}, s.KindFields)
	assert.Equal(t, 12, s.Identity.HashLength)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
}
