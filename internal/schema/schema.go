// Package schema declares the entity kinds harvest knows about.
//
// The declaration lives in CUE: constraints.cue fixes the shape every schema
// must have and kinds.cue is the built-in directory schema (food banks,
// programs, sponsors). A replacement kinds file can be loaded with LoadFile;
// it is unified with the same constraints.
//
// The schema drives three stages:
//   - Classification: KindFields and the closed set of kind names
//   - Identity: the strong, name, location and volatile field lists
//   - Projection and storage: per-kind attribute tables and table names
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed constraints.cue
var constraintsCUE string

//go:embed kinds.cue
var kindsCUE []byte

// NameAttribute is the attribute copied into the display-name column.
const NameAttribute = "name"

// AttrType is the declared type of a canonical attribute.
type AttrType string

// Attribute types and the default each projects to when no alias matches.
const (
	TypeString AttrType = "string" // null
	TypeNumber AttrType = "number" // null
	TypeList   AttrType = "list"   // []
	TypeObject AttrType = "object" // {}
	TypeAny    AttrType = "any"    // null
)

// Attribute is one canonical destination attribute of a kind.
type Attribute struct {
	Name    string   `json:"name"`
	Type    AttrType `json:"type"`
	Aliases []string `json:"aliases"`
}

// Kind is one entity kind: its bucket name, table and projection table.
type Kind struct {
	Name       string      `json:"name"`
	Table      string      `json:"table"`
	Attributes []Attribute `json:"attributes"`
}

// Identity lists the fields consulted by tiered identifier derivation.
type Identity struct {
	Strong     []string `json:"strong"`
	Names      []string `json:"names"`
	Locations  []string `json:"locations"`
	Volatile   []string `json:"volatile"`
	HashLength int      `json:"hash_length"`
}

// Schema is a validated kind declaration.
type Schema struct {
	KindFields []string `json:"kind_fields"`
	Kinds      []Kind   `json:"kinds"`
	Identity   Identity `json:"identity"`

	byName map[string]*Kind
}

// Error reports an invalid schema, with a CUE position when one is known.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: schema: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return "schema: " + e.Message
}

var defaultSchema = sync.OnceValues(func() (*Schema, error) {
	return Load("kinds.cue", kindsCUE)
})

// Default returns the built-in schema. It is parsed once per process.
func Default() (*Schema, error) {
	return defaultSchema()
}

// LoadFile reads a kinds declaration from path.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Load(path, data)
}

// Load compiles a kinds declaration, unifies it with the built-in
// constraints and decodes the result.
func Load(filename string, data []byte) (*Schema, error) {
	ctx := cuecontext.New()

	constraints := ctx.CompileString(constraintsCUE, cue.Filename("constraints.cue"))
	if err := constraints.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := ctx.CompileBytes(data, cue.Filename(filename))
	if err := decl.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := constraints.Unify(decl)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var s Schema
	if err := v.Decode(&s); err != nil {
		return nil, formatCUEError(err)
	}
	if err := s.index(); err != nil {
		return nil, err
	}
	return &s, nil
}

// index builds the kind lookup and rejects duplicates CUE cannot express.
func (s *Schema) index() error {
	s.byName = make(map[string]*Kind, len(s.Kinds))
	tables := make(map[string]bool, len(s.Kinds))

	for i := range s.Kinds {
		k := &s.Kinds[i]
		if _, dup := s.byName[k.Name]; dup {
			return &Error{Message: fmt.Sprintf("duplicate kind %q", k.Name)}
		}
		if tables[k.Table] {
			return &Error{Message: fmt.Sprintf("kind %q reuses table %q", k.Name, k.Table)}
		}
		seen := make(map[string]bool, len(k.Attributes))
		for _, a := range k.Attributes {
			if seen[a.Name] {
				return &Error{Message: fmt.Sprintf("kind %q declares attribute %q twice", k.Name, a.Name)}
			}
			seen[a.Name] = true
		}
		s.byName[k.Name] = k
		tables[k.Table] = true
	}
	return nil
}

// Lookup returns the kind with the given bucket name.
func (s *Schema) Lookup(name string) (*Kind, bool) {
	k, ok := s.byName[name]
	return k, ok
}

// KindNames returns the kind names in declaration order.
func (s *Schema) KindNames() []string {
	names := make([]string, len(s.Kinds))
	for i, k := range s.Kinds {
		names[i] = k.Name
	}
	return names
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Message: first.Error()}
}
