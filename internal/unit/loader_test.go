package unit

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harvest/internal/testutil"
)

func TestLoader_Builtin(t *testing.T) {
	c := NewCatalog()
	c.MustRegister("static", func(context.Context) (any, error) {
		return []map[string]any{{"type": "foodbank", "id": "x"}}, nil
	})
	l := &Loader{Catalog: c}

	u, err := l.Load(Location{Builtin: "static"})
	require.NoError(t, err)
	assert.Equal(t, "static", u.Name)
	assert.Equal(t, "builtin:static", u.Location)
	assert.Equal(t, Location{Builtin: "static"}.Namespace(), u.Namespace)
	assert.False(t, u.Deferred())

	out, err := u.Call(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestLoader_UnknownBuiltin(t *testing.T) {
	l := &Loader{Catalog: NewCatalog()}

	_, err := l.Load(Location{Builtin: "ghost"})
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "unknown builtin unit", le.Reason)
}

func TestLoader_Script(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteScript(t, dir, "pantries.go", `func Collect() []map[string]interface{} {
	return []map[string]interface{}{
		{"type": "foodbank", "id": "x42", "name": "Acme"},
	}
}`)

	u, err := (&Loader{}).Load(Location{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "pantries", u.Name)
	require.NotNil(t, u.Call)

	out, err := u.Call(context.Background())
	require.NoError(t, err)

	rows := reflect.ValueOf(out)
	require.Equal(t, reflect.Slice, rows.Kind())
	assert.Equal(t, 1, rows.Len())
}

func TestLoader_ScriptReturningError(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteScript(t, dir, "broken.go", `func Collect(ctx context.Context) ([]map[string]interface{}, error) {
	return nil, errors.New("upstream down")
}`, "context", "errors")

	u, err := (&Loader{}).Load(Location{Path: path})
	require.NoError(t, err)

	_, err = u.Call(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestLoader_ScriptFailures(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		reason string
	}{
		{"syntax", "package main\n\nfunc Collect( {", "parse failed"},
		{"no entry point", "package main\n\nfunc Fetch() []int { return nil }", "entry point missing"},
		{"declares main", "package main\n\nfunc main() {}\n\nfunc Collect() []int { return nil }", "scripts must not declare func main"},
		{"bad signature", "package main\n\nfunc Collect(n int) []int { return nil }", "entry point not callable"},
		{"type error", "package main\n\nfunc Collect() []int { return undefinedThing }", "evaluation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "u.go", tt.src)

			_, err := (&Loader{}).Load(Location{Path: path})
			var le *LoadError
			require.True(t, errors.As(err, &le), "got %v", err)
			assert.Equal(t, tt.reason, le.Reason)
			assert.Equal(t, path, le.Location)
		})
	}
}

func TestLoader_ScriptsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteScript(t, dir, "east/fetch.go", `var source = "east"

func Collect() []string { return []string{source} }`)
	b := testutil.WriteScript(t, dir, "west/fetch.go", `var source = "west"

func Collect() []string { return []string{source} }`)

	l := &Loader{}
	ua, err := l.Load(Location{Path: a})
	require.NoError(t, err)
	ub, err := l.Load(Location{Path: b})
	require.NoError(t, err)

	assert.NotEqual(t, ua.Namespace, ub.Namespace)

	outA, err := ua.Call(context.Background())
	require.NoError(t, err)
	outB, err := ub.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"east"}, outA)
	assert.Equal(t, []string{"west"}, outB)
}

func TestAdaptEntryPoint_Shapes(t *testing.T) {
	want := []map[string]any{{"type": "program"}}
	boom := errors.New("boom")

	tests := []struct {
		name     string
		fn       any
		deferred bool
		wantErr  error
	}{
		{"plain", func() []map[string]any { return want }, false, nil},
		{"with error", func() ([]map[string]any, error) { return want, nil }, false, nil},
		{"returns error", func() ([]map[string]any, error) { return nil, boom }, false, boom},
		{"with ctx", func(context.Context) []map[string]any { return want }, false, nil},
		{"ctx and error", func(context.Context) ([]map[string]any, error) { return want, nil }, false, nil},
		{"channel", func() <-chan []map[string]any {
			ch := make(chan []map[string]any, 1)
			ch <- want
			return ch
		}, true, nil},
		{"ctx channel error", func(context.Context) (<-chan []map[string]any, error) { return nil, boom }, true, boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, async, err := adaptEntryPoint(reflect.ValueOf(tt.fn))
			require.NoError(t, err)

			var (
				got    any
				gotErr error
			)
			if tt.deferred {
				require.Nil(t, call)
				require.NotNil(t, async)
				select {
				case res := <-async(context.Background()):
					got, gotErr = res.Value, res.Err
				case <-time.After(time.Second):
					t.Fatal("deferred result never arrived")
				}
			} else {
				require.Nil(t, async)
				require.NotNil(t, call)
				got, gotErr = call(context.Background())
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, gotErr, tt.wantErr)
				return
			}
			require.NoError(t, gotErr)
			assert.Equal(t, want, got)
		})
	}
}

func TestAdaptEntryPoint_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "marker")

	call, _, err := adaptEntryPoint(reflect.ValueOf(func(ctx context.Context) any {
		return ctx.Value(key{})
	}))
	require.NoError(t, err)

	got, err := call(ctx)
	require.NoError(t, err)
	assert.Equal(t, "marker", got)
}

func TestAdaptEntryPoint_ClosedChannelIsEmpty(t *testing.T) {
	_, async, err := adaptEntryPoint(reflect.ValueOf(func() <-chan []int {
		ch := make(chan []int)
		close(ch)
		return ch
	}))
	require.NoError(t, err)

	res := <-async(context.Background())
	assert.NoError(t, res.Err)
	assert.Nil(t, res.Value)
}

func TestAdaptEntryPoint_Rejects(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"not a function", 42},
		{"two args", func(context.Context, int) []int { return nil }},
		{"wrong arg", func(string) []int { return nil }},
		{"no results", func() {}},
		{"second not error", func() ([]int, string) { return nil, "" }},
		{"variadic", func(...context.Context) []int { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := adaptEntryPoint(reflect.ValueOf(tt.fn))
			assert.Error(t, err)
		})
	}

	_, _, err := adaptEntryPoint(reflect.Value{})
	assert.Error(t, err)
}
