package unit

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultEntryPoint is the function a script unit must declare.
const DefaultEntryPoint = "Collect"

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Loader turns validated locations into runnable units.
type Loader struct {
	// Catalog resolves builtin locations.
	Catalog *Catalog

	// EntryPoint overrides DefaultEntryPoint for script units.
	EntryPoint string

	// Stdout receives anything scripts print. Nil means os.Stderr, which
	// keeps the run summary on stdout clean.
	Stdout io.Writer
}

func (l *Loader) entryPoint() string {
	if l.EntryPoint != "" {
		return l.EntryPoint
	}
	return DefaultEntryPoint
}

// Load resolves loc into a Unit. Every failure is a *LoadError.
func (l *Loader) Load(loc Location) (*Unit, error) {
	u := &Unit{
		Name:      loc.Name(),
		Location:  loc.String(),
		Namespace: loc.Namespace(),
	}

	if loc.IsBuiltin() {
		if l.Catalog == nil {
			return nil, &LoadError{Location: u.Location, Reason: "no catalog configured"}
		}
		entry, ok := l.Catalog.Lookup(loc.Builtin)
		if !ok {
			return nil, &LoadError{Location: u.Location, Reason: "unknown builtin unit"}
		}
		u.Call, u.Async = entry.Call, entry.Async
		return u, nil
	}

	call, async, err := l.loadScript(loc.Path)
	if err != nil {
		return nil, err
	}
	u.Call, u.Async = call, async
	return u, nil
}

// loadScript interprets one script in a fresh interpreter and adapts its
// entry point. The interpreter is private to the unit.
func (l *Loader) loadScript(path string) (CallFunc, AsyncFunc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Location: path, Reason: "read failed", Err: err}
	}

	pkg, err := inspectScript(path, src, l.entryPoint())
	if err != nil {
		return nil, nil, err
	}

	stdout := l.Stdout
	if stdout == nil {
		stdout = os.Stderr
	}
	i := interp.New(interp.Options{Stdout: stdout, Stderr: stdout})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, nil, &LoadError{Location: path, Reason: "load stdlib symbols", Err: err}
	}

	if _, err := evalSafely(i, string(src)); err != nil {
		return nil, nil, &LoadError{Location: path, Reason: "evaluation failed", Err: err}
	}

	fn, err := evalSafely(i, pkg+"."+l.entryPoint())
	if err != nil {
		return nil, nil, &LoadError{Location: path, Reason: "entry point missing", Err: err}
	}

	call, async, err := adaptEntryPoint(fn)
	if err != nil {
		return nil, nil, &LoadError{Location: path, Reason: "entry point not callable", Err: err}
	}
	return call, async, nil
}

// inspectScript parses the script and checks the parts of the contract that
// can be checked without running it. Returns the package name.
func inspectScript(path string, src []byte, entry string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return "", &LoadError{Location: path, Reason: "parse failed", Err: err}
	}

	var found bool
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil {
			continue
		}
		switch fd.Name.Name {
		case "main":
			return "", &LoadError{Location: path, Reason: "scripts must not declare func main"}
		case entry:
			found = true
		}
	}
	if !found {
		return "", &LoadError{Location: path, Reason: "entry point missing", Err: fmt.Errorf("no top-level func %s", entry)}
	}
	return file.Name.Name, nil
}

// evalSafely runs an interpreter evaluation, turning a panic into an error.
func evalSafely(i *interp.Interpreter, src string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during evaluation: %v", r)
		}
	}()
	return i.Eval(src)
}

// adaptEntryPoint maps a function value onto one of the two execution shapes.
//
// Panics are recovered by the caller's goroutine only. A panic in a goroutine
// the script starts itself still terminates the process.
func adaptEntryPoint(fn reflect.Value) (CallFunc, AsyncFunc, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("entry point is %s, not a function", kindOf(fn))
	}

	t := fn.Type()
	if t.IsVariadic() {
		return nil, nil, fmt.Errorf("entry point must not be variadic")
	}

	var takesCtx bool
	switch t.NumIn() {
	case 0:
	case 1:
		if t.In(0) != contextType {
			return nil, nil, fmt.Errorf("entry point argument must be context.Context, got %s", t.In(0))
		}
		takesCtx = true
	default:
		return nil, nil, fmt.Errorf("entry point takes %d arguments, want 0 or 1", t.NumIn())
	}

	var returnsErr bool
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, nil, fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
		returnsErr = true
	default:
		return nil, nil, fmt.Errorf("entry point returns %d values, want 1 or 2", t.NumOut())
	}

	invoke := func(ctx context.Context) (reflect.Value, error) {
		var in []reflect.Value
		if takesCtx {
			in = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
		}
		out := fn.Call(in)
		if returnsErr && !out[1].IsNil() {
			return out[0], out[1].Interface().(error)
		}
		return out[0], nil
	}

	first := t.Out(0)
	if first.Kind() == reflect.Chan && first.ChanDir()&reflect.RecvDir != 0 {
		async := func(ctx context.Context) <-chan Result {
			done := make(chan Result, 1)
			ch, err := invoke(ctx)
			if err != nil {
				done <- Result{Err: err}
				return done
			}
			if ch.IsNil() {
				done <- Result{}
				return done
			}
			go func() {
				v, ok := ch.Recv()
				if !ok {
					done <- Result{}
					return
				}
				done <- Result{Value: v.Interface()}
			}()
			return done
		}
		return nil, async, nil
	}

	call := func(ctx context.Context) (any, error) {
		v, err := invoke(ctx)
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
	return call, nil, nil
}

func kindOf(v reflect.Value) string {
	if !v.IsValid() {
		return "nothing"
	}
	return v.Kind().String()
}
