package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/harvest/internal/unit"
)

// DefaultTimeout is the per-unit deadline when none is configured.
const DefaultTimeout = 1000 * time.Second

// Watchdog runs entry points under a deadline.
type Watchdog struct {
	// Timeout is the deadline per call. Zero or negative means DefaultTimeout.
	Timeout time.Duration
}

func (w *Watchdog) timeout() time.Duration {
	if w == nil || w.Timeout <= 0 {
		return DefaultTimeout
	}
	return w.Timeout
}

// outcome is what the unit goroutine hands back to Execute.
type outcome struct {
	value any
	err   error
}

// Execute runs u and blocks for at most the deadline.
//
// Within the deadline the unit's value is returned, or a *RuntimeError if it
// failed or panicked. After the deadline a *TimeoutError is returned and the
// unit goroutine is left behind. If ctx ends first, ctx.Err() is returned and
// the unit is abandoned the same way.
func (w *Watchdog) Execute(ctx context.Context, u *unit.Unit) (any, error) {
	return w.guard(ctx, u.Name, func(ctx context.Context) (any, error) {
		return call(ctx, u)
	})
}

// LoadAndExecute loads loc with l and runs the unit under one deadline.
// Script units evaluate their package-level code while loading, so a script
// that hangs in an initializer times out like one that hangs in Collect.
// A load failure is returned unchanged.
func (w *Watchdog) LoadAndExecute(ctx context.Context, l Loader, loc unit.Location) (any, error) {
	return w.guard(ctx, loc.Name(), func(ctx context.Context) (any, error) {
		u, err := l.Load(loc)
		if err != nil {
			return nil, err
		}
		return call(ctx, u)
	})
}

// guard runs fn in its own goroutine and waits for it, the deadline or ctx,
// whichever comes first.
func (w *Watchdog) guard(ctx context.Context, name string, fn func(context.Context) (any, error)) (any, error) {
	d := w.timeout()

	// Cancelled at the deadline so units that watch ctx stop early.
	unitCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	// Buffered: an abandoned unit must be able to deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &RuntimeError{Unit: name, Panic: r}}
			}
		}()
		v, err := fn(unitCtx)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case out := <-done:
		// A unit that gave up because its context ended is reported by
		// what ended the context, not by the error it returned.
		if out.err != nil && unitCtx.Err() != nil {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, &TimeoutError{Unit: name, Timeout: d}
		}
		return out.value, out.err
	case <-timer.C:
		return nil, &TimeoutError{Unit: name, Timeout: d}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// call invokes u, wrapping its failure as a *RuntimeError.
func call(ctx context.Context, u *unit.Unit) (any, error) {
	v, err := invoke(ctx, u)
	if err != nil {
		return nil, &RuntimeError{Unit: u.Name, Err: err}
	}
	return v, nil
}

// invoke calls the unit's entry point and, for deferred units, waits for the
// single result. It runs inside the watchdog goroutine.
func invoke(ctx context.Context, u *unit.Unit) (any, error) {
	switch {
	case u.Call != nil:
		return u.Call(ctx)
	case u.Async != nil:
		ch := u.Async(ctx)
		if ch == nil {
			return nil, nil
		}
		res, ok := <-ch
		if !ok {
			return nil, nil
		}
		return res.Value, res.Err
	default:
		return nil, fmt.Errorf("unit has no entry point")
	}
}
