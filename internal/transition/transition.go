package transition

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TeardownFunc releases whatever a production function acquired.
type TeardownFunc func(ctx context.Context) error

// State is the result of a production function: the slot value and an
// optional teardown bound to it. A teardown returned together with an
// error runs at once.
type State[T any] struct {
	Value    T
	Teardown TeardownFunc
}

// StateOf wraps a value that needs no teardown.
func StateOf[T any](v T) State[T] {
	return State[T]{Value: v}
}

// Transition produces one state slot from its dependencies. Build one with
// Start, Provide, Derive, Derive2, Derive3 or New.
type Transition interface {
	Produces() ID
	DependsOn() []ID
	Describe() string
	produce(ctx context.Context, l Lookup) (any, TeardownFunc, error)
}

type transition struct {
	produces ID
	deps     []ID
	kind     string
	fn       func(ctx context.Context, l Lookup) (any, TeardownFunc, error)
}

func (t *transition) Produces() ID    { return t.produces }
func (t *transition) DependsOn() []ID { return append([]ID(nil), t.deps...) }

func (t *transition) Describe() string {
	if len(t.deps) == 0 {
		return fmt.Sprintf("%s %s", t.kind, t.produces)
	}
	names := make([]string, len(t.deps))
	for i, d := range t.deps {
		names[i] = d.String()
	}
	return fmt.Sprintf("%s %s <- %s", t.kind, t.produces, strings.Join(names, ", "))
}

func (t *transition) produce(ctx context.Context, l Lookup) (any, TeardownFunc, error) {
	return t.fn(ctx, l)
}

func wrap[T any](fn func(ctx context.Context, l Lookup) (State[T], error)) func(context.Context, Lookup) (any, TeardownFunc, error) {
	return func(ctx context.Context, l Lookup) (any, TeardownFunc, error) {
		s, err := fn(ctx, l)
		if err != nil {
			// A failed slot is never recorded, so whatever it acquired
			// before failing is released here.
			if s.Teardown != nil {
				if terr := runTeardown(context.WithoutCancel(ctx), s.Teardown); terr != nil {
					err = errors.Join(err, fmt.Errorf("releasing partial state: %w", terr))
				}
			}
			return nil, nil, err
		}
		return s.Value, s.Teardown, nil
	}
}

// Provide makes a fixed value available as slot k.
func Provide[T any](k Key[T], v T) Transition {
	return &transition{
		produces: k.id,
		kind:     "provide",
		fn: func(context.Context, Lookup) (any, TeardownFunc, error) {
			return v, nil, nil
		},
	}
}

// Start produces slot k without dependencies.
func Start[T any](k Key[T], fn func(ctx context.Context) (State[T], error)) Transition {
	return &transition{
		produces: k.id,
		kind:     "start",
		fn: wrap(func(ctx context.Context, _ Lookup) (State[T], error) {
			return fn(ctx)
		}),
	}
}

// Derive produces slot k from slot a.
func Derive[A, T any](k Key[T], a Key[A], fn func(ctx context.Context, a A) (State[T], error)) Transition {
	return &transition{
		produces: k.id,
		deps:     []ID{a.id},
		kind:     "derive",
		fn: wrap(func(ctx context.Context, l Lookup) (State[T], error) {
			return fn(ctx, MustGet(l, a))
		}),
	}
}

// Derive2 produces slot k from slots a and b.
func Derive2[A, B, T any](k Key[T], a Key[A], b Key[B], fn func(ctx context.Context, a A, b B) (State[T], error)) Transition {
	return &transition{
		produces: k.id,
		deps:     []ID{a.id, b.id},
		kind:     "derive",
		fn: wrap(func(ctx context.Context, l Lookup) (State[T], error) {
			return fn(ctx, MustGet(l, a), MustGet(l, b))
		}),
	}
}

// Derive3 produces slot k from slots a, b and c.
func Derive3[A, B, C, T any](k Key[T], a Key[A], b Key[B], c Key[C], fn func(ctx context.Context, a A, b B, c C) (State[T], error)) Transition {
	return &transition{
		produces: k.id,
		deps:     []ID{a.id, b.id, c.id},
		kind:     "derive",
		fn: wrap(func(ctx context.Context, l Lookup) (State[T], error) {
			return fn(ctx, MustGet(l, a), MustGet(l, b), MustGet(l, c))
		}),
	}
}

// New is the general form: fn reads any of deps through the Lookup.
func New[T any](k Key[T], deps []ID, fn func(ctx context.Context, l Lookup) (State[T], error)) Transition {
	return &transition{
		produces: k.id,
		deps:     append([]ID(nil), deps...),
		kind:     "new",
		fn:       wrap(fn),
	}
}
