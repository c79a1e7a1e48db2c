// Package transition builds sets of interdependent runtime objects from a
// declarative graph of typed state slots.
//
// Each Transition produces exactly one slot from the slots it depends on.
// A Graph is validated as a whole before anything runs; Init then builds
// the slots a target needs in dependency order, and Release tears them down
// in exactly the reverse order. A failure while building rolls back every
// slot already built before the error is returned.
package transition

import (
	"fmt"
	"reflect"
)

// ID identifies a state slot: a Go type plus an optional label, so that two
// values of the same type can coexist in one graph.
type ID struct {
	typ   reflect.Type
	label string
}

// String renders the slot as "pkg.Type" or "pkg.Type:label".
func (id ID) String() string {
	name := "<nil>"
	if id.typ != nil {
		name = id.typ.String()
	}
	if id.label == "" {
		return name
	}
	return name + ":" + id.label
}

// Label returns the slot label, which is empty for unlabelled slots.
func (id ID) Label() string {
	return id.label
}

// Key is the typed handle of a slot. Two keys are the same slot when their
// type and label match.
type Key[T any] struct {
	id ID
}

// Of returns the unlabelled key for T.
func Of[T any]() Key[T] {
	return Key[T]{id: ID{typ: reflect.TypeOf((*T)(nil)).Elem()}}
}

// Labeled returns the key for T with the given label.
func Labeled[T any](label string) Key[T] {
	return Key[T]{id: ID{typ: reflect.TypeOf((*T)(nil)).Elem(), label: label}}
}

// ID returns the untyped slot identity.
func (k Key[T]) ID() ID {
	return k.id
}

func (k Key[T]) String() string {
	return k.id.String()
}

// Lookup gives a production function access to the values of the slots it
// declared as dependencies.
type Lookup struct {
	values map[ID]any
}

// Get returns the value of k from l. Reading a slot that was not declared
// as a dependency is an error.
func Get[T any](l Lookup, k Key[T]) (T, error) {
	var zero T
	v, ok := l.values[k.id]
	if !ok {
		return zero, fmt.Errorf("state %s is not available here; declare it as a dependency", k)
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("state %s holds %T", k, v)
	}
	return t, nil
}

// MustGet is Get for dependencies that are known to be declared.
func MustGet[T any](l Lookup, k Key[T]) T {
	v, err := Get(l, k)
	if err != nil {
		panic(err)
	}
	return v
}
