package transition

import (
	"context"
	"fmt"
	"sync"
)

// Status is the lifecycle of one slot within a Handle.
type Status int

const (
	Undefined Status = iota
	Building
	Built
	TornDown
)

func (s Status) String() string {
	switch s {
	case Undefined:
		return "undefined"
	case Building:
		return "building"
	case Built:
		return "built"
	case TornDown:
		return "torn down"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type builtSlot struct {
	id       ID
	teardown TeardownFunc
}

// Handle owns the slots built for one target. Release it exactly once on
// every exit path.
type Handle[T any] struct {
	graph  *Graph
	target Key[T]

	mu     sync.Mutex
	built  []builtSlot
	values map[ID]any
	status map[ID]Status
}

// Init builds target and everything it depends on, each slot exactly once.
// If a production function fails, the slots already built are torn down in
// reverse order and a *StateConstructionError naming the failing slot is
// returned.
func Init[T any](ctx context.Context, g *Graph, target Key[T]) (*Handle[T], error) {
	plan, err := g.Plan(target.id)
	if err != nil {
		return nil, err
	}

	h := &Handle[T]{
		graph:  g,
		target: target,
		values: make(map[ID]any, len(plan)),
		status: make(map[ID]Status, len(plan)),
	}
	for _, id := range plan {
		if err := h.build(ctx, id); err != nil {
			rollbackErr := h.teardown(context.WithoutCancel(ctx))
			h.status[id] = Undefined
			g.logger.Error("state construction failed", "state", id.String(), "error", err)
			return nil, &StateConstructionError{ID: id, Err: err, Rollback: rollbackErr}
		}
	}
	return h, nil
}

func (h *Handle[T]) build(ctx context.Context, id ID) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := h.graph.producers[id]
	deps := t.DependsOn()
	l := Lookup{values: make(map[ID]any, len(deps))}
	for _, dep := range deps {
		l.values[dep] = h.values[dep]
	}

	h.status[id] = Building
	h.graph.logger.Debug("building state", "state", id.String())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	v, teardown, err := t.produce(ctx, l)
	if err != nil {
		return err
	}

	h.values[id] = v
	h.status[id] = Built
	h.built = append(h.built, builtSlot{id: id, teardown: teardown})
	return nil
}

// teardown runs every recorded teardown in reverse construction order and
// keeps going past failures.
func (h *Handle[T]) teardown(ctx context.Context) error {
	var failures []TeardownFailure
	for i := len(h.built) - 1; i >= 0; i-- {
		slot := h.built[i]
		if slot.teardown != nil {
			h.graph.logger.Debug("tearing down state", "state", slot.id.String())
			if err := runTeardown(ctx, slot.teardown); err != nil {
				h.graph.logger.Warn("teardown failed", "state", slot.id.String(), "error", err)
				failures = append(failures, TeardownFailure{ID: slot.id, Err: err})
			}
		}
		h.status[slot.id] = TornDown
		delete(h.values, slot.id)
	}
	h.built = nil
	if len(failures) > 0 {
		return &TeardownError{Failures: failures}
	}
	return nil
}

func runTeardown(ctx context.Context, fn TeardownFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Current returns the target value. After Release it is the zero value.
func (h *Handle[T]) Current() T {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, _ := h.values[h.target.id].(T)
	return v
}

// Lookup exposes every built slot. Use Get to read from it.
func (h *Handle[T]) Lookup() Lookup {
	h.mu.Lock()
	defer h.mu.Unlock()
	values := make(map[ID]any, len(h.values))
	for id, v := range h.values {
		values[id] = v
	}
	return Lookup{values: values}
}

// Status returns the lifecycle of slot id. Slots outside the target's plan
// stay Undefined.
func (h *Handle[T]) Status(id ID) Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status[id]
}

// Built returns the built slots in construction order.
func (h *Handle[T]) Built() []ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]ID, len(h.built))
	for i, s := range h.built {
		ids[i] = s.id
	}
	return ids
}

// Release tears every slot down in reverse construction order. Failures
// are collected into a *TeardownError; the sweep never stops early.
// Calling Release again is a no-op.
func (h *Handle[T]) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.teardown(ctx)
}
