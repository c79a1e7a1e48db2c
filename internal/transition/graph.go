package transition

import (
	"fmt"
	"strings"

	"github.com/tsukumogami/embeddb/internal/log"
)

// Graph is a validated set of transitions: every dependency has exactly one
// producer and there are no cycles.
type Graph struct {
	producers map[ID]Transition
	order     []ID
	logger    log.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used while building and tearing down.
func WithLogger(l log.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// NewGraph validates transitions and returns the graph. Nothing is built.
func NewGraph(transitions []Transition, opts ...Option) (*Graph, error) {
	g := &Graph{producers: make(map[ID]Transition, len(transitions))}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = log.For(g.logger, "transition")

	for i, t := range transitions {
		if t == nil {
			return nil, fmt.Errorf("invalid transition graph: transition %d is nil", i)
		}
		id := t.Produces()
		if prev, ok := g.producers[id]; ok {
			return nil, &GraphDefinitionError{
				Problem: DuplicateProducer,
				IDs:     []ID{id},
				Detail:  fmt.Sprintf("%q and %q", prev.Describe(), t.Describe()),
			}
		}
		g.producers[id] = t
		g.order = append(g.order, id)
	}

	for _, id := range g.order {
		for _, dep := range g.producers[id].DependsOn() {
			if _, ok := g.producers[dep]; !ok {
				return nil, &GraphDefinitionError{
					Problem: DanglingDependency,
					IDs:     []ID{dep},
					Detail:  "required by " + id.String(),
				}
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &GraphDefinitionError{Problem: Cycle, IDs: cycle}
	}
	return g, nil
}

const (
	unvisited = iota
	visiting
	done
)

// findCycle walks the graph depth-first in declaration order and returns the
// first cycle found, closed by repeating its first slot.
func (g *Graph) findCycle() []ID {
	color := make(map[ID]int, len(g.order))
	var stack []ID

	var visit func(id ID) []ID
	visit = func(id ID) []ID {
		switch color[id] {
		case done:
			return nil
		case visiting:
			for i, s := range stack {
				if s == id {
					return append(append([]ID(nil), stack[i:]...), id)
				}
			}
			return []ID{id, id}
		}
		color[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.producers[id].DependsOn() {
			if c := visit(dep); c != nil {
				return c
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = done
		return nil
	}

	for _, id := range g.order {
		if c := visit(id); c != nil {
			return c
		}
	}
	return nil
}

// Has reports whether some transition produces id.
func (g *Graph) Has(id ID) bool {
	_, ok := g.producers[id]
	return ok
}

// Plan returns the slots needed for target in construction order:
// dependencies before dependents, siblings in declaration order.
func (g *Graph) Plan(target ID) ([]ID, error) {
	if !g.Has(target) {
		return nil, &GraphDefinitionError{Problem: UnknownTarget, IDs: []ID{target}}
	}
	seen := make(map[ID]bool)
	var plan []ID
	var visit func(id ID)
	visit = func(id ID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, dep := range g.producers[id].DependsOn() {
			visit(dep)
		}
		plan = append(plan, id)
	}
	visit(target)
	return plan, nil
}

// Explain renders the construction plan for target, one transition per
// line.
func (g *Graph) Explain(target ID) (string, error) {
	plan, err := g.Plan(target)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, id := range plan {
		fmt.Fprintf(&b, "%2d. %s\n", i+1, g.producers[id].Describe())
	}
	return b.String(), nil
}
