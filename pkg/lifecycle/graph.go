package lifecycle

import (
	"fmt"
	"sort"
)

// Config describes a lifecycle.
type Config struct {
	// States are the user declared lifecycle states.
	States []*State

	// Initial is the state every module starts in.
	Initial *State

	// Failed is the state modules are routed to on unrecoverable failures.
	Failed *State
}

// Graph is an immutable catalog of lifecycle states.
type Graph struct {
	states  map[string]*State
	names   []string
	initial *State
	failed  *State
}

// NewGraph validates cfg and builds a Graph. The initial and failed states are
// always part of the graph, whether or not they appear in cfg.States.
func NewGraph(cfg Config) (*Graph, error) {
	if cfg.Initial == nil || cfg.Initial.Name == "" {
		return nil, fmt.Errorf("%w: initial state is required", ErrInvalidState)
	}
	if cfg.Failed == nil || cfg.Failed.Name == "" {
		return nil, fmt.Errorf("%w: failed state is required", ErrInvalidState)
	}

	g := &Graph{
		states:  make(map[string]*State, len(cfg.States)+2),
		initial: cfg.Initial,
		failed:  cfg.Failed,
	}

	all := make([]*State, 0, len(cfg.States)+2)
	all = append(all, cfg.Initial, cfg.Failed)
	all = append(all, cfg.States...)

	for _, s := range all {
		if s == nil || s.Name == "" {
			return nil, fmt.Errorf("%w: state without a name", ErrInvalidState)
		}
		if existing, ok := g.states[s.Name]; ok {
			if existing == s {
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrDuplicateState, s.Name)
		}
		g.states[s.Name] = s
		g.names = append(g.names, s.Name)
	}

	for _, name := range g.names {
		s := g.states[name]
		for _, former := range s.From {
			if _, ok := g.states[former]; !ok {
				return nil, fmt.Errorf("%w: state %q lists %q", ErrUnknownFormerState, s.Name, former)
			}
		}
	}

	sort.Strings(g.names)
	return g, nil
}

// Initial returns the state modules start in.
func (g *Graph) Initial() *State { return g.initial }

// Failed returns the state modules are routed to on failure.
func (g *Graph) Failed() *State { return g.failed }

// State returns the state registered under name.
func (g *Graph) State(name string) (*State, bool) {
	s, ok := g.states[name]
	return s, ok
}

// Lookup is like State but returns ErrUnknownState for missing names.
func (g *Graph) Lookup(name string) (*State, error) {
	s, ok := g.states[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
	return s, nil
}

// Contains reports whether s is the state registered under its name.
func (g *Graph) Contains(s *State) bool {
	if s == nil {
		return false
	}
	return g.states[s.Name] == s
}

// Names returns all state names in sorted order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// States returns all states sorted by name.
func (g *Graph) States() []*State {
	out := make([]*State, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.states[name])
	}
	return out
}
