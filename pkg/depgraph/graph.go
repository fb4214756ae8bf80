package depgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Edge means From depends on To.
type Edge struct {
	From string
	To   string
}

// String returns "from -> to".
func (e Edge) String() string { return e.From + " -> " + e.To }

// Warning is a non-fatal finding of a reload, such as a missing recommended
// dependency.
type Warning struct {
	Module      string
	Declaration Declaration
}

// Report is the outcome of a reload.
type Report struct {
	// Failures maps module names to the reason their build failed.
	Failures map[string]error

	// Warnings lists findings that did not fail a module, in module order.
	Warnings []Warning
}

// Failed reports whether the named module failed to build.
func (r *Report) Failed(name string) bool {
	_, ok := r.Failures[name]
	return ok
}

// Graph holds dependency edges between registered modules.
// Readers are safe for concurrent use; Reload excludes them.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

type node struct {
	name string
	// deps holds the modules this node depends on.
	deps map[string]struct{}
	// dependents holds the modules depending on this node.
	dependents map[string]struct{}
}

// resolution is what phase two derives for one module.
type resolution struct {
	edges    []Edge
	warnings []Warning
	err      error
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// Reload rebuilds the graph from scratch for the given registry, mapping
// module names to their declarations in order.
//
// The rebuild runs in two phases separated by a barrier: every module's edge
// sets are cleared, then every module's declarations are resolved against the
// registry. Edges recorded before a module's build fails are kept. Members of
// dependency cycles are reported as failures.
//
// The returned error is non-nil only if ctx is cancelled; build failures are
// part of the Report.
func (g *Graph) Reload(ctx context.Context, modules map[string][]string) (*Report, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name := range g.nodes {
		if _, ok := modules[name]; !ok {
			delete(g.nodes, name)
		}
	}
	for name := range modules {
		if _, ok := g.nodes[name]; !ok {
			g.nodes[name] = &node{name: name}
		}
	}

	reset, cctx := errgroup.WithContext(ctx)
	for _, n := range g.nodes {
		reset.Go(func() error {
			if err := cctx.Err(); err != nil {
				return err
			}
			n.deps = make(map[string]struct{})
			n.dependents = make(map[string]struct{})
			return nil
		})
	}
	if err := reset.Wait(); err != nil {
		return nil, err
	}

	names := sortedKeys(modules)
	results := make([]resolution, len(names))

	build, bctx := errgroup.WithContext(ctx)
	for i, name := range names {
		build.Go(func() error {
			if err := bctx.Err(); err != nil {
				return err
			}
			results[i] = resolve(name, modules[name], modules)
			return nil
		})
	}
	if err := build.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Failures: make(map[string]error)}
	for i, name := range names {
		res := results[i]
		for _, e := range res.edges {
			g.nodes[e.From].deps[e.To] = struct{}{}
			g.nodes[e.To].dependents[e.From] = struct{}{}
		}
		report.Warnings = append(report.Warnings, res.warnings...)
		if res.err != nil {
			report.Failures[name] = res.err
		}
	}

	for _, cycle := range g.cycles() {
		for _, name := range cycle {
			if report.Failed(name) {
				continue
			}
			report.Failures[name] = fmt.Errorf("%w: %v", ErrDependencyCycle, cycle)
		}
	}

	return report, nil
}

// resolve derives the edges declared by module owner. Building stops at the
// first declaration that fails the module.
func resolve(owner string, decls []string, registry map[string][]string) resolution {
	var res resolution
	for _, raw := range decls {
		d, err := Parse(raw)
		if err != nil {
			res.err = fmt.Errorf("module %q: %w", owner, err)
			return res
		}

		_, present := registry[d.Target]
		switch d.Priority {
		case Incompatible:
			if present {
				res.err = fmt.Errorf("%w: module %q declares %q", ErrIncompatiblePresent, owner, raw)
				return res
			}
			continue
		case Required:
			if !present {
				res.err = fmt.Errorf("%w: module %q declares %q", ErrMissingRequired, owner, raw)
				return res
			}
		case Recommended:
			if !present {
				res.warnings = append(res.warnings, Warning{Module: owner, Declaration: d})
				continue
			}
		case Optional:
			if !present {
				continue
			}
		}

		if d.Target == owner {
			continue
		}
		res.edges = append(res.edges, d.edge(owner))
	}
	return res
}

// Dependencies returns the modules name depends on, sorted.
func (g *Graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return sortedKeys(n.deps)
}

// Dependents returns the modules depending on name, sorted.
func (g *Graph) Dependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	return sortedKeys(n.dependents)
}

// Edges returns every edge sorted by From, then To.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for _, name := range sortedKeys(g.nodes) {
		for _, dep := range sortedKeys(g.nodes[name].deps) {
			edges = append(edges, Edge{From: name, To: dep})
		}
	}
	return edges
}

// cycles returns the strongly connected components with more than one member,
// each sorted. Callers must hold g.mu.
func (g *Graph) cycles() [][]string {
	var (
		index   int
		indices = make(map[string]int, len(g.nodes))
		lowlink = make(map[string]int, len(g.nodes))
		onStack = make(map[string]bool, len(g.nodes))
		stack   []string
		out     [][]string
	)

	var connect func(name string)
	connect = func(name string) {
		indices[name] = index
		lowlink[name] = index
		index++
		stack = append(stack, name)
		onStack[name] = true

		for _, dep := range sortedKeys(g.nodes[name].deps) {
			if _, seen := indices[dep]; !seen {
				connect(dep)
				lowlink[name] = min(lowlink[name], lowlink[dep])
			} else if onStack[dep] {
				lowlink[name] = min(lowlink[name], indices[dep])
			}
		}

		if lowlink[name] != indices[name] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == name {
				break
			}
		}
		if len(component) > 1 {
			sort.Strings(component)
			out = append(out, component)
		}
	}

	for _, name := range sortedKeys(g.nodes) {
		if _, seen := indices[name]; !seen {
			connect(name)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
