package lifecycle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheCost bounds the path cache. A chain of n states costs n+1.
const DefaultCacheCost = 4096

// CacheMetrics receives path cache statistics. Implementations must be safe
// for concurrent use.
type CacheMetrics interface {
	PathCacheHit()
	PathCacheMiss()
}

// ResolverOption configures a Resolver.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	maxCost int64
	metrics CacheMetrics
}

// WithCacheCost sets the maximum total cost of cached chains.
func WithCacheCost(cost int64) ResolverOption {
	return func(o *resolverOptions) {
		if cost > 0 {
			o.maxCost = cost
		}
	}
}

// WithCacheMetrics reports cache hits and misses to m.
func WithCacheMetrics(m CacheMetrics) ResolverOption {
	return func(o *resolverOptions) {
		o.metrics = m
	}
}

// pathResult is what the cache stores. A miss and "no path" are distinct.
type pathResult struct {
	chain []*State
	found bool
}

// Resolver computes shortest transition chains through a Graph.
// Results are memoized in an evictable cache; an evicted entry is simply
// recomputed. Resolver is safe for concurrent use.
type Resolver struct {
	graph   *Graph
	cache   *ristretto.Cache[string, pathResult]
	group   singleflight.Group
	metrics CacheMetrics
}

// NewResolver creates a Resolver for g.
func NewResolver(g *Graph, opts ...ResolverOption) (*Resolver, error) {
	o := resolverOptions{maxCost: DefaultCacheCost}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, pathResult]{
		NumCounters:        o.maxCost * 10,
		MaxCost:            o.maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create path cache: %w", err)
	}

	return &Resolver{
		graph:   g,
		cache:   cache,
		metrics: o.metrics,
	}, nil
}

// Graph returns the graph the resolver walks.
func (r *Resolver) Graph() *Graph { return r.graph }

// Close releases the cache.
func (r *Resolver) Close() {
	r.cache.Close()
}

// PathTo returns the shortest chain of states leading from `from` to `to`.
// The chain excludes `from` and ends with `to`; from == to yields an empty
// chain. ErrNoPath is returned when `to` cannot be reached.
func (r *Resolver) PathTo(from, to *State) ([]*State, error) {
	if !r.graph.Contains(from) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, stateName(from))
	}
	if !r.graph.Contains(to) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownState, stateName(to))
	}
	if from == to {
		return []*State{}, nil
	}

	key := from.Name + "\x00" + to.Name
	if res, ok := r.cache.Get(key); ok {
		r.hit()
		return res.lookup(from, to)
	}
	r.miss()

	v, _, _ := r.group.Do(key, func() (any, error) {
		res := search(r.graph, from, to)
		r.cache.Set(key, res, int64(len(res.chain)+1))
		return res, nil
	})
	return v.(pathResult).lookup(from, to)
}

// Reached reports whether a module currently in `current` has reached or
// passed `target`: either they are the same state, or `target` lies on a
// chain leading into `current`. This is only well defined for lifecycles with
// a unique forward path between live states.
func (r *Resolver) Reached(current, target *State) (bool, error) {
	if current == target {
		return true, nil
	}
	_, err := r.PathTo(target, current)
	if errors.Is(err, ErrNoPath) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func stateName(s *State) string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

func (r *Resolver) hit() {
	if r.metrics != nil {
		r.metrics.PathCacheHit()
	}
}

func (r *Resolver) miss() {
	if r.metrics != nil {
		r.metrics.PathCacheMiss()
	}
}

// lookup turns a stored result into a fresh chain or ErrNoPath.
// Callers get their own copy so the cached slice stays untouched.
func (p pathResult) lookup(from, to *State) ([]*State, error) {
	if !p.found {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoPath, from.Name, to.Name)
	}
	out := make([]*State, len(p.chain))
	copy(out, p.chain)
	return out, nil
}

// branch is one partial backward path. back[0] is the search target and
// back[len-1] is the state whose former states get explored next.
type branch struct {
	back []*State
}

func (b branch) head() *State { return b.back[len(b.back)-1] }

func (b branch) contains(s *State) bool {
	for _, v := range b.back {
		if v == s {
			return true
		}
	}
	return false
}

// pathSearch collects the best backward path found so far.
type pathSearch struct {
	mu   sync.Mutex
	best []*State
}

// offer records path if no path at least as short was recorded first.
func (ps *pathSearch) offer(path []*State) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.best == nil || len(path) < len(ps.best) {
		ps.best = path
	}
}

// search expands former-state links backwards from `to`, one level at a time.
// All branches of a level are explored concurrently. The first level that
// reaches `from` holds the minimal paths; the first branch to record one wins.
func search(g *Graph, from, to *State) pathResult {
	ps := &pathSearch{}
	visited := map[*State]bool{to: true}
	frontier := []branch{{back: []*State{to}}}

	for len(frontier) > 0 {
		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			next []branch
		)

		for _, b := range frontier {
			wg.Add(1)
			go func(b branch) {
				defer wg.Done()
				for _, name := range b.head().From {
					former, ok := g.states[name]
					if !ok || b.contains(former) {
						continue
					}
					if former == from {
						ps.offer(b.back)
						continue
					}

					mu.Lock()
					if visited[former] {
						mu.Unlock()
						continue
					}
					visited[former] = true
					back := make([]*State, len(b.back), len(b.back)+1)
					copy(back, b.back)
					next = append(next, branch{back: append(back, former)})
					mu.Unlock()
				}
			}(b)
		}
		wg.Wait()

		if ps.best != nil {
			break
		}
		frontier = next
	}

	if ps.best == nil {
		return pathResult{found: false}
	}

	chain := make([]*State, len(ps.best))
	for i, s := range ps.best {
		chain[len(ps.best)-1-i] = s
	}
	return pathResult{chain: chain, found: true}
}
