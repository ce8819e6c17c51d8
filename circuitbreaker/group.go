package circuitbreaker

import (
	"sort"
	"sync"
)

// Group manages one breaker per upstream name, all sharing a template
// configuration.
type Group struct {
	template Config

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewGroup creates a breaker group. The template's Name field is ignored;
// each breaker is named after its upstream.
func NewGroup(template Config) *Group {
	return &Group{
		template: template,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (g *Group) Get(name string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[name]
	if !ok {
		cfg := g.template
		cfg.Name = name
		cb = New(cfg)
		g.breakers[name] = cb
	}
	return cb
}

// Snapshots returns the state of every breaker, sorted by name.
func (g *Group) Snapshots() []Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Snapshot, 0, len(g.breakers))
	for _, cb := range g.breakers {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResetAll closes every breaker in the group.
func (g *Group) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, cb := range g.breakers {
		cb.Reset()
	}
}
