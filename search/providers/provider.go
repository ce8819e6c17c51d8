package providers

import (
	"fmt"
	"sync"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
)

// Provider defines the interface that all music search providers must
// implement. A provider wraps one third-party site: it knows how to build a
// search URL for a query and how to read tracks out of the result page.
type Provider interface {
	// Name returns the provider's identifier (e.g., "mp3iq.net")
	Name() string

	// SearchURL builds the full search URL for the given query
	SearchURL(query string) (string, error)

	// Headers returns the request headers the site expects
	Headers() map[string]string

	// ProxyKind returns the egress route requests to this site must use
	ProxyKind() proxy.Kind

	// ManualRedirect reports whether redirects must be followed by hand,
	// re-sending the request headers to the redirect target
	ManualRedirect() bool

	// Extract reads all tracks out of a parsed search result page.
	// Incomplete rows are dropped, not reported as errors.
	Extract(doc *html.Node) []Track
}

// Registry holds all registered providers
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
}

// NewRegistry creates an empty registry. Most callers use the global one;
// separate registries exist for tests and partial provider sets.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

// GetRegistry returns the global provider registry
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Register adds a provider to the registry. Registration order is preserved
// so searches fan out in a stable order.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return p, nil
}

// All returns every registered provider in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// List returns all registered provider names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Register is a convenience function to register a provider in the global registry
func Register(p Provider) {
	GetRegistry().Register(p)
}

// All is a convenience function to list every provider in the global registry
func All() []Provider {
	return GetRegistry().All()
}

// RegisterDefaults registers the full built-in provider set.
func RegisterDefaults() {
	Register(NewMuzikaFun())
	Register(NewMp3iq())
	Register(NewMp3party())
	Register(NewMuzyet())
	Register(NewSkysound())
}
