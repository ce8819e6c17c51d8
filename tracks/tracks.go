package tracks

import (
	"context"
	"fmt"
	"sync"
)

// TrackInfo is the metadata resolved from a streaming service link. It both
// feeds the info card shown to the user and seeds the download search.
type TrackInfo struct {
	Artist     string
	Title      string
	Duration   int // seconds
	CoverURL   string
	AlbumTitle string
	AlbumYear  string
	SourceURL  string
}

// Query returns the search string used to find a downloadable copy.
func (i TrackInfo) Query() string {
	return i.Artist + " - " + i.Title
}

// Resolver resolves a track id on one streaming service into metadata.
type Resolver interface {
	// Service returns the identifier the classifier uses, e.g. "yandex".
	Service() string

	// Resolve fetches the track's metadata. sourceURL is the link the user
	// sent, kept for attribution and for services whose short links need
	// expanding.
	Resolve(ctx context.Context, trackID, sourceURL string) (*TrackInfo, error)
}

// Registry maps service names to resolvers.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

func (r *Registry) Register(res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[res.Service()] = res
}

// Get returns the resolver for a service name.
func (r *Registry) Get(service string) (Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resolvers[service]
	if !ok {
		return nil, fmt.Errorf("unknown music service %q", service)
	}
	return res, nil
}
