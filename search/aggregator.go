package search

import (
	"context"
	"sync"
	"time"

	"music-bot-go/circuitbreaker"
	"music-bot-go/config"
	"music-bot-go/logcolors"
	"music-bot-go/proxy"
	"music-bot-go/search/providers"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// OutcomeKind says how an aggregated search ended.
type OutcomeKind int

const (
	// OutcomeEmpty means nothing usable was found.
	OutcomeEmpty OutcomeKind = iota
	// OutcomeResolved means a single best track was chosen and can be
	// delivered without asking the user.
	OutcomeResolved
	// OutcomeChoices means several candidates survived; the user picks.
	OutcomeChoices
)

// Outcome is the result of fanning one query out to every provider.
type Outcome struct {
	Kind    OutcomeKind
	Track   providers.Track   // set when Kind == OutcomeResolved
	Choices []providers.Track // set when Kind == OutcomeChoices
}

// pageFetcher retrieves and parses one provider's search page.
type pageFetcher interface {
	FetchPage(ctx context.Context, p providers.Provider, query string) (*html.Node, error)
}

// Aggregator fans a query out to all registered providers concurrently. The
// first exact match wins and cancels the rest; otherwise partial matches
// from every provider are merged, ranked and offered as choices.
type Aggregator struct {
	fetcher  pageFetcher
	breakers *circuitbreaker.Group
	registry *providers.Registry
}

// NewAggregator builds the aggregator from the loaded configuration.
func NewAggregator(resolver *proxy.Resolver) *Aggregator {
	cfg := config.Get()
	return &Aggregator{
		fetcher: NewFetcher(resolver, time.Duration(cfg.Search.ProviderTimeoutSecs)*time.Second),
		breakers: circuitbreaker.NewGroup(circuitbreaker.Config{
			Threshold: cfg.Search.CircuitThreshold,
			Cooldown:  time.Duration(cfg.Search.CircuitCooldownSecs) * time.Second,
		}),
		registry: providers.GetRegistry(),
	}
}

// Breakers exposes the per-provider circuit breakers for reporting.
func (a *Aggregator) Breakers() *circuitbreaker.Group {
	return a.breakers
}

// Search looks the query up on every provider. durationHint, when positive,
// ranks candidates by closeness to the expected track length.
func (a *Aggregator) Search(ctx context.Context, query string, durationHint int) Outcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	normalizedQuery := Normalize(query)
	provs := a.registry.All()

	type providerResult struct {
		exact, partial []providers.Track
	}
	// Buffered so providers finishing after an early exit never block.
	results := make(chan providerResult, len(provs))

	var wg sync.WaitGroup
	for _, p := range provs {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			tracks := a.searchProvider(ctx, p, query)
			exact, partial := Partition(tracks, normalizedQuery)
			results <- providerResult{exact: exact, partial: partial}
		}(p)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var partials []providers.Track
	for r := range results {
		partials = append(partials, r.partial...)

		if len(r.exact) > 0 {
			// Exact match short-circuits: remaining providers are cancelled.
			SortByClosestDuration(r.exact, durationHint)
			log.Infof("%s Exact match for %q, cancelling remaining providers", logcolors.LogMatch, query)
			return Outcome{Kind: OutcomeResolved, Track: r.exact[0]}
		}
	}

	SortByClosestDuration(partials, durationHint)
	unique := Dedupe(partials)

	switch len(unique) {
	case 0:
		log.Infof("%s No matches for %q", logcolors.LogSearch, query)
		return Outcome{Kind: OutcomeEmpty}
	case 1:
		// A single survivor needs no selection round.
		return Outcome{Kind: OutcomeResolved, Track: unique[0]}
	default:
		log.Infof("%s %d candidates for %q after dedupe", logcolors.LogSearch, len(unique), query)
		return Outcome{Kind: OutcomeChoices, Choices: unique}
	}
}

// searchProvider runs one provider behind its circuit breaker. Failures are
// absorbed; a provider that errors contributes nothing to the result set.
func (a *Aggregator) searchProvider(ctx context.Context, p providers.Provider, query string) []providers.Track {
	breaker := a.breakers.Get(p.Name())
	if !breaker.Allow() {
		log.Warnf("%s Skipping %s, circuit breaker is open", logcolors.Provider(p.Name()), p.Name())
		return nil
	}

	doc, err := a.fetcher.FetchPage(ctx, p, query)
	if err != nil {
		if ctx.Err() == nil {
			// Cancellation after an exact match elsewhere is not a failure.
			breaker.RecordFailure()
			log.Warnf("%s Search failed: %v", logcolors.Provider(p.Name()), err)
		}
		return nil
	}
	breaker.RecordSuccess()

	tracks := p.Extract(doc)
	log.Infof("%s Extracted %d tracks for %q", logcolors.Provider(p.Name()), len(tracks), query)
	return tracks
}
