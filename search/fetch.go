package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"music-bot-go/logcolors"
	"music-bot-go/proxy"
	"music-bot-go/search/providers"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// Fetcher retrieves and parses provider search pages through the egress
// route each provider declares.
type Fetcher struct {
	resolver *proxy.Resolver
	timeout  time.Duration

	// torRetries bounds attempts against tor-routed sites, requesting a
	// fresh circuit between them.
	torRetries int
}

func NewFetcher(resolver *proxy.Resolver, timeout time.Duration) *Fetcher {
	return &Fetcher{resolver: resolver, timeout: timeout, torRetries: 3}
}

// FetchPage runs the provider's search and returns the parsed result page.
// When the provider's egress route is unavailable no request is made; the
// real IP must never leak to a site that expects a proxy.
func (f *Fetcher) FetchPage(ctx context.Context, p providers.Provider, query string) (*html.Node, error) {
	searchURL, err := p.SearchURL(query)
	if err != nil {
		return nil, providers.NewProviderError(p.Name(), "building search url", err)
	}

	client, err := f.resolver.Client(p.ProxyKind(), f.timeout)
	if err != nil {
		return nil, providers.NewProviderError(p.Name(), "egress route unavailable", err)
	}

	attempts := 1
	if p.ProxyKind() == proxy.KindTor {
		attempts = f.torRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := f.resolver.RenewTorIdentity(); err != nil {
				log.Warnf("%s Tor identity renewal failed: %v", logcolors.LogTor, err)
			}
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		doc, err := f.fetchOnce(ctx, p, client, searchURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		log.Warnf("%s Attempt %d/%d against %s failed: %v", logcolors.LogHTTP, attempt+1, attempts, p.Name(), err)
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, p providers.Provider, client *http.Client, searchURL string) (*html.Node, error) {
	body, err := f.get(ctx, p, client, searchURL, p.ManualRedirect())
	if err != nil {
		return nil, providers.NewProviderError(p.Name(), "search request", err)
	}
	defer body.Close()

	doc, err := html.Parse(body)
	if err != nil {
		return nil, providers.NewProviderError(p.Name(), "parsing result page", err)
	}
	return doc, nil
}

func (f *Fetcher) get(ctx context.Context, p providers.Provider, client *http.Client, rawURL string, manualRedirect bool) (io.ReadCloser, error) {
	resp, err := f.do(ctx, p, client, rawURL, manualRedirect)
	if err != nil {
		return nil, err
	}

	if manualRedirect && isRedirect(resp.StatusCode) {
		location := resp.Header.Get("Location")
		resp.Body.Close()
		if location == "" {
			return nil, fmt.Errorf("redirect from %s without a Location header", rawURL)
		}
		target, err := resolveRedirect(rawURL, location)
		if err != nil {
			return nil, err
		}
		log.Infof("%s %s redirected to %s", logcolors.LogHTTP, p.Name(), target)
		resp, err = f.do(ctx, p, client, target, false)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) do(ctx context.Context, p providers.Provider, client *http.Client, rawURL string, stopAtRedirect bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.Headers() {
		req.Header.Set(k, v)
	}

	if stopAtRedirect {
		// Stop the client from chasing the redirect itself; the target needs
		// the same custom headers re-applied.
		redirectStopper := *client
		redirectStopper.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return redirectStopper.Do(req)
	}
	return client.Do(req)
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveRedirect(from, location string) (string, error) {
	base, err := url.Parse(from)
	if err != nil {
		return "", err
	}
	target, err := base.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect target %q: %w", location, err)
	}
	return target.String(), nil
}
