package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"music-bot-go/cache"
	"music-bot-go/config"
	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
	xproxy "golang.org/x/net/proxy"
)

// Kind names an egress route. Components declare the kind they need and the
// resolver turns it into a transport.
type Kind string

const (
	KindNone      Kind = ""
	KindInstagram Kind = "instagram"
	KindTor       Kind = "tor"
	KindRussian   Kind = "russian"
)

var (
	ErrNoWorkingProxy = errors.New("no working proxy available")
	ErrTorUnavailable = errors.New("tor control port is not reachable")
)

// Resolver maps proxy kinds to HTTP transports. The russian route is chosen
// by probing the configured candidates against a known-reachable URL and
// memoizing the winner.
type Resolver struct {
	instagramProxy string

	candidates   []string
	probeURL     string
	probeTimeout time.Duration
	russian      *cache.Memo[string]

	tor          *TorController
	torSocksAddr string
}

// NewResolver builds a resolver from the loaded configuration.
func NewResolver() *Resolver {
	cfg := config.Get()
	return &Resolver{
		instagramProxy: cfg.Proxy.InstagramProxy,
		candidates:     cfg.RussianProxyList(),
		probeURL:       cfg.Proxy.RussianProbeURL,
		probeTimeout:   5 * time.Second,
		russian:        cache.NewMemo[string](time.Duration(cfg.Proxy.RussianCacheTTLSecs) * time.Second),
		tor:            NewTorController(net.JoinHostPort(cfg.Proxy.TorHost, fmt.Sprint(cfg.Proxy.TorControlPort))),
		torSocksAddr:   net.JoinHostPort(cfg.Proxy.TorHost, fmt.Sprint(cfg.Proxy.TorSocksPort)),
	}
}

// Client returns an HTTP client routed through the proxy for kind.
func (r *Resolver) Client(kind Kind, timeout time.Duration) (*http.Client, error) {
	transport, err := r.Transport(kind)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// Transport returns a RoundTripper routed through the proxy for kind.
func (r *Resolver) Transport(kind Kind) (http.RoundTripper, error) {
	switch kind {
	case KindNone:
		return http.DefaultTransport, nil

	case KindInstagram:
		if r.instagramProxy == "" {
			return http.DefaultTransport, nil
		}
		return proxiedTransport(r.instagramProxy)

	case KindRussian:
		addr, err := r.RussianProxy()
		if err != nil {
			return nil, err
		}
		return proxiedTransport(addr)

	case KindTor:
		if !r.tor.Alive() {
			return nil, ErrTorUnavailable
		}
		dialer, err := xproxy.SOCKS5("tcp", r.torSocksAddr, nil, xproxy.Direct)
		if err != nil {
			return nil, err
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(xproxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown proxy kind %q", kind)
	}
}

// RussianProxy returns a proxy URL that currently passes the reachability
// probe. The result is cached; concurrent callers during a probe share it.
func (r *Resolver) RussianProxy() (string, error) {
	if len(r.candidates) == 0 {
		return "", ErrNoWorkingProxy
	}
	addr, ok := r.russian.Get(r.probeCandidates)
	if !ok {
		return "", ErrNoWorkingProxy
	}
	return addr, nil
}

// RussianCandidates returns all configured russian proxy URLs, for callers
// that retry across every candidate themselves.
func (r *Resolver) RussianCandidates() []string {
	out := make([]string, len(r.candidates))
	copy(out, r.candidates)
	return out
}

// InvalidateRussian drops the cached russian proxy so the next request
// re-probes the candidates.
func (r *Resolver) InvalidateRussian() {
	r.russian.Invalidate()
}

// RenewTorIdentity asks the Tor daemon for a fresh circuit.
func (r *Resolver) RenewTorIdentity() error {
	log.Infof("%s Requesting new Tor identity", logcolors.LogTor)
	return r.tor.RenewIdentity()
}

func (r *Resolver) probeCandidates() (string, error) {
	for _, candidate := range r.candidates {
		if r.probe(candidate) {
			log.Infof("%s Selected working russian proxy %s", logcolors.LogProxy, candidate)
			return candidate, nil
		}
		log.Warnf("%s Russian proxy %s failed the probe", logcolors.LogProxy, candidate)
	}
	return "", ErrNoWorkingProxy
}

func (r *Resolver) probe(proxyURL string) bool {
	transport, err := proxiedTransport(proxyURL)
	if err != nil {
		return false
	}
	client := &http.Client{Transport: transport, Timeout: r.probeTimeout}
	resp, err := client.Get(r.probeURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// ClientThrough builds an HTTP client routed through one specific proxy
// URL, for callers that iterate candidates themselves.
func ClientThrough(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport, err := proxiedTransport(proxyURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func proxiedTransport(proxyURL string) (http.RoundTripper, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", proxyURL, err)
	}
	return &http.Transport{Proxy: http.ProxyURL(u)}, nil
}
