package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"music-bot-go/logcolors"
	"music-bot-go/proxy"

	log "github.com/sirupsen/logrus"
)

// proxySource supplies russian proxy candidates.
type proxySource interface {
	RussianCandidates() []string
}

// Yandex resolves tracks through the Yandex Music API. The API only answers
// from Russian addresses, so up to three russian proxy candidates are tried
// in turn.
type Yandex struct {
	proxies  proxySource
	apiBase  string
	timeout  time.Duration
	maxTries int
}

func NewYandex(resolver *proxy.Resolver) *Yandex {
	return &Yandex{
		proxies:  resolver,
		apiBase:  "https://api.music.yandex.net",
		timeout:  15 * time.Second,
		maxTries: 3,
	}
}

func (y *Yandex) Service() string { return "yandex" }

func (y *Yandex) Resolve(ctx context.Context, trackID, sourceURL string) (*TrackInfo, error) {
	candidates := y.proxies.RussianCandidates()
	if len(candidates) == 0 {
		return nil, errors.New("no russian proxies configured")
	}
	if len(candidates) > y.maxTries {
		candidates = candidates[:y.maxTries]
	}

	var lastErr error
	for i, proxyURL := range candidates {
		info, err := y.fetch(ctx, proxyURL, trackID, sourceURL)
		if err == nil {
			return info, nil
		}
		lastErr = err
		log.Warnf("%s Yandex attempt %d/%d via %s failed: %v", logcolors.LogTracks, i+1, len(candidates), proxyURL, err)
	}
	return nil, fmt.Errorf("yandex track %s: %w", trackID, lastErr)
}

func (y *Yandex) fetch(ctx context.Context, proxyURL, trackID, sourceURL string) (*TrackInfo, error) {
	client, err := proxy.ClientThrough(proxyURL, y.timeout)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.apiBase+"/tracks/"+trackID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Result []struct {
			Title      string `json:"title"`
			DurationMs int    `json:"durationMs"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Albums []struct {
				Title    string `json:"title"`
				Year     int    `json:"year"`
				CoverURI string `json:"coverUri"`
			} `json:"albums"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(payload.Result) == 0 {
		return nil, errors.New("track not found")
	}

	track := payload.Result[0]
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}

	info := &TrackInfo{
		Artist:    strings.Join(names, ", "),
		Title:     track.Title,
		Duration:  track.DurationMs / 1000,
		SourceURL: sourceURL,
	}
	if len(track.Albums) > 0 {
		album := track.Albums[0]
		info.AlbumTitle = album.Title
		if album.Year > 0 {
			info.AlbumYear = fmt.Sprintf("(%d)", album.Year)
		}
		if album.CoverURI != "" {
			// The API hands back a size template like
			// "avatars.yandex.net/.../%%"; %% is the size slot.
			info.CoverURL = "https://" + strings.Replace(album.CoverURI, "%%", "400x400", 1)
		}
	}
	log.Infof("%s Resolved yandex track %s: %s - %s", logcolors.LogTracks, trackID, info.Artist, info.Title)
	return info, nil
}
