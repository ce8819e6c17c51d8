package tracks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const zvukTrackQuery = `query getFullTrack($id: ID!) {
  getTracks(ids: [$id]) {
    title
    duration
    artists { title }
    release {
      title
      date
      image { src }
    }
  }
}`

var zvukTrackIDPattern = regexp.MustCompile(`zvuk\.com/track/(\d+)`)

// Zvuk resolves tracks on zvuk.com. The API wants a short-lived anonymous
// token first; track metadata then comes from a GraphQL endpoint. Short
// share.zvuk.com links are expanded by reading the redirect Location.
type Zvuk struct {
	client  *http.Client
	apiBase string
}

func NewZvuk() *Zvuk {
	return &Zvuk{
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: "https://zvuk.com",
	}
}

func (z *Zvuk) Service() string { return "sberzvuk" }

func (z *Zvuk) Resolve(ctx context.Context, trackID, sourceURL string) (*TrackInfo, error) {
	if trackID == "" || strings.Contains(sourceURL, "share.zvuk.com") {
		id, err := z.expandShareLink(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
		trackID = id
	}

	token, err := z.anonymousToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("zvuk token: %w", err)
	}

	info, err := z.fetchTrack(ctx, token, trackID, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("zvuk track %s: %w", trackID, err)
	}
	log.Infof("%s Resolved zvuk track %s: %s - %s", logcolors.LogTracks, trackID, info.Artist, info.Title)
	return info, nil
}

// expandShareLink reads the redirect target of a share.zvuk.com link and
// pulls the numeric track id out of it.
func (z *Zvuk) expandShareLink(ctx context.Context, shareURL string) (string, error) {
	if m := zvukTrackIDPattern.FindStringSubmatch(shareURL); m != nil {
		return m[1], nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
	if err != nil {
		return "", err
	}
	z.setBrowserHeaders(req)

	noRedirect := *z.client
	noRedirect.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if m := zvukTrackIDPattern.FindStringSubmatch(location); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("no track id in redirect of %s (status %d)", shareURL, resp.StatusCode)
}

func (z *Zvuk) anonymousToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, z.apiBase+"/api/tiny/profile", nil)
	if err != nil {
		return "", err
	}
	z.setBrowserHeaders(req)

	resp, err := z.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Result struct {
			Token string `json:"token"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Result.Token == "" {
		return "", errors.New("empty token")
	}
	return payload.Result.Token, nil
}

func (z *Zvuk) fetchTrack(ctx context.Context, token, trackID, sourceURL string) (*TrackInfo, error) {
	body, err := json.Marshal(map[string]interface{}{
		"operationName": "getFullTrack",
		"variables":     map[string]string{"id": trackID},
		"query":         zvukTrackQuery,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.apiBase+"/api/v1/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	z.setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-auth-token", token)

	resp, err := z.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			GetTracks []*struct {
				Title    string `json:"title"`
				Duration int    `json:"duration"`
				Artists  []struct {
					Title string `json:"title"`
				} `json:"artists"`
				Release struct {
					Title string `json:"title"`
					Date  string `json:"date"`
					Image struct {
						Src string `json:"src"`
					} `json:"image"`
				} `json:"release"`
			} `json:"getTracks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload.Data.GetTracks) == 0 || payload.Data.GetTracks[0] == nil {
		return nil, errors.New("track not found")
	}

	track := payload.Data.GetTracks[0]
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Title)
	}

	info := &TrackInfo{
		Artist:     strings.Join(names, ", "),
		Title:      track.Title,
		Duration:   track.Duration,
		AlbumTitle: track.Release.Title,
		SourceURL:  sourceURL,
	}
	if track.Release.Date != "" {
		info.AlbumYear = "(" + strings.SplitN(track.Release.Date, "-", 2)[0] + ")"
	}
	if src := track.Release.Image.Src; src != "" {
		info.CoverURL = normalizeZvukCover(src)
	}
	return info, nil
}

// normalizeZvukCover strips the size parameter off a cover URL template and
// requests the medium rendition with an explicit scheme.
func normalizeZvukCover(src string) string {
	cover := strings.SplitN(src, "&size=", 2)[0] + "&size=medium"
	if strings.HasPrefix(cover, "//") {
		cover = "https:" + cover
	}
	return cover
}

func (z *Zvuk) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Origin", "https://zvuk.com")
}
