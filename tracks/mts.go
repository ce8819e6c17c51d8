package tracks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// MTS resolves tracks on music.mts.ru. There is no public API; the track
// page embeds its metadata as an application/ld+json script.
type MTS struct {
	client   *http.Client
	siteBase string
}

func NewMTS() *MTS {
	return &MTS{
		client:   &http.Client{Timeout: 10 * time.Second},
		siteBase: "https://music.mts.ru",
	}
}

func (m *MTS) Service() string { return "mts" }

func (m *MTS) Resolve(ctx context.Context, trackID, sourceURL string) (*TrackInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.siteBase+"/track/"+trackID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mts track %s: %w", trackID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mts track %s: unexpected status %d", trackID, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mts track %s: parsing page: %w", trackID, err)
	}

	raw := findLdJSON(doc)
	if raw == "" {
		return nil, errors.New("no ld+json metadata on the track page")
	}

	info, err := parseMTSMetadata(raw, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("mts track %s: %w", trackID, err)
	}
	log.Infof("%s Resolved mts track %s: %s - %s", logcolors.LogTracks, trackID, info.Artist, info.Title)
	return info, nil
}

// findLdJSON returns the text of the first application/ld+json script.
func findLdJSON(doc *html.Node) string {
	var found string
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key == "type" && a.Val == "application/ld+json" {
					if n.FirstChild != nil {
						found = n.FirstChild.Data
					}
					return false
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(doc)
	return found
}

func parseMTSMetadata(raw, sourceURL string) (*TrackInfo, error) {
	var payload struct {
		Name     string `json:"name"`
		Image    string `json:"image"`
		Duration string `json:"duration"`
		ByArtist []struct {
			Name string `json:"name"`
		} `json:"byArtist"`
		InAlbum struct {
			Name          string `json:"name"`
			DatePublished string `json:"datePublished"`
		} `json:"inAlbum"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding ld+json: %w", err)
	}
	if payload.Name == "" {
		return nil, errors.New("ld+json has no track name")
	}

	names := make([]string, 0, len(payload.ByArtist))
	for _, a := range payload.ByArtist {
		names = append(names, a.Name)
	}

	info := &TrackInfo{
		Artist:     strings.Join(names, ", "),
		Title:      payload.Name,
		Duration:   parseISODuration(payload.Duration),
		CoverURL:   payload.Image,
		AlbumTitle: payload.InAlbum.Name,
		SourceURL:  sourceURL,
	}
	if payload.InAlbum.DatePublished != "" {
		info.AlbumYear = "(" + payload.InAlbum.DatePublished + ")"
	}
	return info, nil
}

// parseISODuration converts an ISO-8601 duration like "PT3M25S" to seconds,
// returning 0 for anything it cannot read.
func parseISODuration(s string) int {
	m := isoDurationPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	minutes, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	seconds, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	return hours*3600 + minutes*60 + seconds
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
