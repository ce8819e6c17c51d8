package providers

import (
	"net/url"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
)

// Mp3party searches mp3party.net.
type Mp3party struct {
	baseURL string
}

func NewMp3party() *Mp3party {
	return &Mp3party{baseURL: "https://mp3party.net"}
}

func (p *Mp3party) Name() string { return "mp3party.net" }

func (p *Mp3party) SearchURL(query string) (string, error) {
	return p.baseURL + "/search?q=" + url.QueryEscape(query), nil
}

func (p *Mp3party) Headers() map[string]string {
	return withReferer(p.baseURL + "/")
}

func (p *Mp3party) ProxyKind() proxy.Kind { return proxy.KindRussian }

func (p *Mp3party) ManualRedirect() bool { return false }

// Extract reads div.track-item blocks: artist and title from the user panel
// data attributes, duration as "MM:SS" text, the audio URL from the play
// button's href.
func (p *Mp3party) Extract(doc *html.Node) []Track {
	var tracks []Track
	for _, item := range findAll(doc, "div", "track-item") {
		panel := findFirst(item, "div", "track__user-panel")
		durationDiv := findFirst(item, "div", "track__info-item")
		playBtn := findFirst(item, "div", "play-btn")
		if panel == nil || durationDiv == nil || playBtn == nil {
			continue
		}

		track := Track{
			Link:     attr(playBtn, "href"),
			Artist:   attr(panel, "data-js-artist-name"),
			Title:    attr(panel, "data-js-song-title"),
			Duration: parseDurationMMSS(text(durationDiv)),
		}
		if track.Complete() {
			tracks = append(tracks, track)
		}
	}
	return tracks
}
