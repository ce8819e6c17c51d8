package providers

import (
	"net/url"
	"strconv"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
)

// Mp3iq searches mp3iq.net.
type Mp3iq struct {
	baseURL string
}

func NewMp3iq() *Mp3iq {
	return &Mp3iq{baseURL: "https://mp3iq.net"}
}

func (p *Mp3iq) Name() string { return "mp3iq.net" }

func (p *Mp3iq) SearchURL(query string) (string, error) {
	return p.baseURL + "/search?q=" + url.QueryEscape(query), nil
}

func (p *Mp3iq) Headers() map[string]string {
	return withReferer(p.baseURL + "/")
}

func (p *Mp3iq) ProxyKind() proxy.Kind { return proxy.KindRussian }

func (p *Mp3iq) ManualRedirect() bool { return false }

// Extract reads li.track items: the audio URL and duration (milliseconds)
// sit in data attributes, artist and title in the playlist-name heading.
func (p *Mp3iq) Extract(doc *html.Node) []Track {
	var tracks []Track
	for _, item := range findAll(doc, "li", "track") {
		link := attr(item, "data-mp3")
		durationMs, err := strconv.Atoi(attr(item, "data-duration"))
		if link == "" || err != nil {
			continue
		}

		heading := findFirst(item, "h2", "playlist-name")
		if heading == nil {
			continue
		}
		var artist, title string
		if b := findFirst(heading, "b", ""); b != nil {
			artist = text(findFirst(b, "a", ""))
		}
		if em := findFirst(heading, "em", ""); em != nil {
			title = text(findFirst(em, "a", ""))
		}

		track := Track{
			Link:     link,
			Artist:   artist,
			Title:    title,
			Duration: durationMs / 1000,
		}
		if track.Complete() {
			tracks = append(tracks, track)
		}
	}
	return tracks
}
