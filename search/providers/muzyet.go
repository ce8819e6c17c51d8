package providers

import (
	"net/url"
	"strings"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
)

// Muzyet searches moc.muzyet.com.
type Muzyet struct {
	baseURL string
}

func NewMuzyet() *Muzyet {
	return &Muzyet{baseURL: "https://moc.muzyet.com"}
}

func (p *Muzyet) Name() string { return "muzyet.com" }

func (p *Muzyet) SearchURL(query string) (string, error) {
	return p.baseURL + "/search/" + url.PathEscape(query), nil
}

func (p *Muzyet) Headers() map[string]string {
	return baseHeaders
}

func (p *Muzyet) ProxyKind() proxy.Kind { return proxy.KindRussian }

func (p *Muzyet) ManualRedirect() bool { return false }

// Extract reads <item> elements inside div.song_list. The heading text is
// "Artist - Title"; when no separator is present the whole string serves as
// both. The download link is relative to the site root.
func (p *Muzyet) Extract(doc *html.Node) []Track {
	var tracks []Track
	for _, list := range findAll(doc, "div", "song_list") {
		for _, item := range findAll(list, "item", "") {
			heading := findFirst(item, "", "artist_name")
			durationEl := findFirst(item, "", "sure")
			linkEl := findFirst(item, "", "downloadbtn")
			if heading == nil || durationEl == nil || linkEl == nil {
				continue
			}

			full := text(heading)
			artist, title := full, full
			if idx := strings.Index(full, " - "); idx >= 0 {
				artist = strings.TrimSpace(full[:idx])
				title = strings.TrimSpace(full[idx+3:])
			}

			track := Track{
				Link:     p.baseURL + attr(linkEl, "href"),
				Artist:   artist,
				Title:    title,
				Duration: parseDurationMMSS(text(durationEl)),
			}
			if track.Complete() {
				tracks = append(tracks, track)
			}
		}
	}
	return tracks
}
