package providers

import (
	"net/url"
	"strconv"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
)

// baseHeaders is the browser identity shared by all site providers.
var baseHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
}

func withReferer(referer string) map[string]string {
	h := make(map[string]string, len(baseHeaders)+1)
	for k, v := range baseHeaders {
		h[k] = v
	}
	h["Referer"] = referer
	return h
}

// MuzikaFun searches w1.muzika.fun. The site answers the search path with a
// redirect that must be followed by hand, keeping the Referer header that
// gates access to result pages.
type MuzikaFun struct {
	baseURL string
}

func NewMuzikaFun() *MuzikaFun {
	return &MuzikaFun{baseURL: "https://w1.muzika.fun"}
}

func (p *MuzikaFun) Name() string { return "muzika.fun" }

func (p *MuzikaFun) SearchURL(query string) (string, error) {
	return p.baseURL + "/poisk/" + url.PathEscape(query), nil
}

func (p *MuzikaFun) Headers() map[string]string {
	return withReferer(p.baseURL + "/")
}

func (p *MuzikaFun) ProxyKind() proxy.Kind { return proxy.KindRussian }

func (p *MuzikaFun) ManualRedirect() bool { return true }

// Extract reads tracks from ul.mainSongs li items. Artist, title and
// duration live in data attributes on the item, the audio URL in a nested
// element's data-url.
func (p *MuzikaFun) Extract(doc *html.Node) []Track {
	var tracks []Track
	for _, list := range findAll(doc, "ul", "mainSongs") {
		for _, item := range findAll(list, "li", "") {
			link := findFirstWithAttr(item, "data-url")
			if link == nil {
				continue
			}
			duration, _ := strconv.Atoi(attr(item, "data-duration"))
			track := Track{
				Link:     attr(link, "data-url"),
				Artist:   attr(item, "data-artist"),
				Title:    attr(item, "data-title"),
				Duration: duration,
			}
			if track.Complete() {
				tracks = append(tracks, track)
			}
		}
	}
	return tracks
}
