package providers

import (
	"fmt"
	"regexp"
	"strings"

	"music-bot-go/proxy"

	"golang.org/x/net/html"
	"golang.org/x/net/idna"
)

var skysoundQuerySep = regexp.MustCompile(`[^a-zA-Zа-яА-Я0-9]+`)

// Skysound searches skysound7.com. The query is not a URL parameter but a
// punycode-encoded subdomain, e.g. "jubilee-кровоточие" becomes
// "xn--jubilee--xxx.skysound7.com".
type Skysound struct {
	domain string
}

func NewSkysound() *Skysound {
	return &Skysound{domain: "skysound7.com"}
}

func (p *Skysound) Name() string { return "skysound7.com" }

func (p *Skysound) SearchURL(query string) (string, error) {
	// Runs of separators collapse to a single hyphen so multi-word queries
	// form one valid DNS label.
	prepared := strings.Trim(skysoundQuerySep.ReplaceAllString(query, "-"), "-")
	if prepared == "" {
		return "", fmt.Errorf("query %q leaves no searchable characters", query)
	}
	subdomain, err := idna.ToASCII(strings.ToLower(prepared))
	if err != nil {
		return "", fmt.Errorf("punycode encoding of %q: %w", prepared, err)
	}
	return "https://" + subdomain + "." + p.domain + "/", nil
}

func (p *Skysound) Headers() map[string]string {
	return baseHeaders
}

func (p *Skysound) ProxyKind() proxy.Kind { return proxy.KindRussian }

func (p *Skysound) ManualRedirect() bool { return false }

// Extract reads li.__adv_list_track items.
func (p *Skysound) Extract(doc *html.Node) []Track {
	var tracks []Track
	for _, item := range findAll(doc, "li", "__adv_list_track") {
		stream := findFirst(item, "", "__adv_stream")
		artistEl := findFirst(item, "", "__adv_artist")
		nameEl := findFirst(item, "", "__adv_name")
		durationEl := findFirst(item, "", "__adv_duration")
		if stream == nil || artistEl == nil || nameEl == nil || durationEl == nil {
			continue
		}

		track := Track{
			Link:     attr(stream, "data-url"),
			Artist:   text(artistEl),
			Title:    text(findFirst(nameEl, "em", "")),
			Duration: parseDurationMMSS(text(durationEl)),
		}
		if track.Complete() {
			tracks = append(tracks, track)
		}
	}
	return tracks
}
