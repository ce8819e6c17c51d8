package reels

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

// Media is the raw media item the private API returns for a post.
type Media struct {
	MediaType     int            `json:"media_type"`
	VideoDuration float64        `json:"video_duration"`
	VideoVersions []VideoVersion `json:"video_versions"`
	CarouselMedia []Media        `json:"carousel_media"`
	User          struct {
		Username string `json:"username"`
	} `json:"user"`
}

// VideoVersion is one rendition of a post's video. Bandwidth is bits per
// second and, multiplied by duration, estimates the file size without
// downloading anything.
type VideoVersion struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bandwidth int64  `json:"bandwidth"`
}

// Summary is the digest of a media item the bot works with.
type Summary struct {
	Shortcode     string
	OwnerUsername string
	IsVideo       bool
	IsCarousel    bool
	Duration      float64
	// Versions holds unique renditions sorted worst to best by bandwidth.
	Versions []VideoVersion
}

// Summarize digests a media item. For carousels the first video entry is
// used. Duplicate renditions pointing at the same URL are collapsed.
func Summarize(m *Media, shortcode string) Summary {
	s := Summary{
		Shortcode:     shortcode,
		OwnerUsername: m.User.Username,
		Duration:      m.VideoDuration,
	}
	if s.OwnerUsername == "" {
		s.OwnerUsername = "unknown_user"
	}

	var versions []VideoVersion
	switch {
	case m.MediaType == mediaTypeVideo && len(m.VideoVersions) > 0:
		s.IsVideo = true
		versions = m.VideoVersions

	case m.MediaType == mediaTypeCarousel && len(m.CarouselMedia) > 0:
		s.IsCarousel = true
		for _, item := range m.CarouselMedia {
			if item.MediaType == mediaTypeVideo && len(item.VideoVersions) > 0 {
				s.IsVideo = true
				versions = item.VideoVersions
				if s.Duration == 0 {
					s.Duration = item.VideoDuration
				}
				break
			}
		}
	}

	s.Versions = normalizeVersions(versions)
	return s
}

// normalizeVersions drops URL duplicates (the API repeats the same file
// under different type codes) and sorts ascending by bandwidth.
func normalizeVersions(versions []VideoVersion) []VideoVersion {
	seen := make(map[string]bool, len(versions))
	unique := make([]VideoVersion, 0, len(versions))
	for _, v := range versions {
		if v.URL == "" || seen[v.URL] {
			continue
		}
		seen[v.URL] = true
		unique = append(unique, v)
	}
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Bandwidth < unique[j].Bandwidth
	})
	return unique
}

// EstimateSize predicts the rendition's file size in bytes from its bitrate
// and the video duration in seconds.
func (v VideoVersion) EstimateSize(duration float64) int64 {
	return int64(float64(v.Bandwidth) * duration / 8)
}

// BestVersion returns the highest-bandwidth rendition, or false when none
// exist.
func (s Summary) BestVersion() (VideoVersion, bool) {
	if len(s.Versions) == 0 {
		return VideoVersion{}, false
	}
	return s.Versions[len(s.Versions)-1], true
}

// FitVersion walks renditions from best to worst and returns the first
// whose estimated size fits under maxBytes. downgraded reports that a
// lower-quality rendition than the best was chosen.
func (s Summary) FitVersion(maxBytes int64) (v VideoVersion, downgraded, ok bool) {
	if s.Duration <= 0 {
		return VideoVersion{}, false, false
	}
	for i := len(s.Versions) - 1; i >= 0; i-- {
		candidate := s.Versions[i]
		size := candidate.EstimateSize(s.Duration)
		if size > 0 && size <= maxBytes {
			return candidate, i != len(s.Versions)-1, true
		}
	}
	return VideoVersion{}, false, false
}

const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// MediaPKFromShortcode converts a post shortcode to the numeric media pk
// the private API addresses media by.
func MediaPKFromShortcode(shortcode string) (int64, error) {
	if shortcode == "" {
		return 0, fmt.Errorf("empty shortcode")
	}
	var pk int64
	for _, r := range shortcode {
		idx := strings.IndexRune(shortcodeAlphabet, r)
		if idx < 0 {
			return 0, fmt.Errorf("invalid shortcode character %q", r)
		}
		pk = pk*64 + int64(idx)
	}
	return pk, nil
}

var postURLPattern = regexp.MustCompile(`(?:instagram\.com|instagr\.am)/(?:p|reel|tv)/([\w-]+)`)

// ShortcodeFromURL extracts the post shortcode from an Instagram link.
func ShortcodeFromURL(rawURL string) (string, bool) {
	m := postURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}
