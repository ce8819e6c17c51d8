package search

import (
	"sort"
	"strings"
	"unicode"

	"music-bot-go/search/providers"
)

// Normalize folds a string for matching: lower-cased, letters and digits
// only. "Кино - Группа крови" and "кино группа КРОВИ!" normalize equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Partition splits tracks into exact and partial matches against the
// normalized query. A track matches exactly when its normalized
// "artist title" equals the query, partially when it contains it.
// Non-matches are dropped.
func Partition(tracks []providers.Track, normalizedQuery string) (exact, partial []providers.Track) {
	for _, track := range tracks {
		full := Normalize(track.Artist + " " + track.Title)
		switch {
		case full == normalizedQuery:
			exact = append(exact, track)
		case strings.Contains(full, normalizedQuery):
			partial = append(partial, track)
		}
	}
	return exact, partial
}

// SortByClosestDuration orders tracks by how close their duration is to
// target seconds. With no target the order is left untouched; ties keep
// their arrival order.
func SortByClosestDuration(tracks []providers.Track, target int) {
	if target <= 0 {
		return
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return durationDistance(tracks[i], target) < durationDistance(tracks[j], target)
	})
}

func durationDistance(t providers.Track, target int) int {
	d := t.Duration - target
	if d < 0 {
		return -d
	}
	return d
}

// Dedupe removes tracks whose normalized artist and title were already
// seen, keeping the first occurrence.
func Dedupe(tracks []providers.Track) []providers.Track {
	type identity struct {
		artist, title string
	}
	seen := make(map[identity]bool, len(tracks))
	out := make([]providers.Track, 0, len(tracks))
	for _, track := range tracks {
		id := identity{Normalize(track.Artist), Normalize(track.Title)}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, track)
	}
	return out
}
