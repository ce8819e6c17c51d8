package reels

import "testing"

func TestSummarizeVideo(t *testing.T) {
	m := &Media{
		MediaType:     mediaTypeVideo,
		VideoDuration: 12.5,
		VideoVersions: []VideoVersion{
			{URL: "http://v/high", Width: 1080, Height: 1920, Bandwidth: 4_000_000},
			{URL: "http://v/low", Width: 480, Height: 854, Bandwidth: 800_000},
			{URL: "http://v/high", Width: 1080, Height: 1920, Bandwidth: 4_000_000},
		},
	}
	m.User.Username = "someuser"

	s := Summarize(m, "ABC123")
	if !s.IsVideo || s.IsCarousel {
		t.Fatalf("Expected a plain video summary, got %+v", s)
	}
	if s.OwnerUsername != "someuser" {
		t.Errorf("Unexpected owner %q", s.OwnerUsername)
	}
	if len(s.Versions) != 2 {
		t.Fatalf("Expected URL duplicates collapsed to 2 versions, got %d", len(s.Versions))
	}
	if s.Versions[0].URL != "http://v/low" || s.Versions[1].URL != "http://v/high" {
		t.Errorf("Expected versions sorted worst to best, got %+v", s.Versions)
	}
}

func TestSummarizeCarousel(t *testing.T) {
	photo := Media{MediaType: 1}
	video := Media{
		MediaType:     mediaTypeVideo,
		VideoDuration: 30,
		VideoVersions: []VideoVersion{{URL: "http://v/1", Bandwidth: 1_000_000}},
	}
	m := &Media{
		MediaType:     mediaTypeCarousel,
		CarouselMedia: []Media{photo, video},
	}

	s := Summarize(m, "XYZ")
	if !s.IsVideo || !s.IsCarousel {
		t.Fatalf("Expected a carousel video summary, got %+v", s)
	}
	if s.Duration != 30 {
		t.Errorf("Expected duration taken from the carousel item, got %v", s.Duration)
	}
	if s.OwnerUsername != "unknown_user" {
		t.Errorf("Expected fallback owner name, got %q", s.OwnerUsername)
	}
}

func TestSummarizePhoto(t *testing.T) {
	s := Summarize(&Media{MediaType: 1}, "P")
	if s.IsVideo {
		t.Error("A photo post must not summarize as video")
	}
}

func TestEstimateSize(t *testing.T) {
	v := VideoVersion{Bandwidth: 8_000_000}
	// 8 Mbit/s over 10 seconds is 10 MB.
	if got := v.EstimateSize(10); got != 10_000_000 {
		t.Errorf("Expected 10000000 bytes, got %d", got)
	}
}

func TestFitVersionPicksBestFitting(t *testing.T) {
	s := Summary{
		Duration: 10,
		Versions: []VideoVersion{
			{URL: "low", Bandwidth: 1_000_000},
			{URL: "mid", Bandwidth: 4_000_000},
			{URL: "high", Bandwidth: 40_000_000},
		},
	}

	// high estimates at 50 MB which exceeds the 20 MB cap; mid fits.
	v, downgraded, ok := s.FitVersion(20_000_000)
	if !ok {
		t.Fatal("Expected a fitting version")
	}
	if v.URL != "mid" {
		t.Errorf("Expected the mid rendition, got %q", v.URL)
	}
	if !downgraded {
		t.Error("Expected the downgrade flag when the best rendition is skipped")
	}
}

func TestFitVersionBestFits(t *testing.T) {
	s := Summary{
		Duration: 10,
		Versions: []VideoVersion{
			{URL: "low", Bandwidth: 1_000_000},
			{URL: "high", Bandwidth: 4_000_000},
		},
	}
	v, downgraded, ok := s.FitVersion(50_000_000)
	if !ok || v.URL != "high" {
		t.Fatalf("Expected the best rendition, got %+v ok=%v", v, ok)
	}
	if downgraded {
		t.Error("Best rendition chosen must not report a downgrade")
	}
}

func TestFitVersionNothingFits(t *testing.T) {
	s := Summary{
		Duration: 100,
		Versions: []VideoVersion{{URL: "only", Bandwidth: 40_000_000}},
	}
	if _, _, ok := s.FitVersion(1_000_000); ok {
		t.Error("Expected no version to fit")
	}
}

func TestFitVersionNeedsDuration(t *testing.T) {
	s := Summary{Versions: []VideoVersion{{URL: "v", Bandwidth: 1}}}
	if _, _, ok := s.FitVersion(1 << 30); ok {
		t.Error("Size cannot be estimated without a duration")
	}
}

func TestMediaPKFromShortcode(t *testing.T) {
	// "B" is index 1, "A" index 0: BA = 1*64 + 0.
	pk, err := MediaPKFromShortcode("BA")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pk != 64 {
		t.Errorf("Expected pk 64, got %d", pk)
	}

	if _, err := MediaPKFromShortcode("has space"); err == nil {
		t.Error("Expected an error for an invalid character")
	}
	if _, err := MediaPKFromShortcode(""); err == nil {
		t.Error("Expected an error for an empty shortcode")
	}
}

func TestShortcodeFromURL(t *testing.T) {
	cases := map[string]string{
		"https://www.instagram.com/reel/Cxyz-_12/?igsh=abc": "Cxyz-_12",
		"https://instagram.com/p/ABC123/":                   "ABC123",
		"https://instagr.am/tv/QQ/":                         "QQ",
	}
	for in, want := range cases {
		got, ok := ShortcodeFromURL(in)
		if !ok || got != want {
			t.Errorf("ShortcodeFromURL(%q) = %q, %v; expected %q", in, got, ok, want)
		}
	}
	if _, ok := ShortcodeFromURL("https://example.com/reel/ABC"); ok {
		t.Error("Non-Instagram hosts must not match")
	}
}
