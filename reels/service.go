package reels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"music-bot-go/cache"
	"music-bot-go/config"
	"music-bot-go/logcolors"
	"music-bot-go/proxy"

	log "github.com/sirupsen/logrus"
)

// ErrNotAVideo means the post carries no video to deliver.
var ErrNotAVideo = errors.New("post has no video")

// DeliveryKind says how a processed post should reach the user.
type DeliveryKind int

const (
	// DeliverCachedVideo re-sends a video Telegram already stores, by file id.
	DeliverCachedVideo DeliveryKind = iota
	// DeliverVideoURL uploads the video from its direct URL.
	DeliverVideoURL
	// DeliverFallbackLink sends an external downloader link instead of the file.
	DeliverFallbackLink
)

// Delivery is the outcome of processing a post: what to send and why.
type Delivery struct {
	Kind          DeliveryKind
	Shortcode     string
	PostURL       string
	OwnerUsername string

	FileID   string // cached video
	VideoURL string // direct upload
	Note     string // quality downgrade note for the caption

	FallbackURL string
	Reason      string // "too_large" or "carousel"
	SizeMB      string
}

// historyEntry is what the download history remembers per shortcode.
type historyEntry struct {
	Type          string  `json:"type"` // "video" or "link"
	FileID        string  `json:"file_id,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	SizeMB        string  `json:"size_mb,omitempty"`
	PostURL       string  `json:"original_post_url"`
	OwnerUsername string  `json:"owner_username"`
	Timestamp     float64 `json:"timestamp"`
}

// Service runs the Instagram post pipeline: session management, media
// lookup, size-aware rendition choice and the per-post download history
// that lets an already-seen post be re-delivered without touching
// Instagram again.
type Service struct {
	resolver *proxy.Resolver
	store    *cache.Store
	clients  *cache.ClientCache[*Client]

	maxVideoBytes int64
	fallbackBase  string
}

func NewService(resolver *proxy.Resolver, store *cache.Store) *Service {
	cfg := config.Get()
	return &Service{
		resolver:      resolver,
		store:         store,
		clients:       cache.NewClientCache[*Client](),
		maxVideoBytes: cfg.Reels.MaxVideoSizeBytes,
		fallbackBase:  cfg.Reels.FallbackDownloader,
	}
}

// Authorize logs a user in with username and password and persists the
// session for later restarts.
func (s *Service) Authorize(ctx context.Context, userID, username, password string) error {
	client, err := NewClient(s.resolver)
	if err != nil {
		return err
	}
	if err := client.Login(ctx, username, password); err != nil {
		return err
	}

	raw, err := json.Marshal(client.Session())
	if err != nil {
		return err
	}
	if err := s.store.Set(sessionKey(userID), string(raw)); err != nil {
		return err
	}
	s.clients.Put(userID, client)
	return nil
}

// Logout drops the cached client and the stored session. Reports whether
// the user was authorized at all.
func (s *Service) Logout(userID string) bool {
	evicted := s.clients.Delete(userID)
	_, had := s.store.Get(sessionKey(userID))
	if had {
		s.store.Delete(sessionKey(userID))
	}
	return evicted || had
}

// client returns a working client for the user. Cached clients are probed
// before reuse; a dead one is evicted only if it is still the cached
// instance, so a concurrent re-login is never thrown away.
func (s *Service) client(ctx context.Context, userID string) (*Client, error) {
	if cached, ok := s.clients.Get(userID); ok {
		if err := cached.Probe(ctx); err == nil {
			return cached, nil
		}
		log.Warnf("%s Cached session for %s is dead, evicting", logcolors.LogReels, userID)
		s.clients.EvictIfSame(userID, cached)
	}

	raw, found := s.store.Get(sessionKey(userID))
	if !found {
		return nil, ErrLoginRequired
	}
	var session SessionData
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("corrupt stored session for %s: %w", userID, err)
	}

	client, err := NewClient(s.resolver)
	if err != nil {
		return nil, err
	}
	client.RestoreSession(session)
	if err := client.Probe(ctx); err != nil {
		return nil, err
	}
	s.clients.Put(userID, client)
	return client, nil
}

// ProcessPost turns a post link into a delivery decision. Previously seen
// posts answer straight from history.
func (s *Service) ProcessPost(ctx context.Context, userID, shortcode, postURL string) (*Delivery, error) {
	if cached, ok := s.historyLookup(shortcode); ok {
		log.Infof("%s Post %s answered from history", logcolors.LogHistory, shortcode)
		return cached, nil
	}

	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	media, err := client.MediaInfo(ctx, shortcode)
	if err != nil {
		return nil, err
	}
	summary := Summarize(media, shortcode)
	if !summary.IsVideo {
		return nil, ErrNotAVideo
	}

	if summary.IsCarousel {
		// Carousel videos go out as a downloader link; picking one frame of
		// a multi-part post directly is more confusing than helpful.
		delivery := &Delivery{
			Kind:          DeliverFallbackLink,
			Shortcode:     shortcode,
			PostURL:       postURL,
			OwnerUsername: summary.OwnerUsername,
			FallbackURL:   s.fallbackBase + postURL,
			Reason:        "carousel",
		}
		s.historyRecord(shortcode, historyEntry{
			Type:          "link",
			Reason:        "carousel",
			PostURL:       postURL,
			OwnerUsername: summary.OwnerUsername,
			Timestamp:     float64(time.Now().Unix()),
		})
		return delivery, nil
	}

	if summary.Duration <= 0 {
		return nil, fmt.Errorf("video %s has no duration, size estimate impossible", shortcode)
	}

	if version, downgraded, ok := summary.FitVersion(s.maxVideoBytes); ok {
		note := ""
		if downgraded {
			note = fmt.Sprintf(" (%dx%d rendition)", version.Width, version.Height)
		}
		return &Delivery{
			Kind:          DeliverVideoURL,
			Shortcode:     shortcode,
			PostURL:       postURL,
			OwnerUsername: summary.OwnerUsername,
			VideoURL:      version.URL,
			Note:          note,
		}, nil
	}

	// Even the worst rendition is too big; hand out a downloader link.
	sizeMB := ""
	if best, ok := summary.BestVersion(); ok {
		sizeMB = fmt.Sprintf("%.2f", float64(best.EstimateSize(summary.Duration))/(1024*1024))
	}
	delivery := &Delivery{
		Kind:          DeliverFallbackLink,
		Shortcode:     shortcode,
		PostURL:       postURL,
		OwnerUsername: summary.OwnerUsername,
		FallbackURL:   s.fallbackBase + postURL,
		Reason:        "too_large",
		SizeMB:        sizeMB,
	}
	s.historyRecord(shortcode, historyEntry{
		Type:          "link",
		Reason:        "too_large",
		SizeMB:        sizeMB,
		PostURL:       postURL,
		OwnerUsername: summary.OwnerUsername,
		Timestamp:     float64(time.Now().Unix()),
	})
	return delivery, nil
}

// RecordUpload remembers the Telegram file id of a delivered video so the
// next request for the same post skips Instagram entirely.
func (s *Service) RecordUpload(shortcode, postURL, ownerUsername, fileID string) {
	s.historyRecord(shortcode, historyEntry{
		Type:          "video",
		FileID:        fileID,
		PostURL:       postURL,
		OwnerUsername: ownerUsername,
		Timestamp:     float64(time.Now().Unix()),
	})
}

func (s *Service) historyLookup(shortcode string) (*Delivery, bool) {
	raw, found := s.store.Get(historyKey(shortcode))
	if !found {
		return nil, false
	}
	var entry historyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Errorf("%s Corrupt history entry for %s: %v", logcolors.LogHistory, shortcode, err)
		return nil, false
	}

	switch entry.Type {
	case "video":
		if entry.FileID == "" {
			return nil, false
		}
		return &Delivery{
			Kind:          DeliverCachedVideo,
			Shortcode:     shortcode,
			PostURL:       entry.PostURL,
			OwnerUsername: entry.OwnerUsername,
			FileID:        entry.FileID,
		}, true
	case "link":
		return &Delivery{
			Kind:          DeliverFallbackLink,
			Shortcode:     shortcode,
			PostURL:       entry.PostURL,
			OwnerUsername: entry.OwnerUsername,
			FallbackURL:   s.fallbackBase + entry.PostURL,
			Reason:        entry.Reason,
			SizeMB:        entry.SizeMB,
		}, true
	}
	return nil, false
}

func (s *Service) historyRecord(shortcode string, entry historyEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.store.Set(historyKey(shortcode), string(raw)); err != nil {
		log.Errorf("%s Failed to record history for %s: %v", logcolors.LogHistory, shortcode, err)
	}
}

func sessionKey(userID string) string {
	return "insta:session:" + userID
}

func historyKey(shortcode string) string {
	return "insta:history:" + shortcode
}
