package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	statsBucketName = "stats"
	statsKey        = "bot_stats"
)

// Store persists the counters across restarts in a dedicated BoltDB file.
type Store struct {
	db       *bolt.DB
	dbPath   string
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats is the on-disk shape; counters accumulate across restarts.
type PersistedStats struct {
	TotalRequests   int64 `json:"total_requests"`
	WebhookRequests int64 `json:"webhook_requests"`
	StatsRequests   int64 `json:"stats_requests"`
	HealthRequests  int64 `json:"health_requests"`
	OtherRequests   int64 `json:"other_requests"`

	SongRequests      int64 `json:"song_requests"`
	TrackLinkRequests int64 `json:"track_link_requests"`
	InstagramRequests int64 `json:"instagram_requests"`
	ChatRequests      int64 `json:"chat_requests"`

	TracksDelivered int64 `json:"tracks_delivered"`
	VideosDelivered int64 `json:"videos_delivered"`
	HistoryHits     int64 `json:"history_hits"`
	EmptySearches   int64 `json:"empty_searches"`

	QueueRejected    int64 `json:"queue_rejected"`
	RateLimitDropped int64 `json:"rate_limit_dropped"`

	Status2xx int64 `json:"status_2xx"`
	Status4xx int64 `json:"status_4xx"`
	Status5xx int64 `json:"status_5xx"`

	TotalResponseTime    int64 `json:"total_response_time"`
	ResponseCount        int64 `json:"response_count"`
	MinResponseTime      int64 `json:"min_response_time"`
	MaxResponseTime      int64 `json:"max_response_time"`
	WebhookResponseTime  int64 `json:"webhook_response_time"`
	WebhookResponseCount int64 `json:"webhook_response_count"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore opens (or creates) the stats database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %v", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the global stats.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}

		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}

		return json.Unmarshal(data, &persisted)
	})

	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}

	stats := Get()

	stats.TotalRequests.Store(persisted.TotalRequests)
	stats.WebhookRequests.Store(persisted.WebhookRequests)
	stats.StatsRequests.Store(persisted.StatsRequests)
	stats.HealthRequests.Store(persisted.HealthRequests)
	stats.OtherRequests.Store(persisted.OtherRequests)
	stats.SongRequests.Store(persisted.SongRequests)
	stats.TrackLinkRequests.Store(persisted.TrackLinkRequests)
	stats.InstagramRequests.Store(persisted.InstagramRequests)
	stats.ChatRequests.Store(persisted.ChatRequests)
	stats.TracksDelivered.Store(persisted.TracksDelivered)
	stats.VideosDelivered.Store(persisted.VideosDelivered)
	stats.HistoryHits.Store(persisted.HistoryHits)
	stats.EmptySearches.Store(persisted.EmptySearches)
	stats.QueueRejected.Store(persisted.QueueRejected)
	stats.RateLimitDropped.Store(persisted.RateLimitDropped)
	stats.Status2xx.Store(persisted.Status2xx)
	stats.Status4xx.Store(persisted.Status4xx)
	stats.Status5xx.Store(persisted.Status5xx)
	stats.totalResponseTime.Store(persisted.TotalResponseTime)
	stats.responseCount.Store(persisted.ResponseCount)
	stats.webhookResponseTime.Store(persisted.WebhookResponseTime)
	stats.webhookResponseCount.Store(persisted.WebhookResponseCount)

	// Only update min/max if we have valid persisted values
	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < int64(^uint64(0)>>1) {
		stats.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		stats.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		stats.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))

	return nil
}

// Save persists current stats to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Get()

	persisted := PersistedStats{
		TotalRequests:        stats.TotalRequests.Load(),
		WebhookRequests:      stats.WebhookRequests.Load(),
		StatsRequests:        stats.StatsRequests.Load(),
		HealthRequests:       stats.HealthRequests.Load(),
		OtherRequests:        stats.OtherRequests.Load(),
		SongRequests:         stats.SongRequests.Load(),
		TrackLinkRequests:    stats.TrackLinkRequests.Load(),
		InstagramRequests:    stats.InstagramRequests.Load(),
		ChatRequests:         stats.ChatRequests.Load(),
		TracksDelivered:      stats.TracksDelivered.Load(),
		VideosDelivered:      stats.VideosDelivered.Load(),
		HistoryHits:          stats.HistoryHits.Load(),
		EmptySearches:        stats.EmptySearches.Load(),
		QueueRejected:        stats.QueueRejected.Load(),
		RateLimitDropped:     stats.RateLimitDropped.Load(),
		Status2xx:            stats.Status2xx.Load(),
		Status4xx:            stats.Status4xx.Load(),
		Status5xx:            stats.Status5xx.Load(),
		TotalResponseTime:    stats.totalResponseTime.Load(),
		ResponseCount:        stats.responseCount.Load(),
		MinResponseTime:      stats.minResponseTime.Load(),
		MaxResponseTime:      stats.maxResponseTime.Load(),
		WebhookResponseTime:  stats.webhookResponseTime.Load(),
		WebhookResponseCount: stats.webhookResponseCount.Load(),
		LastSaved:            time.Now(),
		FirstStarted:         stats.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})

	if err != nil {
		return fmt.Errorf("failed to save stats: %v", err)
	}

	return nil
}

// StartAutoSave begins periodic saving of stats.
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to auto-save stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
	log.Infof("%s Started auto-save with interval %v", logcolors.LogStats, interval)
}

// Close saves stats and closes the database.
func (s *Store) Close() error {
	close(s.stopChan)
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to save stats on close: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}

	return s.db.Close()
}
