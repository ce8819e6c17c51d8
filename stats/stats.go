package stats

import (
	"sync/atomic"
	"time"
)

// Stats holds all bot counters with atomic access.
type Stats struct {
	StartTime time.Time

	// HTTP surface
	TotalRequests   atomic.Int64
	WebhookRequests atomic.Int64
	StatsRequests   atomic.Int64
	HealthRequests  atomic.Int64
	OtherRequests   atomic.Int64

	// Classified intents
	SongRequests      atomic.Int64
	TrackLinkRequests atomic.Int64
	InstagramRequests atomic.Int64
	ChatRequests      atomic.Int64

	// Deliveries
	TracksDelivered atomic.Int64
	VideosDelivered atomic.Int64
	HistoryHits     atomic.Int64
	EmptySearches   atomic.Int64

	// Admission
	QueueRejected    atomic.Int64
	RateLimitDropped atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (in microseconds for precision)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	minResponseTime   atomic.Int64
	maxResponseTime   atomic.Int64

	// Webhook-specific response times (microseconds)
	webhookResponseTime  atomic.Int64
	webhookResponseCount atomic.Int64
}

var global = &Stats{
	StartTime: time.Now(),
}

func init() {
	global.minResponseTime.Store(int64(^uint64(0) >> 1)) // Max int64
}

// Get returns the global stats instance.
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint.
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/webhook":
		s.WebhookRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordIntent records which intent the classifier produced.
func (s *Stats) RecordIntent(intent string) {
	switch intent {
	case "song":
		s.SongRequests.Add(1)
	case "music_service_link":
		s.TrackLinkRequests.Add(1)
	case "instagram_link":
		s.InstagramRequests.Add(1)
	case "chat":
		s.ChatRequests.Add(1)
	}
}

// RecordTrackDelivered counts a sent audio file.
func (s *Stats) RecordTrackDelivered() {
	s.TracksDelivered.Add(1)
}

// RecordVideoDelivered counts a sent video.
func (s *Stats) RecordVideoDelivered() {
	s.VideosDelivered.Add(1)
}

// RecordHistoryHit counts a post answered from the download history.
func (s *Stats) RecordHistoryHit() {
	s.HistoryHits.Add(1)
}

// RecordEmptySearch counts a search with no usable results.
func (s *Stats) RecordEmptySearch() {
	s.EmptySearches.Add(1)
}

// RecordQueueRejected counts a request dropped by a full queue.
func (s *Stats) RecordQueueRejected() {
	s.QueueRejected.Add(1)
}

// RecordRateLimitDropped counts a webhook update dropped by rate limiting.
func (s *Stats) RecordRateLimitDropped() {
	s.RateLimitDropped.Add(1)
}

// RecordStatusCode records a response status code.
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time.
func (s *Stats) RecordResponseTime(duration time.Duration, endpoint string) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	// Update min/max atomically
	for {
		current := s.minResponseTime.Load()
		if us >= current || s.minResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}

	if endpoint == "/webhook" {
		s.webhookResponseTime.Add(us)
		s.webhookResponseCount.Add(1)
	}
}

// Uptime returns the server uptime.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// AvgResponseTime returns the average response time.
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MinResponseTime returns the minimum response time.
func (s *Stats) MinResponseTime() time.Duration {
	min := s.minResponseTime.Load()
	if min == int64(^uint64(0)>>1) {
		return 0
	}
	return time.Duration(min) * time.Microsecond
}

// MaxResponseTime returns the maximum response time.
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// AvgWebhookResponseTime returns the average response time for webhook calls.
func (s *Stats) AvgWebhookResponseTime() time.Duration {
	count := s.webhookResponseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.webhookResponseTime.Load()/count) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all stats.
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.StartTime.Format(time.RFC3339),
			"uptime":         uptime.String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":   s.TotalRequests.Load(),
			"webhook": s.WebhookRequests.Load(),
			"stats":   s.StatsRequests.Load(),
			"health":  s.HealthRequests.Load(),
			"other":   s.OtherRequests.Load(),
		},
		"intents": map[string]interface{}{
			"song":               s.SongRequests.Load(),
			"music_service_link": s.TrackLinkRequests.Load(),
			"instagram_link":     s.InstagramRequests.Load(),
			"chat":               s.ChatRequests.Load(),
		},
		"deliveries": map[string]interface{}{
			"tracks":         s.TracksDelivered.Load(),
			"videos":         s.VideosDelivered.Load(),
			"history_hits":   s.HistoryHits.Load(),
			"empty_searches": s.EmptySearches.Load(),
		},
		"admission": map[string]interface{}{
			"queue_rejected":     s.QueueRejected.Load(),
			"rate_limit_dropped": s.RateLimitDropped.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg":         s.AvgResponseTime().String(),
			"min":         s.MinResponseTime().String(),
			"max":         s.MaxResponseTime().String(),
			"avg_webhook": s.AvgWebhookResponseTime().String(),
		},
	}
}
