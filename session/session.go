package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"music-bot-go/cache"
	"music-bot-go/config"
	"music-bot-go/logcolors"
	"music-bot-go/search/providers"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrExpired is returned for any event against a session that no longer
// exists, whether it timed out or was cancelled.
var ErrExpired = errors.New("selection session expired")

// ErrBadChoice is returned when a selection index does not point at a track.
var ErrBadChoice = errors.New("selection index out of range")

// Session is one user's paginated track selection. It survives restarts in
// the persistent store and dies after the configured TTL without activity.
type Session struct {
	ID       string            `json:"id"`
	ChatKey  string            `json:"chat_key"`
	Tracks   []providers.Track `json:"tracks"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// PageTracks returns the tracks visible on the current page.
func (s *Session) PageTracks() []providers.Track {
	start := s.Page * s.PageSize
	if start >= len(s.Tracks) {
		return nil
	}
	end := start + s.PageSize
	if end > len(s.Tracks) {
		end = len(s.Tracks)
	}
	return s.Tracks[start:end]
}

// PageOffset returns the absolute index of the first track on the page.
func (s *Session) PageOffset() int {
	return s.Page * s.PageSize
}

// TotalPages returns how many pages the track list spans.
func (s *Session) TotalPages() int {
	if len(s.Tracks) == 0 {
		return 1
	}
	return (len(s.Tracks) + s.PageSize - 1) / s.PageSize
}

func (s *Session) HasNext() bool { return s.Page < s.TotalPages()-1 }
func (s *Session) HasPrev() bool { return s.Page > 0 }

// Manager runs selection sessions on top of the persistent store. Every
// navigation refreshes the TTL; selection keeps the session alive so the
// user can pick another track from the same result set.
type Manager struct {
	store    *cache.Store
	ttl      time.Duration
	pageSize int
}

func NewManager(store *cache.Store) *Manager {
	cfg := config.Get()
	return &Manager{
		store:    store,
		ttl:      time.Duration(cfg.Search.SessionTTLSecs) * time.Second,
		pageSize: cfg.Search.SessionPageSize,
	}
}

// Create starts a session over the given candidates and persists it.
func (m *Manager) Create(chatKey string, tracks []providers.Track) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		ChatKey:  chatKey,
		Tracks:   tracks,
		Page:     0,
		PageSize: m.pageSize,
	}
	if err := m.save(s); err != nil {
		return nil, err
	}
	log.Infof("%s Created session %s with %d tracks for %s", logcolors.LogSession, s.ID, len(tracks), chatKey)
	return s, nil
}

// Get loads a live session. A missing session reports ErrExpired.
func (m *Manager) Get(id string) (*Session, error) {
	raw, found := m.store.Get(storeKey(id))
	if !found {
		return nil, ErrExpired
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", id, err)
	}
	return &s, nil
}

// NextPage advances the session one page and refreshes its TTL. On the last
// page it is a no-op.
func (m *Manager) NextPage(id string) (*Session, error) {
	return m.navigate(id, +1)
}

// PrevPage goes back one page and refreshes the TTL. On the first page it
// is a no-op.
func (m *Manager) PrevPage(id string) (*Session, error) {
	return m.navigate(id, -1)
}

func (m *Manager) navigate(id string, delta int) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	page := s.Page + delta
	if page >= 0 && page < s.TotalPages() {
		s.Page = page
	}
	if err := m.save(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Select resolves an absolute track index. The session stays alive with a
// refreshed TTL so further picks from the same results remain possible.
func (m *Manager) Select(id string, index int) (providers.Track, error) {
	s, err := m.Get(id)
	if err != nil {
		return providers.Track{}, err
	}
	if index < 0 || index >= len(s.Tracks) {
		return providers.Track{}, fmt.Errorf("%w: %d of %d", ErrBadChoice, index, len(s.Tracks))
	}
	if err := m.save(s); err != nil {
		return providers.Track{}, err
	}
	log.Infof("%s Session %s selected track %d", logcolors.LogSession, id, index)
	return s.Tracks[index], nil
}

// Cancel ends the session immediately.
func (m *Manager) Cancel(id string) error {
	if _, err := m.Get(id); err != nil {
		return err
	}
	return m.store.Delete(storeKey(id))
}

func (m *Manager) save(s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.store.SetTTL(storeKey(s.ID), string(raw), m.ttl)
}

func storeKey(id string) string {
	return "session:" + id
}
