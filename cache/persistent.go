package cache

import (
	"encoding/json"
	"fmt"
	"music-bot-go/logcolors"
	"music-bot-go/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "store"

// Store wraps BoltDB with an in-memory front for fast access. Entries may
// carry an expiry; expired entries behave as absent and are removed by the
// sweeper. Used for selection sessions, Instagram credentials and the
// download history, so state survives process restarts.
type Store struct {
	db                 *bolt.DB
	memCache           sync.Map
	dbPath             string
	compressionEnabled bool
}

// Entry is a stored value with an optional expiry (unix nanoseconds, 0 =
// never expires). The value may be gzip-compressed.
type Entry struct {
	Value  string `json:"value"`
	Expiry int64  `json:"expiry,omitempty"`
}

func (e Entry) expired(now time.Time) bool {
	return e.Expiry != 0 && now.UnixNano() > e.Expiry
}

// NewStore opens (or creates) the persistent store at dbPath.
func NewStore(dbPath string, compressionEnabled bool) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %v", err)
	}

	if info, err := os.Stat(dbPath); err == nil {
		log.Infof("%s Found existing database file at: %s (size: %d bytes)", logcolors.LogStoreInit, dbPath, info.Size())
	} else {
		log.Infof("%s Creating new database file at: %s", logcolors.LogStoreInit, dbPath)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create store bucket: %v", err)
	}

	s := &Store{
		db:                 db,
		dbPath:             dbPath,
		compressionEnabled: compressionEnabled,
	}

	if err := s.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload store to memory: %v", logcolors.LogStore, err)
	}

	log.Infof("%s Persistent store initialized at %s (compression: %v)", logcolors.LogStore, dbPath, compressionEnabled)
	return s, nil
}

// loadToMemory loads all live entries from disk to memory, dropping the
// already-expired ones.
func (s *Store) loadToMemory() error {
	count := 0
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				log.Warnf("%s Failed to unmarshal entry for key %s: %v", logcolors.LogStore, string(k), err)
				return nil // Continue to next entry
			}
			if entry.expired(now) {
				return nil
			}
			s.memCache.Store(string(k), entry)
			count++
			return nil
		})
	})

	if err != nil {
		return err
	}

	log.Infof("%s Loaded %d entries from disk to memory", logcolors.LogStore, count)
	return nil
}

// Get retrieves a value (memory first, then disk). Expired entries are
// treated as missing and deleted lazily.
func (s *Store) Get(key string) (string, bool) {
	if cached, ok := s.memCache.Load(key); ok {
		entry := cached.(Entry)
		if entry.expired(time.Now()) {
			s.Delete(key)
			return "", false
		}
		return s.decode(key, entry.Value)
	}

	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("key not found")
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return "", false
	}

	if entry.expired(time.Now()) {
		s.Delete(key)
		return "", false
	}

	s.memCache.Store(key, entry)
	return s.decode(key, entry.Value)
}

// Set stores a value without an expiry.
func (s *Store) Set(key, value string) error {
	return s.put(key, value, 0)
}

// SetTTL stores a value that expires after ttl.
func (s *Store) SetTTL(key, value string, ttl time.Duration) error {
	return s.put(key, value, time.Now().Add(ttl).UnixNano())
}

func (s *Store) put(key, value string, expiry int64) error {
	finalValue := value
	if s.compressionEnabled {
		compressed, err := utils.CompressString(value)
		if err != nil {
			log.Errorf("%s Error compressing value for key %s: %v", logcolors.LogStore, key, err)
			return err
		}
		finalValue = compressed
	}

	entry := Entry{Value: finalValue, Expiry: expiry}
	s.memCache.Store(key, entry)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Delete removes a key from memory and disk.
func (s *Store) Delete(key string) error {
	s.memCache.Delete(key)

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete([]byte(key))
	})
}

// Sweep removes all expired entries. Returns the number removed.
func (s *Store) Sweep() int {
	now := time.Now()
	removed := 0
	s.memCache.Range(func(key, value interface{}) bool {
		if value.(Entry).expired(now) {
			if err := s.Delete(key.(string)); err == nil {
				removed++
			}
		}
		return true
	})
	if removed > 0 {
		log.Infof("%s Removed %d expired entries", logcolors.LogStoreSweep, removed)
	}
	return removed
}

// StartSweeper sweeps expired entries every interval until stop is closed.
func (s *Store) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Len returns the number of entries currently held in memory.
func (s *Store) Len() int {
	count := 0
	s.memCache.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) decode(key, value string) (string, bool) {
	if !s.compressionEnabled {
		return value, true
	}
	decompressed, err := utils.DecompressString(value)
	if err != nil {
		log.Errorf("%s Error decompressing value for key %s: %v", logcolors.LogStore, key, err)
		return "", false
	}
	return decompressed, true
}
