// Package cache provides a persistent, TTL-bounded store for refined
// transcripts, backed by badger.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DefaultTTL is how long refined text stays cached.
const DefaultTTL = 7 * 24 * time.Hour

// Entry is a cached refinement result.
type Entry struct {
	Text      string    `json:"text"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache is safe for concurrent use.
type Cache struct {
	db *badger.DB
}

// New opens (or creates) a cache rooted at dir.
func New(dir string) (*Cache, error) {
	return open(badger.DefaultOptions(dir))
}

// NewInMemory returns a cache that is discarded on Close.
func NewInMemory() (*Cache, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Cache, error) {
	db, err := badger.Open(opts.WithLogger(slogLogger{}))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the entry stored under key, if present and not expired.
func (c *Cache) Get(key string) (*Entry, bool) {
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("cache get", "error", err)
		}
		return nil, false
	}
	return &entry, true
}

// Set stores entry under key for ttl.
func (c *Cache) Set(key string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(ttl))
	})
}

// Close flushes and closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GenerateKey derives a stable key from its parts.
func GenerateKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// slogLogger routes badger's logging into slog. Info and debug chatter
// is demoted to debug.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any)   { slog.Error("badger: " + fmt.Sprintf(f, v...)) }
func (slogLogger) Warningf(f string, v ...any) { slog.Warn("badger: " + fmt.Sprintf(f, v...)) }
func (slogLogger) Infof(f string, v ...any)    { slog.Debug("badger: " + fmt.Sprintf(f, v...)) }
func (slogLogger) Debugf(f string, v ...any)   { slog.Debug("badger: " + fmt.Sprintf(f, v...)) }
