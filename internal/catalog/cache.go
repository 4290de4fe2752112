package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketPages   = []byte("pages")
	bucketDetails = []byte("details")
)

// cachedPage is the stored form of a [models.Page].
type cachedPage struct {
	StoredAt   time.Time         `json:"storedAt"`
	Items      []json.RawMessage `json:"items"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	HasMore    bool              `json:"hasMore"`
}

type cachedDetails struct {
	StoredAt time.Time       `json:"storedAt"`
	Content  json.RawMessage `json:"content"`
}

// Cache is a read-through store for catalog responses backed by bbolt.
// An empty path keeps entries in memory only.
type Cache struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	memory map[string][]byte
}

// OpenCache opens (or creates) the cache file at path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	c := &Cache{ttl: ttl, now: time.Now, memory: make(map[string][]byte)}
	if path == "" {
		return c, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketPages, bucketDetails} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	c.db = db
	return c, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// PageKey builds "type:op:query:page".
func PageKey(t models.ContentType, op, query string, page int) string {
	return strings.Join([]string{string(t), op, strings.ToLower(strings.TrimSpace(query)), strconv.Itoa(page)}, ":")
}

// DetailsKey builds "type:details:id".
func DetailsKey(t models.ContentType, id string) string {
	return string(t) + ":details:" + id
}

// Page returns a fresh cached page for key.
func (c *Cache) Page(key string) (*models.Page, bool) {
	var entry cachedPage
	if !c.get(bucketPages, key, &entry) || c.expired(entry.StoredAt) {
		return nil, false
	}

	items := make([]models.Content, 0, len(entry.Items))
	for _, raw := range entry.Items {
		item, err := models.UnmarshalContent(raw)
		if err != nil {
			return nil, false
		}
		items = append(items, item)
	}
	return &models.Page{Items: items, Page: entry.Page, TotalPages: entry.TotalPages, HasMore: entry.HasMore}, true
}

// PutPage stores page under key.
func (c *Cache) PutPage(key string, page *models.Page) error {
	entry := cachedPage{
		StoredAt:   c.now(),
		Items:      make([]json.RawMessage, 0, len(page.Items)),
		Page:       page.Page,
		TotalPages: page.TotalPages,
		HasMore:    page.HasMore,
	}
	for _, item := range page.Items {
		raw, err := models.MarshalContent(item)
		if err != nil {
			return err
		}
		entry.Items = append(entry.Items, raw)
	}
	return c.set(bucketPages, key, entry)
}

// Details returns a fresh cached item for key.
func (c *Cache) Details(key string) (models.Content, bool) {
	var entry cachedDetails
	if !c.get(bucketDetails, key, &entry) || c.expired(entry.StoredAt) {
		return nil, false
	}
	item, err := models.UnmarshalContent(entry.Content)
	if err != nil {
		return nil, false
	}
	return item, true
}

func (c *Cache) PutDetails(key string, item models.Content) error {
	raw, err := models.MarshalContent(item)
	if err != nil {
		return err
	}
	return c.set(bucketDetails, key, cachedDetails{StoredAt: c.now(), Content: raw})
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune() (int, error) {
	removed := 0

	c.mu.Lock()
	for key, data := range c.memory {
		var head struct {
			StoredAt time.Time `json:"storedAt"`
		}
		if json.Unmarshal(data, &head) == nil && c.expired(head.StoredAt) {
			delete(c.memory, key)
			if c.db == nil {
				removed++
			}
		}
	}
	c.mu.Unlock()

	if c.db == nil {
		return removed, nil
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPages, bucketDetails} {
			b := tx.Bucket(name)
			var stale [][]byte
			err := b.ForEach(func(k, v []byte) error {
				var head struct {
					StoredAt time.Time `json:"storedAt"`
				}
				if json.Unmarshal(v, &head) != nil || c.expired(head.StoredAt) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (c *Cache) expired(storedAt time.Time) bool {
	return c.ttl > 0 && c.now().Sub(storedAt) > c.ttl
}

func (c *Cache) get(bucket []byte, key string, dest any) bool {
	memKey := string(bucket) + ":" + key

	c.mu.RLock()
	data, ok := c.memory[memKey]
	c.mu.RUnlock()
	if ok {
		return json.Unmarshal(data, dest) == nil
	}

	if c.db == nil {
		return false
	}

	c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if data == nil {
		return false
	}

	c.mu.Lock()
	c.memory[memKey] = data
	c.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (c *Cache) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.memory[string(bucket)+":"+key] = data
	c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}
