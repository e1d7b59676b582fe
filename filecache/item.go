package filecache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freekieb7/embedio/compression"
)

// itemOverhead approximates the fixed memory cost of an item and its map entry.
const itemOverhead = 256

// Item is one cached resource with a content variant per compression method.
// It refers to its section by name only.
type Item struct {
	Key          string
	LastModified time.Time
	// Length is the size of the uncompressed content.
	Length int64

	cache   *Cache
	section string

	mu      sync.Mutex
	content [len(compression.Methods)][]byte
	etags   [len(compression.Methods)]string
	size    atomic.Int64

	// LRU links, guarded by the section lock.
	prevKey string
	nextKey string
}

func newItem(cache *Cache, section, key string, content []byte, lastModified time.Time) *Item {
	item := &Item{
		Key:          key,
		LastModified: lastModified,
		Length:       int64(len(content)),
		cache:        cache,
		section:      section,
	}
	item.content[compression.None] = content
	item.size.Store(itemOverhead + int64(len(key)) + int64(len(content)))
	return item
}

// ETag is the quoted entity tag of a file version: its modification time,
// its length and the content coding, in hexadecimal.
func ETag(modTime time.Time, length int64, m compression.Method) string {
	return fmt.Sprintf("\"%x-%x-%d\"", modTime.UnixNano(), length, m)
}

// Section is the name of the owning section.
func (item *Item) Section() string {
	return item.section
}

// Size is the approximate memory held by the item.
func (item *Item) Size() int64 {
	return item.size.Load()
}

// IsStale reports whether the file on disk no longer matches the cached copy.
func (item *Item) IsStale(modTime time.Time, length int64) bool {
	return !item.LastModified.Equal(modTime) || item.Length != length
}

// ETag returns the entity tag of the variant encoded with m.
func (item *Item) ETag(m compression.Method) string {
	item.mu.Lock()
	defer item.mu.Unlock()

	if item.etags[m] == "" {
		item.etags[m] = ETag(item.LastModified, item.Length, m)
		item.grow(int64(len(item.etags[m])))
	}
	return item.etags[m]
}

// Content returns the variant encoded with m, compressing it on first use.
func (item *Item) Content(m compression.Method) ([]byte, error) {
	item.mu.Lock()
	defer item.mu.Unlock()

	if data := item.content[m]; data != nil || m == compression.None {
		return data, nil
	}

	data, err := compression.Compress(item.content[compression.None], m)
	if err != nil {
		return nil, err
	}
	item.content[m] = data
	item.grow(int64(len(data)))

	return data, nil
}

func (item *Item) grow(delta int64) {
	if s, ok := item.cache.sections.Load(item.section); ok {
		s.adjust(item, delta)
		return
	}
	item.size.Add(delta)
}
