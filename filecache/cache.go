package filecache

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache holds named sections of cached files.
type Cache struct {
	sections *xsync.MapOf[string, *Section]
}

func New() *Cache {
	return &Cache{
		sections: xsync.NewMapOf[string, *Section](),
	}
}

// Section returns the named section, creating it when missing.
func (c *Cache) Section(name string) *Section {
	s, _ := c.sections.LoadOrCompute(name, func() *Section {
		return &Section{
			name:  name,
			items: make(map[string]*Item),
		}
	})
	return s
}

func (c *Cache) Get(section, key string) (*Item, bool) {
	item, ok := c.Section(section).get(key)

	attrs := metric.WithAttributes(attribute.String("section", section))
	if ok {
		cacheHits.Add(context.Background(), 1, attrs)
	} else {
		cacheMisses.Add(context.Background(), 1, attrs)
	}
	return item, ok
}

// Add stores content under key, replacing any previous item.
func (c *Cache) Add(section, key string, content []byte, lastModified time.Time) *Item {
	item := newItem(c, section, key, content, lastModified)
	c.Section(section).add(item)
	return item
}

func (c *Cache) Remove(section, key string) bool {
	s, ok := c.sections.Load(section)
	if !ok {
		return false
	}
	return s.remove(key)
}

func (c *Cache) Clear() {
	c.sections.Range(func(_ string, s *Section) bool {
		s.clear()
		return true
	})
}

func (c *Cache) TotalSize() int64 {
	var total int64
	c.sections.Range(func(_ string, s *Section) bool {
		total += s.TotalSize()
		return true
	})
	return total
}

// Trim evicts least recently used items until every section fits maxSectionSize.
func (c *Cache) Trim(maxSectionSize int64) int {
	evicted := 0
	c.sections.Range(func(_ string, s *Section) bool {
		evicted += s.Trim(maxSectionSize)
		return true
	})
	return evicted
}

// Section owns its items and their LRU order. head is the most recently used key.
type Section struct {
	name string

	mu        sync.Mutex
	items     map[string]*Item
	head      string
	tail      string
	totalSize int64
}

func (s *Section) Name() string {
	return s.name
}

func (s *Section) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.items)
}

func (s *Section) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalSize
}

// Keys lists the keys from most to least recently used.
func (s *Section) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.items))
	for key := s.head; key != ""; key = s.items[key].nextKey {
		keys = append(keys, key)
	}
	return keys
}

// Trim evicts from the tail until the section fits maxSize.
func (s *Section) Trim(maxSize int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for s.totalSize > maxSize && s.tail != "" {
		s.removeLocked(s.tail)
		evicted++
	}

	if evicted > 0 {
		cacheEvictions.Add(context.Background(), int64(evicted),
			metric.WithAttributes(attribute.String("section", s.name)))
		logger.Debug("cache section trimmed", "section", s.name, "evicted", evicted, "size", s.totalSize)
	}
	return evicted
}

func (s *Section) get(key string) (*Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	s.unlink(item)
	s.pushFront(item)
	return item, true
}

func (s *Section) add(item *Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.Key]; ok {
		s.removeLocked(item.Key)
	}
	s.items[item.Key] = item
	s.pushFront(item)
	s.totalSize += item.Size()
}

func (s *Section) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(key)
}

func (s *Section) removeLocked(key string) bool {
	item, ok := s.items[key]
	if !ok {
		return false
	}

	s.unlink(item)
	delete(s.items, key)
	s.totalSize -= item.Size()
	return true
}

func (s *Section) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*Item)
	s.head, s.tail = "", ""
	s.totalSize = 0
}

// adjust grows item after it was added. The size changes under the section
// lock so a concurrent remove subtracts either the old or the new size, and
// the total follows.
func (s *Section) adjust(item *Item, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.size.Add(delta)
	if s.items[item.Key] == item {
		s.totalSize += delta
	}
}

func (s *Section) pushFront(item *Item) {
	item.prevKey = ""
	item.nextKey = s.head
	if s.head != "" {
		s.items[s.head].prevKey = item.Key
	}
	s.head = item.Key
	if s.tail == "" {
		s.tail = item.Key
	}
}

func (s *Section) unlink(item *Item) {
	if item.prevKey != "" {
		s.items[item.prevKey].nextKey = item.nextKey
	} else if s.head == item.Key {
		s.head = item.nextKey
	}

	if item.nextKey != "" {
		s.items[item.nextKey].prevKey = item.prevKey
	} else if s.tail == item.Key {
		s.tail = item.prevKey
	}

	item.prevKey, item.nextKey = "", ""
}
