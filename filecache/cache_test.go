package filecache

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freekieb7/embedio/compression"
	"github.com/freekieb7/embedio/test"
)

func TestCacheLRUOrder(t *testing.T) {
	cache := New()
	now := time.Now()

	cache.Add("static", "/a", []byte("a"), now)
	cache.Add("static", "/b", []byte("b"), now)
	cache.Add("static", "/c", []byte("c"), now)
	test.AssertEqual(t, []string{"/c", "/b", "/a"}, cache.Section("static").Keys())

	_, ok := cache.Get("static", "/a")
	test.AssertTrue(t, ok, "item should be cached")
	test.AssertEqual(t, []string{"/a", "/c", "/b"}, cache.Section("static").Keys())

	test.AssertTrue(t, cache.Remove("static", "/c"), "item should be removed")
	test.AssertEqual(t, []string{"/a", "/b"}, cache.Section("static").Keys())

	_, ok = cache.Get("static", "/c")
	test.AssertTrue(t, !ok, "removed item should miss")
}

func TestSectionTrim(t *testing.T) {
	cache := New()
	now := time.Now()
	payload := []byte(strings.Repeat("x", 1000))

	for _, key := range []string{"/1", "/2", "/3", "/4"} {
		cache.Add("static", key, payload, now)
	}
	cache.Get("static", "/1")

	section := cache.Section("static")
	itemSize := section.TotalSize() / 4

	evicted := section.Trim(2 * itemSize)
	test.AssertEqual(t, 2, evicted)
	test.AssertEqual(t, []string{"/1", "/4"}, section.Keys())
	test.AssertTrue(t, section.TotalSize() <= 2*itemSize, "section should fit the budget")
}

func TestSectionsAreIndependent(t *testing.T) {
	cache := New()
	cache.Add("a", "/same", []byte("a"), time.Now())
	cache.Add("b", "/same", []byte("b"), time.Now())

	item, _ := cache.Get("a", "/same")
	test.AssertEqual(t, "a", item.Section())

	cache.Section("a").Trim(0)
	_, ok := cache.Get("b", "/same")
	test.AssertTrue(t, ok, "trimming one section must not touch another")

	cache.Clear()
	test.AssertEqual(t, int64(0), cache.TotalSize())
}

func TestItemETagStability(t *testing.T) {
	cache := New()
	modTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := cache.Add("static", "/index.html", []byte("hello"), modTime)
	tag := first.ETag(compression.None)
	test.AssertEqual(t, tag, first.ETag(compression.None))
	test.AssertTrue(t, strings.HasPrefix(tag, "\"") && strings.HasSuffix(tag, "\""), "etag should be quoted")

	same := cache.Add("static", "/index.html", []byte("hello"), modTime)
	test.AssertEqual(t, tag, same.ETag(compression.None))

	touched := cache.Add("static", "/index.html", []byte("hello"), modTime.Add(time.Second))
	test.AssertTrue(t, touched.ETag(compression.None) != tag, "a new modification time should change the etag")

	resized := cache.Add("static", "/index.html", []byte("hello!"), modTime)
	test.AssertTrue(t, resized.ETag(compression.None) != tag, "a new length should change the etag")

	test.AssertTrue(t, first.ETag(compression.Gzip) != tag, "each method has its own etag")
}

func TestItemCompressedContent(t *testing.T) {
	cache := New()
	text := []byte(strings.Repeat("compressible ", 200))
	item := cache.Add("static", "/text.txt", text, time.Now())
	before := cache.Section("static").TotalSize()

	gz, err := item.Content(compression.Gzip)
	test.AssertNoError(t, err)
	test.AssertTrue(t, len(gz) < len(text), "gzip variant should be smaller")

	decoded, err := compression.Decompress(gz, compression.Gzip)
	test.AssertNoError(t, err)
	test.AssertEqual(t, text, decoded)

	test.AssertEqual(t, before+int64(len(gz)), cache.Section("static").TotalSize())
	test.AssertEqual(t, cache.Section("static").TotalSize(), item.Size())
}

func TestItemIsStale(t *testing.T) {
	modTime := time.Now()
	item := New().Add("static", "/x", []byte("abc"), modTime)

	test.AssertTrue(t, !item.IsStale(modTime, 3), "unchanged file should not be stale")
	test.AssertTrue(t, item.IsStale(modTime.Add(time.Second), 3), "touched file should be stale")
	test.AssertTrue(t, item.IsStale(modTime, 4), "resized file should be stale")
}

func TestSectionSizeWithConcurrentGrowth(t *testing.T) {
	cache := New()
	text := []byte(strings.Repeat("compressible ", 100))
	keys := []string{"/a", "/b", "/c", "/d"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := keys[(i+j)%len(keys)]
				item := cache.Add("static", key, text, time.Now())
				if j%3 == 0 {
					cache.Remove("static", key)
				}
				item.ETag(compression.Gzip)
				item.Content(compression.Gzip)
				item.Content(compression.Deflate)
			}
		}(i)
	}
	wg.Wait()

	section := cache.Section("static")
	var stored int64
	for _, key := range section.Keys() {
		item, ok := cache.Get("static", key)
		test.AssertTrue(t, ok, "listed key should be cached")
		stored += item.Size()
	}
	test.AssertEqual(t, stored, section.TotalSize())

	for _, key := range keys {
		cache.Remove("static", key)
	}
	test.AssertEqual(t, int64(0), section.TotalSize())
}
