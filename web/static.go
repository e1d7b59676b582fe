package web

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/freekieb7/embedio/compression"
	"github.com/freekieb7/embedio/filecache"
	"github.com/freekieb7/embedio/filesystem"
	"github.com/freekieb7/embedio/http"
)

const (
	DefaultMaxCachedFileSize = 1024 * 1024      // 1MB
	DefaultMaxCacheSize      = 64 * 1024 * 1024 // 64MB
	DefaultDocument          = "index.html"
)

type staticConfig struct {
	filesystem        filesystem.Filesystem
	cache             *filecache.Cache
	watch             bool
	defaultDocument   string
	defaultExtension  string
	maxCachedFileSize int64
	maxCacheSize      int64
	virtualPaths      [][2]string
}

type StaticOption func(*staticConfig)

func WithFilesystem(fs filesystem.Filesystem) StaticOption {
	return func(cfg *staticConfig) {
		cfg.filesystem = fs
	}
}

// WithFileCache shares cache between modules. Each module uses its own section.
func WithFileCache(cache *filecache.Cache) StaticOption {
	return func(cfg *staticConfig) {
		cfg.cache = cache
	}
}

// WithWatch resolves every request path against the filesystem instead of
// trusting cached path mappings, so added and removed files show up at once.
// Cached contents are always checked against the file modification time.
func WithWatch(watch bool) StaticOption {
	return func(cfg *staticConfig) {
		cfg.watch = watch
	}
}

func WithDefaultDocument(name string) StaticOption {
	return func(cfg *staticConfig) {
		cfg.defaultDocument = name
	}
}

func WithDefaultExtension(ext string) StaticOption {
	return func(cfg *staticConfig) {
		cfg.defaultExtension = ext
	}
}

// WithMaxCachedFileSize sets the size above which files are streamed from disk.
func WithMaxCachedFileSize(size int64) StaticOption {
	return func(cfg *staticConfig) {
		cfg.maxCachedFileSize = size
	}
}

// WithMaxCacheSize bounds the cache section trimmed on housekeeping.
func WithMaxCacheSize(size int64) StaticOption {
	return func(cfg *staticConfig) {
		cfg.maxCacheSize = size
	}
}

func WithVirtualPath(urlPath, localPath string) StaticOption {
	return func(cfg *staticConfig) {
		cfg.virtualPaths = append(cfg.virtualPaths, [2]string{urlPath, localPath})
	}
}

// StaticFilesModule serves files below a root folder and its virtual paths.
type StaticFilesModule struct {
	ModuleBase

	filesystem        filesystem.Filesystem
	paths             *filesystem.VirtualPaths
	cache             *filecache.Cache
	section           string
	maxCachedFileSize int64
	maxCacheSize      int64
}

func NewStaticFilesModule(baseRoute, root string, opts ...StaticOption) (*StaticFilesModule, error) {
	cfg := staticConfig{
		defaultDocument:   DefaultDocument,
		maxCachedFileSize: DefaultMaxCachedFileSize,
		maxCacheSize:      DefaultMaxCacheSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.filesystem == nil {
		cfg.filesystem = filesystem.NewLocalFileSystem()
	}
	if cfg.cache == nil {
		cfg.cache = filecache.New()
	}

	paths, err := filesystem.NewVirtualPaths(cfg.filesystem, root)
	if err != nil {
		return nil, err
	}
	for _, vp := range cfg.virtualPaths {
		if err := paths.Add(vp[0], vp[1]); err != nil {
			return nil, err
		}
	}
	paths.SetDefaultDocument(cfg.defaultDocument)
	paths.SetDefaultExtension(cfg.defaultExtension)
	paths.SetCacheEnabled(!cfg.watch)

	m := &StaticFilesModule{
		ModuleBase:        NewModuleBase(baseRoute, true),
		filesystem:        cfg.filesystem,
		paths:             paths,
		cache:             cfg.cache,
		maxCachedFileSize: cfg.maxCachedFileSize,
		maxCacheSize:      cfg.maxCacheSize,
	}
	m.section = "static:" + m.BaseRoute()
	return m, nil
}

// Paths exposes the path mapping, e.g. to add virtual paths later.
func (m *StaticFilesModule) Paths() *filesystem.VirtualPaths {
	return m.paths
}

func (m *StaticFilesModule) HandleRequest(ctx *http.Context) error {
	req, res := ctx.Request, ctx.Response
	if req.Method != "GET" && req.Method != "HEAD" {
		res.Header.Set("Allow", "GET, HEAD")
		return NewHTTPError(http.StatusMethodNotAllowed, "")
	}

	mapping := m.paths.Map(ctx.Route.SubPath)
	if !mapping.IsFile() {
		return NewHTTPError(http.StatusNotFound, "")
	}

	info, err := m.filesystem.Stat(mapping.LocalPath)
	if err != nil || info.IsDir() {
		m.cache.Remove(m.section, mapping.LocalPath)
		m.paths.InvalidateCache()
		return NewHTTPError(http.StatusNotFound, "")
	}

	if info.Size() > m.maxCachedFileSize {
		m.cache.Remove(m.section, mapping.LocalPath)
		return m.serveFile(ctx, mapping.LocalPath, info.ModTime(), info.Size())
	}

	// a cached copy is only served while it matches the file on disk
	item, ok := m.cache.Get(m.section, mapping.LocalPath)
	if !ok || item.IsStale(info.ModTime(), info.Size()) {
		data, err := m.filesystem.ReadFile(mapping.LocalPath)
		if err != nil {
			return err
		}
		item = m.cache.Add(m.section, mapping.LocalPath, data, info.ModTime())
	}

	contentType := contentTypeOf(mapping.LocalPath)
	method := compression.None
	if isCompressible(contentType) {
		method = req.AcceptEncoding()
		res.Header.Set("Vary", "Accept-Encoding")
	}

	etag := item.ETag(method)
	setFileHeaders(res, contentType, etag, item.LastModified)
	if notModified(req, etag, item.LastModified) {
		res.WithStatus(http.StatusNotModified)
		res.ContentLength = 0
		return nil
	}

	content, err := item.Content(method)
	if err != nil {
		logger.Warn("Compressing file failed", slog.String("path", mapping.LocalPath), slog.Any("error", err))
		method = compression.None
		content, _ = item.Content(method)
		res.Header.Set("ETag", item.ETag(method))
	}
	if encoding := method.ContentEncoding(); encoding != "" {
		res.Header.Set("Content-Encoding", encoding)
	}

	res.ContentLength = int64(len(content))
	_, err = res.Write(content)
	return err
}

// serveFile streams a file too large for the cache.
func (m *StaticFilesModule) serveFile(ctx *http.Context, path string, modTime time.Time, length int64) error {
	req, res := ctx.Request, ctx.Response

	etag := filecache.ETag(modTime, length, compression.None)
	setFileHeaders(res, contentTypeOf(path), etag, modTime)
	if notModified(req, etag, modTime) {
		res.WithStatus(http.StatusNotModified)
		res.ContentLength = 0
		return nil
	}

	res.ContentLength = length
	if req.Method == "HEAD" {
		return nil
	}

	f, err := m.filesystem.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.CopyN(res, f, length)
	return err
}

// Housekeep trims the module cache section.
func (m *StaticFilesModule) Housekeep(ctx context.Context) {
	if n := m.cache.Section(m.section).Trim(m.maxCacheSize); n > 0 {
		logger.DebugContext(ctx, "Trimmed file cache", slog.String("section", m.section), slog.Int("evicted", n))
	}
}

func setFileHeaders(res *http.Response, contentType, etag string, modTime time.Time) {
	res.Header.Set("Content-Type", contentType)
	res.Header.Set("ETag", etag)
	res.Header.Set("Last-Modified", modTime.UTC().Format(http.TimeFormat))
}

// notModified evaluates If-None-Match, or If-Modified-Since when absent.
func notModified(req *http.Request, etag string, modTime time.Time) bool {
	if match := req.Header.Get("If-None-Match"); match != "" {
		for _, candidate := range strings.Split(match, ",") {
			candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
			if candidate == "*" || candidate == etag {
				return true
			}
		}
		return false
	}

	since, err := time.Parse(http.TimeFormat, req.Header.Get("If-Modified-Since"))
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(since)
}

func contentTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func isCompressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case strings.HasSuffix(mediaType, "+xml"), strings.HasSuffix(mediaType, "+json"):
		return true
	}
	switch mediaType {
	case "application/json", "application/javascript", "application/xml", "image/svg+xml", "application/wasm":
		return true
	}
	return false
}
