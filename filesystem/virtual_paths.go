package filesystem

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

type MappingKind int

const (
	MappingNotFound MappingKind = iota
	MappingFile
	MappingDirectory
)

func (k MappingKind) String() string {
	switch k {
	case MappingFile:
		return "file"
	case MappingDirectory:
		return "directory"
	default:
		return "not found"
	}
}

// MappingResult is the local resolution of a URL path.
type MappingResult struct {
	Kind      MappingKind
	UrlPath   string
	LocalPath string
	// VirtualPath is the matched URL prefix, "/" for the root.
	VirtualPath          string
	UsedDefaultDocument  bool
	UsedDefaultExtension bool
}

func (r MappingResult) IsFile() bool {
	return r.Kind == MappingFile
}

type virtualPath struct {
	urlPath   string
	localPath string
}

// VirtualPaths maps URL paths to files below a root directory and any number
// of virtual directories. The most specific virtual path wins.
type VirtualPaths struct {
	filesystem Filesystem

	mu               sync.RWMutex
	root             string
	paths            []virtualPath // reverse ordinal by urlPath
	defaultDocument  string
	defaultExtension string

	cacheEnabled bool
	cache        *xsync.MapOf[string, MappingResult]
}

// NewVirtualPaths validates root up front. A missing root is a configuration error.
func NewVirtualPaths(filesystem Filesystem, root string) (*VirtualPaths, error) {
	abs, err := validateDirectory(filesystem, root)
	if err != nil {
		return nil, err
	}

	return &VirtualPaths{
		filesystem:   filesystem,
		root:         abs,
		cacheEnabled: true,
		cache:        xsync.NewMapOf[string, MappingResult](),
	}, nil
}

func validateDirectory(filesystem Filesystem, dir string) (string, error) {
	abs, err := filesystem.GetAbsolutePath(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPath, dir, err)
	}

	exists, err := filesystem.DirectoryExists(abs)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, abs)
	}
	return abs, nil
}

func (v *VirtualPaths) Root() string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.root
}

// Add registers urlPath, which must start and end with "/", as an alias of localPath.
func (v *VirtualPaths) Add(urlPath, localPath string) error {
	if len(urlPath) < 2 || urlPath[0] != '/' || urlPath[len(urlPath)-1] != '/' {
		return fmt.Errorf("%w: virtual path %q must start and end with '/'", ErrInvalidPath, urlPath)
	}

	abs, err := validateDirectory(v.filesystem, localPath)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	replaced := false
	for i := range v.paths {
		if v.paths[i].urlPath == urlPath {
			v.paths[i].localPath = abs
			replaced = true
		}
	}
	if !replaced {
		v.paths = append(v.paths, virtualPath{urlPath: urlPath, localPath: abs})
		sort.Slice(v.paths, func(i, j int) bool {
			return v.paths[i].urlPath > v.paths[j].urlPath
		})
	}

	v.invalidate(func(key string, _ MappingResult) bool {
		return strings.HasPrefix(key, urlPath) || key+"/" == urlPath
	})
	return nil
}

func (v *VirtualPaths) Remove(urlPath string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.paths {
		if v.paths[i].urlPath != urlPath {
			continue
		}

		v.paths = append(v.paths[:i], v.paths[i+1:]...)
		v.invalidate(func(_ string, r MappingResult) bool {
			return r.VirtualPath == urlPath
		})
		return true
	}
	return false
}

// SetDefaultDocument sets the file served for a directory, e.g. "index.html".
func (v *VirtualPaths) SetDefaultDocument(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defaultDocument == name {
		return
	}
	v.defaultDocument = name
	v.invalidate(func(_ string, r MappingResult) bool {
		return r.UsedDefaultDocument || r.Kind == MappingDirectory
	})
}

// SetDefaultExtension sets the extension, e.g. ".html", tried for paths without a match.
func (v *VirtualPaths) SetDefaultExtension(ext string) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.defaultExtension == ext {
		return
	}
	v.defaultExtension = ext
	v.invalidate(func(_ string, r MappingResult) bool {
		return r.UsedDefaultExtension || r.Kind == MappingNotFound
	})
}

// SetCacheEnabled switches the resolution cache. Disabled, every Map hits the filesystem.
func (v *VirtualPaths) SetCacheEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.cacheEnabled = enabled
	v.cache.Clear()
}

func (v *VirtualPaths) InvalidateCache() {
	v.cache.Clear()
}

func (v *VirtualPaths) invalidate(affected func(key string, r MappingResult) bool) {
	v.cache.Range(func(key string, r MappingResult) bool {
		if affected(key, r) {
			v.cache.Delete(key)
		}
		return true
	})
}

// Map resolves urlPath. Missing files, and paths escaping their root, yield MappingNotFound.
func (v *VirtualPaths) Map(urlPath string) MappingResult {
	urlPath = normalizeUrlPath(urlPath)

	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.cacheEnabled {
		if r, ok := v.cache.Load(urlPath); ok {
			return r
		}
	}

	r := v.resolve(urlPath)
	if v.cacheEnabled {
		v.cache.Store(urlPath, r)
	}
	return r
}

func (v *VirtualPaths) resolve(urlPath string) MappingResult {
	result := MappingResult{UrlPath: urlPath, VirtualPath: "/"}

	base, rel := v.root, urlPath
	for _, vp := range v.paths {
		// cheap reject before the full prefix comparison
		if len(urlPath) > 1 && urlPath[1] != vp.urlPath[1] {
			continue
		}
		if strings.HasPrefix(urlPath, vp.urlPath) || urlPath+"/" == vp.urlPath {
			base = vp.localPath
			rel = strings.TrimPrefix(urlPath, strings.TrimSuffix(vp.urlPath, "/"))
			result.VirtualPath = vp.urlPath
			break
		}
	}

	local := filepath.Join(base, filepath.FromSlash(rel))
	if r, err := filepath.Rel(base, local); err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return result
	}

	info, err := v.filesystem.Stat(local)
	switch {
	case err == nil && !info.IsDir():
		result.Kind = MappingFile
		result.LocalPath = local
	case err == nil:
		result.Kind = MappingDirectory
		result.LocalPath = local
		if v.defaultDocument != "" {
			document := filepath.Join(local, v.defaultDocument)
			if ok, _ := v.filesystem.FileExists(document); ok {
				result.Kind = MappingFile
				result.LocalPath = document
				result.UsedDefaultDocument = true
			}
		}
	case v.defaultExtension != "" && !strings.HasSuffix(urlPath, "/"):
		candidate := local + v.defaultExtension
		if ok, _ := v.filesystem.FileExists(candidate); ok {
			result.Kind = MappingFile
			result.LocalPath = candidate
			result.UsedDefaultExtension = true
		}
	}

	return result
}

func normalizeUrlPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}

	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}
