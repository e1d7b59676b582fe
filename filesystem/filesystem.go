package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrFileNotFound      = errors.New("filesystem: file not found")
	ErrDirectoryNotFound = errors.New("filesystem: directory not found")
	ErrInvalidPath       = errors.New("filesystem: invalid path")
)

// Filesystem is the read-only view of local storage used to serve files.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	Open(path string) (fs.File, error)
	Stat(path string) (os.FileInfo, error)

	FileExists(path string) (bool, error)
	DirectoryExists(path string) (bool, error)
	ListDirectory(path string) ([]os.FileInfo, error)

	GetAbsolutePath(path string) (string, error)
}

type localFileSystem struct {
}

func NewLocalFileSystem() Filesystem {
	return &localFileSystem{}
}

func (filesystem *localFileSystem) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return data, err
}

func (filesystem *localFileSystem) Open(path string) (fs.File, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return file, err
}

func (filesystem *localFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// FileExists reports whether path exists and is not a directory.
func (filesystem *localFileSystem) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return !info.IsDir(), nil
}

func (filesystem *localFileSystem) DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, err
	}

	return info.IsDir(), nil
}

func (filesystem *localFileSystem) ListDirectory(path string) ([]os.FileInfo, error) {
	exists, err := filesystem.DirectoryExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func (filesystem *localFileSystem) GetAbsolutePath(path string) (string, error) {
	return filepath.Abs(path)
}
