package filesystem

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileSystem(t *testing.T) {
	fs := NewLocalFileSystem()
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	// Test FileExists
	exists, err := fs.FileExists(testFile)
	if err != nil {
		t.Errorf("FileExists failed: %v", err)
	}
	if !exists {
		t.Error("File should exist")
	}

	// A directory is not a file
	exists, _ = fs.FileExists(tempDir)
	if exists {
		t.Error("Directory should not be reported as a file")
	}

	// Test DirectoryExists
	exists, err = fs.DirectoryExists(tempDir)
	if err != nil {
		t.Errorf("DirectoryExists failed: %v", err)
	}
	if !exists {
		t.Error("Directory should exist")
	}

	// Test ReadFile
	content, err := fs.ReadFile(testFile)
	if err != nil {
		t.Errorf("ReadFile failed: %v", err)
	}
	if string(content) != "content" {
		t.Errorf("Expected 'content', got '%s'", content)
	}

	// Test Open
	file, err := fs.Open(testFile)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(file)
	file.Close()
	if string(data) != "content" {
		t.Errorf("Expected 'content', got '%s'", data)
	}

	// Test ListDirectory
	infos, err := fs.ListDirectory(tempDir)
	if err != nil {
		t.Errorf("ListDirectory failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Name() != "test.txt" {
		t.Errorf("Unexpected directory listing: %v", infos)
	}
}

func TestLocalFileSystemNotFound(t *testing.T) {
	fs := NewLocalFileSystem()
	missing := filepath.Join(t.TempDir(), "missing.txt")

	if _, err := fs.ReadFile(missing); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if _, err := fs.Open(missing); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
	if _, err := fs.ListDirectory(missing); !errors.Is(err, ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}
}
