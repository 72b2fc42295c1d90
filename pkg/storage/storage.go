// Package storage manages the image directory: listing, uploads, deletes
// and space accounting.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/shirou/gopsutil/v3/disk"
)

const (
	minFreeSpace = 1 * 1024 * 1024 // 1MB in bytes
	// MaxNameLen bounds stored file names; longer upload names keep their end
	MaxNameLen = 30
)

var (
	ErrBadName = errors.New("invalid file name")
	ErrNoSpace = errors.New("not enough free space")
)

type File struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Usage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

type Storage struct {
	mu  sync.Mutex
	dir string
}

// New uses dir, creating it if needed
func New(dir string) (*Storage, error) {
	// MkdirAll is safe - it's a no-op if directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Dir() string { return s.dir }

// FS is the read view used by the catalog and for serving files
func (s *Storage) FS() fs.FS { return os.DirFS(s.dir) }

// Files lists regular files by name
func (s *Storage) Files() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Save stores r under a cleaned form of name and returns the name used.
// The file appears atomically.
func (s *Storage) Save(name string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if usage, err := s.Usage(); err == nil && usage.Free < minFreeSpace {
		return "", ErrNoSpace
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}

	log.Printf("Storage: saved %s", name)
	return name, nil
}

func (s *Storage) Delete(name string) error {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrBadName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	log.Printf("Storage: deleted %s", name)
	return nil
}

// Usage reports the filesystem holding the image directory
func (s *Storage) Usage() (Usage, error) {
	du, err := disk.Usage(s.dir)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get disk usage: %w", err)
	}
	return Usage{Total: du.Total, Used: du.Used, Free: du.Free}, nil
}

// cleanName drops any directory part and keeps at most the last MaxNameLen
// bytes, cut on a rune boundary
func cleanName(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	if len(name) > MaxNameLen {
		i := len(name) - MaxNameLen
		for i < len(name) && !utf8.RuneStart(name[i]) {
			i++
		}
		name = name[i:]
	}
	return name, nil
}
