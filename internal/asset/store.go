package asset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	ErrNotFound      = errors.New("asset not found")
	ErrInvalidID     = errors.New("invalid asset id")
	ErrUnsupported   = errors.New("unsupported font format")
	validID          = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)
	fontExtByMagic   = map[string]string{"\x00\x01\x00\x00": ".ttf", "true": ".ttf", "OTTO": ".otf", "wOFF": ".woff", "wOF2": ".woff2"}
	supportedFontExt = []string{".ttf", ".otf", ".woff", ".woff2"}
)

// Store keeps font files on disk, one file per asset id. Scenes name
// fonts by asset id, and a font counts as ready once its file is stored.
type Store struct {
	dir string

	mu    sync.RWMutex
	files map[string]string // asset id -> file name

	generation atomic.Uint64
}

// NewStore creates dir if needed and indexes the fonts already in it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	s := &Store{dir: dir, files: make(map[string]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read asset dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !isFontExt(ext) {
			continue
		}
		s.files[strings.TrimSuffix(e.Name(), ext)] = e.Name()
	}
	slog.Debug("indexed assets", "dir", dir, "count", len(s.files))
	return s, nil
}

// Ready reports whether a font with this id is stored.
func (s *Store) Ready(assetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[assetID]
	return ok
}

// Generation changes whenever a font is added or removed.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Path returns the file name stored for assetID, relative to the store.
func (s *Store) Path(assetID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.files[assetID]
	return name, ok
}

// Put stores a font under assetID, replacing any earlier file. The format
// is sniffed from the first bytes.
func (s *Store) Put(assetID string, r io.Reader) (string, error) {
	if !validID.MatchString(assetID) {
		return "", ErrInvalidID
	}

	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return "", ErrUnsupported
	}
	ext, ok := fontExtByMagic[string(head)]
	if !ok {
		return "", ErrUnsupported
	}

	filename := assetID + ext
	filePath := filepath.Join(s.dir, filename)
	if err := copyFile(filePath, io.MultiReader(bytes.NewReader(head), r)); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("write asset: %w", err)
	}

	s.mu.Lock()
	if old, ok := s.files[assetID]; ok && old != filename {
		os.Remove(filepath.Join(s.dir, old))
	}
	s.files[assetID] = filename
	s.mu.Unlock()

	s.generation.Add(1)
	return filename, nil
}

// Delete removes an asset file from disk.
func (s *Store) Delete(assetID string) error {
	s.mu.Lock()
	name, ok := s.files[assetID]
	if ok {
		delete(s.files, assetID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.generation.Add(1)
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func isFontExt(ext string) bool {
	for _, e := range supportedFontExt {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// copyFile copies src reader to a file at dst path.
func copyFile(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}
