package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

const (
	thumbnailSize    = 300
	thumbnailQuality = 85
)

// ImageStore writes uploaded photos to a directory and serves derived
// thumbnails. The rest of the system only ever holds the opaque path it
// returns; image bytes are never inspected outside this package.
type ImageStore struct {
	dir    string
	thumbs struct {
		sync.RWMutex
		cache map[string][]byte
	}
}

// NewImageStore creates the upload directory if needed and returns a store
// rooted there.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	s := &ImageStore{dir: dir}
	s.thumbs.cache = make(map[string][]byte)
	return s, nil
}

// Dir returns the upload directory root.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save streams one upload to disk under a unique name derived from the
// original extension, and returns the stored path.
func (s *ImageStore) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("%d-%09d%s", time.Now().UnixNano(), rand.Intn(1e9), ext)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return path, nil
}

// Resolve validates that a stored path is inside the upload directory and
// points at an existing file. Guards against traversal through journaled or
// client-echoed paths.
func (s *ImageStore) Resolve(path string) (string, error) {
	cleanDir := filepath.Clean(s.dir)
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, cleanDir+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}

	if _, err := os.Stat(cleanPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrImageNotFound
		}
		return "", fmt.Errorf("failed to stat image: %w", err)
	}
	return cleanPath, nil
}

// Thumbnail returns a JPEG preview at most 300px on a side, generated once
// per path and cached in memory for the kiosk display.
func (s *ImageStore) Thumbnail(path string) ([]byte, error) {
	resolved, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	s.thumbs.RLock()
	if cached, ok := s.thumbs.cache[resolved]; ok {
		s.thumbs.RUnlock()
		return cached, nil
	}
	s.thumbs.RUnlock()

	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, ErrNotAnImage
	}

	thumb := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	data := buf.Bytes()

	s.thumbs.Lock()
	s.thumbs.cache[resolved] = data
	s.thumbs.Unlock()

	return data, nil
}

// Remove deletes a stored image and its cached thumbnail. Missing files are
// not an error; the sweeper may race a manual cleanup.
func (s *ImageStore) Remove(path string) error {
	resolved, err := s.Resolve(path)
	if err != nil {
		if err == ErrImageNotFound {
			return nil
		}
		return err
	}

	s.thumbs.Lock()
	delete(s.thumbs.cache, resolved)
	s.thumbs.Unlock()

	if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}
