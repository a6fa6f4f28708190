// Package cache persists per-file analysis results so a track is only
// analysed once.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"lukechampine.com/blake3"

	"github.com/jaki95/dj-emulator/internal/domain"
	"github.com/jaki95/dj-emulator/internal/storage"
)

var ErrCacheCorrupt = errors.New("cache entry corrupt")

// Cache maps audio file paths to their stored domain.Track.
type Cache struct {
	store storage.Store
}

func New(store storage.Store) *Cache {
	return &Cache{store: store}
}

// Key returns the lowercase hex blake3-256 digest of the path string.
func Key(path string) string {
	sum := blake3.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

func fileName(path string) string {
	return Key(path) + ".json"
}

// PathFor returns where the record for path is stored.
func (c *Cache) PathFor(path string) string {
	root := c.store.Root()
	if filepath.IsAbs(root) {
		return filepath.Join(root, fileName(path))
	}
	return root + "/" + fileName(path)
}

// Load returns the stored track for path. Absent, unreadable and malformed
// records are all reported as a miss.
func (c *Cache) Load(path string) (*domain.Track, bool) {
	track, err := c.load(path)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Ignoring cache entry", "path", path, "error", err)
		}
		return nil, false
	}
	return track, true
}

func (c *Cache) load(path string) (*domain.Track, error) {
	r, err := c.store.Reader(fileName(path))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	track, err := domain.ParseTrack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return track, nil
}

// Store writes track for path. Failures are logged; the cache is best-effort.
func (c *Cache) Store(path string, track domain.Track) {
	data, err := json.MarshalIndent(track, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode cache entry", "path", path, "error", err)
		return
	}
	if err := c.store.WriteAtomic(fileName(path), data); err != nil {
		slog.Warn("Failed to write cache entry", "path", path, "error", err)
		return
	}
	slog.Debug("Cached track", "path", path, "key", Key(path))
}

// Has reports whether a record exists for path, without parsing it.
func (c *Cache) Has(path string) bool {
	return c.store.Exists(fileName(path))
}
