// Package analysis turns an audio file into everything a deck needs before
// playback: decoded samples, waveform, beatgrid and the cached track record.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jaki95/dj-emulator/internal/beatgrid"
	"github.com/jaki95/dj-emulator/internal/cache"
	"github.com/jaki95/dj-emulator/internal/decoder"
	"github.com/jaki95/dj-emulator/internal/domain"
	"github.com/jaki95/dj-emulator/internal/waveform"
)

// Result holds one analysed track.
type Result struct {
	Path     string
	Audio    *decoder.Audio
	Waveform []waveform.Point
	Grid     beatgrid.Grid
	Track    domain.Track
	Cached   bool

	// DecodeErr is set when the file broke off mid-stream. Audio then holds
	// everything decoded before the failure.
	DecodeErr error
}

// CanonicalPath is the form of a path used as the cache key.
func CanonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Run decodes and analyses path. c may be nil. A cached record supplies the
// metadata and tempo; beats are always detected because they are not
// cached.
func Run(ctx context.Context, path string, c *cache.Cache) (*Result, error) {
	key := CanonicalPath(path)

	var cached *domain.Track
	if c != nil {
		if t, ok := c.Load(key); ok {
			cached = t
		}
	}

	audio, err := decoder.Decode(ctx, path)
	if audio == nil {
		return nil, err
	}

	res := &Result{
		Path:      key,
		Audio:     audio,
		Waveform:  waveform.FromAudio(audio),
		Grid:      beatgrid.Detect(audio.Mono(), audio.SampleRate),
		DecodeErr: err,
	}
	if err != nil {
		slog.Warn("Track decoded partially", "path", path, "decodedSeconds", audio.Duration(), "error", err)
	}

	if cached != nil {
		res.Track = *cached
		res.Cached = true
		if cached.BPM > 0 {
			res.Grid.BPM = cached.BPM
		}
		return res, nil
	}

	res.Track = describe(path, audio, res.Grid)
	if c != nil && res.DecodeErr == nil {
		c.Store(key, res.Track)
	}
	return res, nil
}

// Describe returns the cached record for path, analysing the file only on a
// miss. The second result reports a cache hit.
func Describe(ctx context.Context, path string, c *cache.Cache) (domain.Track, bool, error) {
	if c != nil {
		if t, ok := c.Load(CanonicalPath(path)); ok {
			return *t, true, nil
		}
	}
	res, err := Run(ctx, path, c)
	if err != nil {
		return domain.Track{}, false, err
	}
	if res.DecodeErr != nil {
		return res.Track, false, fmt.Errorf("analyse %s: %w", path, res.DecodeErr)
	}
	return res.Track, false, nil
}

func describe(path string, audio *decoder.Audio, grid beatgrid.Grid) domain.Track {
	tags, err := decoder.ReadTags(path)
	if err != nil {
		slog.Debug("No tags read", "path", path, "error", err)
	}
	return domain.Track{
		Title:    tags.Title,
		Artist:   tags.Artist,
		BPM:      grid.BPM,
		Duration: audio.Duration(),
	}
}
