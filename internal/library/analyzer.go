// Package library warms the metadata cache for a directory of tracks.
package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/dj-emulator/config"
	"github.com/jaki95/dj-emulator/internal/analysis"
	"github.com/jaki95/dj-emulator/internal/cache"
)

var ErrNoTracks = errors.New("no audio files found")

// Report summarises one run.
type Report struct {
	// Pending is the number of files with no cache entry when the run began.
	Pending  int
	Analyzed int
	Cached   int
	Failed   int
	Errors   map[string]error
}

// Analyzer describes every track in a directory tree through the cache.
type Analyzer struct {
	cache      *cache.Cache
	workers    int
	extensions map[string]bool
	output     io.Writer

	// ContinueOnError keeps going after a failed file instead of cancelling
	// the remaining work.
	ContinueOnError bool
}

// NewAnalyzer uses cfg's worker count and extension list. Progress is drawn
// on the ANSI-aware stdout.
func NewAnalyzer(c *cache.Cache, cfg config.LibraryConfig) *Analyzer {
	a := &Analyzer{
		cache:      c,
		workers:    cfg.Workers,
		extensions: make(map[string]bool),
		output:     ansi.NewAnsiStdout(),
	}
	if a.workers < 1 {
		a.workers = 1
	}
	for _, ext := range cfg.Extensions {
		a.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return a
}

// SetOutput redirects the progress bar.
func (a *Analyzer) SetOutput(w io.Writer) {
	a.output = w
}

// Find lists the audio files under dir in lexical order.
func (a *Analyzer) Find(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if a.extensions[ext] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Run analyses every audio file under dir. Files already in the cache are
// counted but not decoded.
func (a *Analyzer) Run(ctx context.Context, dir string) (Report, error) {
	report := Report{Errors: make(map[string]error)}

	files, err := a.Find(dir)
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		return report, fmt.Errorf("%w in %s", ErrNoTracks, dir)
	}
	for _, path := range files {
		if !a.cache.Has(analysis.CanonicalPath(path)) {
			report.Pending++
		}
	}
	slog.Info("Analysing library",
		"dir", dir,
		"files", len(files),
		"pending", report.Pending,
		"workers", a.workers,
	)

	bar := progressbar.NewOptions(
		len(files),
		progressbar.OptionSetWriter(a.output),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan][analyze][reset] Reading tracks..."),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		semaphore = make(chan struct{}, a.workers)
	)

	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer func() {
				bar.Add(1)
				wg.Done()
			}()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}

			track, cached, err := analysis.Describe(ctx, path, a.cache)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				slog.Warn("Failed to analyse track", "path", path, "error", err)
				report.Failed++
				report.Errors[path] = err
				if !a.ContinueOnError && firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", path, err)
					cancel()
				}
			case cached:
				report.Cached++
			default:
				slog.Debug("Analysed track", "path", path, "title", track.Title, "bpm", track.BPM)
				report.Analyzed++
			}
		}(path)
	}

	wg.Wait()
	bar.Finish()

	slog.Info("Library analysis finished",
		"analyzed", report.Analyzed,
		"cached", report.Cached,
		"failed", report.Failed,
	)
	if firstErr != nil {
		return report, firstErr
	}
	return report, ctx.Err()
}
