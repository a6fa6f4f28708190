// Package deck implements one playback deck: transport, cue points, loops,
// hot cues and the producer goroutine that keeps its ring buffer filled.
package deck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/jaki95/dj-emulator/config"
	"github.com/jaki95/dj-emulator/internal/analysis"
	"github.com/jaki95/dj-emulator/internal/beatgrid"
	"github.com/jaki95/dj-emulator/internal/cache"
	"github.com/jaki95/dj-emulator/internal/ringbuf"
	"github.com/jaki95/dj-emulator/internal/status"
	"github.com/jaki95/dj-emulator/internal/waveform"
)

const (
	HotCues = 4

	// BPM overrides are clamped to the tempo range the beatgrid detector
	// can report.
	MinBPM = 30.0
	MaxBPM = 300.0
)

var (
	ErrHotCueIndex = errors.New("hot cue index out of range")
	ErrNotLoaded   = errors.New("no track loaded")
)

// Option configures a Deck.
type Option func(*Deck)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(d *Deck) { d.clock = c }
}

// WithCache makes loads consult and fill c.
func WithCache(c *cache.Cache) Option {
	return func(d *Deck) { d.cache = c }
}

// WithStatus publishes load and producer events to t.
func WithStatus(t *status.Tracker) Option {
	return func(d *Deck) { d.tracker = t }
}

type loadedTrack struct {
	res      *analysis.Result
	duration float64
}

// Deck is safe for concurrent use by control goroutines. The mixer only
// touches it through Buffer.
type Deck struct {
	name    string
	cfg     config.AudioConfig
	clock   Clock
	cache   *cache.Cache
	tracker *status.Tracker
	buf     *ringbuf.Buffer

	// loadMu serialises loads so at most one producer exists.
	loadMu sync.Mutex

	mu      sync.Mutex
	track   *loadedTrack
	prod    *producer
	pitch   float64
	playing bool
	start   time.Duration // valid while playing
	resume  float64
	cue     *float64
	loopIn  *float64
	loopOut *float64
	hot     [HotCues]*float64
	bpm     *float64
	master  bool
}

// New returns an empty deck producing audio in cfg's device format.
func New(name string, cfg config.AudioConfig, opts ...Option) *Deck {
	d := &Deck{
		name:  name,
		cfg:   cfg,
		clock: SystemClock(),
		buf:   ringbuf.New(ringbuf.SizeFor(cfg.SampleRate, cfg.Channels, cfg.RingBufferMs), cfg.Channels),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Deck) Name() string { return d.name }

// Buffer is the deck's output queue. The mixer is its only consumer.
func (d *Deck) Buffer() *ringbuf.Buffer { return d.buf }

// Load analyses path and replaces the current track. On failure the deck is
// left exactly as it was and the error is also published as a status event.
// Cue, loop, hot cues and the BPM override are cleared; pitch and the master
// flag survive. The new track starts paused at 0.
func (d *Deck) Load(ctx context.Context, path string) error {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	reporter := d.tracker.NewReporter(d.name, path)
	reporter.Report(status.StageLoading, "Loading track")
	slog.Info("Loading track", "deck", d.name, "path", path, "loadId", reporter.LoadID())

	res, err := analysis.Run(ctx, path, d.cache)
	if err != nil {
		slog.Error("Failed to load track", "deck", d.name, "path", path, "error", err)
		reporter.Fail(err)
		return fmt.Errorf("load %s: %w", path, err)
	}

	d.mu.Lock()
	old := d.prod
	d.prod = nil
	d.mu.Unlock()
	if old != nil {
		old.stop()
	}
	// Nothing of the previous track may reach the mixer once Load returns.
	d.buf.Flush()

	d.mu.Lock()
	d.track = &loadedTrack{res: res, duration: res.Audio.Duration()}
	d.playing = false
	d.resume = 0
	d.cue, d.loopIn, d.loopOut, d.bpm = nil, nil, nil, nil
	d.hot = [HotCues]*float64{}
	d.prod = startProducer(context.WithoutCancel(ctx), producerConfig{
		buf:        d.buf,
		samples:    res.Audio.Samples,
		srcRate:    res.Audio.SampleRate,
		deviceRate: d.cfg.SampleRate,
		channels:   d.cfg.Channels,
		chunk:      d.cfg.ChunkSize,
		quality:    d.cfg.ResampleQuality,
		rate:       d.rateLocked(),
		reporter:   reporter,
		decodeErr:  res.DecodeErr,
	})
	d.mu.Unlock()

	// The old producer is gone and the new one has not pushed yet.
	reporter.Report(status.StageLoaded, "Track loaded")
	slog.Info("Track loaded",
		"deck", d.name,
		"title", res.Track.Title,
		"duration", res.Audio.Duration(),
		"bpm", res.Grid.BPM,
		"cached", res.Cached,
	)
	return nil
}

func (d *Deck) rateLocked() float64 {
	return 1 + d.pitch*d.cfg.PitchRange
}

func (d *Deck) frameLocked(t float64) int {
	if d.track == nil {
		return 0
	}
	return int(math.Round(t * float64(d.track.res.Audio.SampleRate)))
}

// Play starts playback from the current position. Idempotent.
func (d *Deck) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playing || d.track == nil {
		return
	}
	d.start = d.clock.Now() - duration(d.resume/d.rateLocked())
	d.playing = true
	d.prod.seek(d.frameLocked(d.resume))
	d.prod.play()
}

// Pause freezes the position and stops feeding the mixer.
func (d *Deck) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.playing {
		return
	}
	d.resume = d.positionLocked()
	d.playing = false
	d.prod.pause()
}

func (d *Deck) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

// Position returns the playback position in seconds, within [0, duration].
// Passing the loop end rewinds to the loop start.
func (d *Deck) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

func (d *Deck) positionLocked() float64 {
	if d.track == nil {
		return 0
	}

	raw := d.resume
	if d.playing {
		raw = seconds(d.clock.Now()-d.start) * d.rateLocked()
	}

	if in, out, ok := d.loopLocked(); ok && raw > out {
		raw = in
		if d.playing {
			d.start = d.clock.Now() - duration(in/d.rateLocked())
		} else {
			d.resume = in
		}
	}

	return core.Clamp(raw, 0, d.track.duration)
}

func (d *Deck) loopLocked() (in, out float64, ok bool) {
	if d.loopIn == nil || d.loopOut == nil || *d.loopIn >= *d.loopOut {
		return 0, 0, false
	}
	return *d.loopIn, *d.loopOut, true
}

// seekLocked moves the transport to t and tells the producer to refill.
func (d *Deck) seekLocked(t float64) {
	if d.track == nil {
		return
	}
	t = core.Clamp(t, 0, d.track.duration)
	if d.playing {
		d.start = d.clock.Now() - duration(t/d.rateLocked())
	} else {
		d.resume = t
	}
	d.prod.seek(d.frameLocked(t))
}

func (d *Deck) SetCue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return
	}
	p := d.positionLocked()
	d.cue = &p
}

// JumpToCue seeks to the beat nearest the cue point, if one is set.
func (d *Deck) JumpToCue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cue == nil {
		return
	}
	d.seekLocked(d.snapLocked(*d.cue))
}

func (d *Deck) SetLoopIn() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return
	}
	p := d.positionLocked()
	d.loopIn = &p
	d.syncLoopLocked()
}

func (d *Deck) SetLoopOut() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return
	}
	p := d.positionLocked()
	d.loopOut = &p
	d.syncLoopLocked()
}

func (d *Deck) ClearLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loopIn, d.loopOut = nil, nil
	d.syncLoopLocked()
}

// syncLoopLocked hands the loop region to the producer's streamer.
func (d *Deck) syncLoopLocked() {
	if d.prod == nil {
		return
	}
	if in, out, ok := d.loopLocked(); ok {
		d.prod.src.setLoop(d.frameLocked(in), d.frameLocked(out))
		return
	}
	d.prod.src.clearLoop()
}

// LoopActive reports whether both loop points are set with in < out.
func (d *Deck) LoopActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _, ok := d.loopLocked()
	return ok
}

func (d *Deck) SetHotCue(i int) error {
	if i < 0 || i >= HotCues {
		return fmt.Errorf("%w: %d", ErrHotCueIndex, i)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.track == nil {
		return ErrNotLoaded
	}
	p := d.positionLocked()
	d.hot[i] = &p
	return nil
}

// JumpToHotCue seeks to the beat nearest hot cue i. An unset cue is a no-op.
func (d *Deck) JumpToHotCue(i int) error {
	if i < 0 || i >= HotCues {
		return fmt.Errorf("%w: %d", ErrHotCueIndex, i)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hot[i] != nil {
		d.seekLocked(d.snapLocked(*d.hot[i]))
	}
	return nil
}

// SnapToBeat returns the beat nearest t, or t when there is no grid.
func (d *Deck) SnapToBeat(t float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapLocked(t)
}

func (d *Deck) snapLocked(t float64) float64 {
	if d.track == nil {
		return t
	}
	return d.track.res.Grid.Snap(t)
}

// EffectiveBPM is the override, else the detected tempo, else 120.
func (d *Deck) EffectiveBPM() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.effectiveBPMLocked()
}

func (d *Deck) effectiveBPMLocked() float64 {
	if d.bpm != nil {
		return *d.bpm
	}
	if d.track != nil {
		return d.track.res.Grid.BPM
	}
	return beatgrid.DefaultBPM
}

// SetPitch sets the rate offset in [-1, 1]; the deck plays at
// 1 + pitch*pitch_range. The position does not jump.
func (d *Deck) SetPitch(x float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	x = core.Clamp(x, -1, 1)
	if d.playing {
		p := seconds(d.clock.Now()-d.start) * d.rateLocked()
		d.pitch = x
		d.start = d.clock.Now() - duration(p/d.rateLocked())
	} else {
		d.pitch = x
	}
	if d.prod != nil {
		d.prod.setRate(d.rateLocked())
	}
}

func (d *Deck) Pitch() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pitch
}

// SetBPMOverride replaces the detected tempo. nil clears the override.
func (d *Deck) SetBPMOverride(bpm *float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bpm == nil {
		d.bpm = nil
		return
	}
	v := core.Clamp(*bpm, MinBPM, MaxBPM)
	d.bpm = &v
}

// SetMaster only records the flag; the mixer decides which deck is master.
func (d *Deck) SetMaster(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.master = on
}

// Close stops the producer. The deck cannot be used afterwards.
func (d *Deck) Close() {
	d.loadMu.Lock()
	defer d.loadMu.Unlock()

	d.mu.Lock()
	p := d.prod
	d.prod = nil
	d.playing = false
	d.mu.Unlock()
	if p != nil {
		p.stop()
	}
}

// State is what a UI renders for one deck.
type State struct {
	Name        string            `json:"name"`
	Path        string            `json:"path,omitempty"`
	Title       string            `json:"title,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Loaded      bool              `json:"loaded"`
	Playing     bool              `json:"playing"`
	Position    float64           `json:"position"`
	Duration    float64           `json:"duration"`
	BPM         float64           `json:"bpm"`
	BPMOverride *float64          `json:"bpm_override,omitempty"`
	Pitch       float64           `json:"pitch"`
	BeatGrid    beatgrid.Grid     `json:"beatgrid"`
	Waveform    []waveform.Point  `json:"waveform,omitempty"`
	Cue         *float64          `json:"cue,omitempty"`
	LoopIn      *float64          `json:"loop_in,omitempty"`
	LoopOut     *float64          `json:"loop_out,omitempty"`
	LoopActive  bool              `json:"loop_active"`
	HotCues     [HotCues]*float64 `json:"hot_cues"`
	Master      bool              `json:"master"`
}

func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := State{
		Name:        d.name,
		Playing:     d.playing,
		Position:    d.positionLocked(),
		BPM:         d.effectiveBPMLocked(),
		BPMOverride: copyPtr(d.bpm),
		Pitch:       d.pitch,
		Cue:         copyPtr(d.cue),
		LoopIn:      copyPtr(d.loopIn),
		LoopOut:     copyPtr(d.loopOut),
		Master:      d.master,
	}
	_, _, s.LoopActive = d.loopLocked()
	for i, h := range d.hot {
		s.HotCues[i] = copyPtr(h)
	}
	if d.track != nil {
		res := d.track.res
		s.Loaded = true
		s.Path = res.Path
		s.Title = res.Track.Title
		s.Artist = res.Track.Artist
		s.Duration = d.track.duration
		s.BeatGrid = res.Grid
		s.Waveform = res.Waveform
	}
	return s
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
