// Package mixer combines the two deck streams into the output signal.
package mixer

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/jaki95/dj-emulator/internal/fx"
)

// NoMaster is the master index when no deck drives tempo sync.
const NoMaster = -1

// Engine is a pull-based source. The audio thread calls Next (or Stream);
// every setter may be called from any other goroutine and takes effect at
// the next frame.
type Engine struct {
	sampleRate int
	channels   int

	decks      [2]*Channel
	crossfader atomicFloat

	// out holds the current mixed frame and pos the next sample of it that
	// Next returns. Audio thread only.
	out [2]float32
	pos int

	stopOnce sync.Once
	stopped  atomic.Bool
	err      atomic.Pointer[error]

	// mu serialises chain rebuilds and tempo syncs. The audio thread never
	// takes it.
	mu        sync.Mutex
	master    atomic.Int32
	masterBPM atomic.Uint64
}

// New returns an engine reading deck frames from in1 and in2. Both inputs
// must carry interleaved audio with the given channel count, 1 or 2; any
// other count is treated as stereo.
func New(sampleRate, channels int, in1, in2 Input) *Engine {
	if channels != 1 {
		channels = 2
	}
	e := &Engine{
		sampleRate: sampleRate,
		channels:   channels,
		decks:      [2]*Channel{newChannel(in1, channels), newChannel(in2, channels)},
	}
	e.master.Store(NoMaster)
	return e
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) Channels() int { return e.channels }

// mix pulls one frame from each deck and crossfades them into out.
func (e *Engine) mix() {
	f1 := e.decks[0].next()
	f2 := e.decks[1].next()

	xf := e.crossfader.Load()
	for i := 0; i < e.channels; i++ {
		out := f1[i]*0.5*(1-xf) + f2[i]*0.5*(1+xf)
		if out > 1 {
			out = 1
		} else if out < -1 {
			out = -1
		}
		e.out[i] = out
	}
}

// Next returns the next interleaved output sample, hard clipped to [-1, 1].
// A new frame is mixed every Channels calls.
func (e *Engine) Next() float32 {
	if e.pos == 0 {
		e.mix()
	}
	s := e.out[e.pos]
	e.pos = (e.pos + 1) % e.channels
	return s
}

// Stream fills samples with stereo frames. A mono engine duplicates each
// sample to both sides. A frame half consumed through Next is dropped.
// After Stop it reports the end of the stream.
func (e *Engine) Stream(samples [][2]float64) (int, bool) {
	if e.stopped.Load() {
		return 0, false
	}
	e.pos = 0
	for i := range samples {
		e.mix()
		samples[i][0] = float64(e.out[0])
		samples[i][1] = float64(e.out[e.channels-1])
	}
	return len(samples), true
}

// Stop ends the stream at the next Stream call. A nil err is a clean end;
// otherwise Err reports it. Only the first call has an effect.
func (e *Engine) Stop(err error) {
	e.stopOnce.Do(func() {
		if err != nil {
			e.err.Store(&err)
		}
		e.stopped.Store(true)
	})
}

// Err returns the error passed to Stop. Underflow is silence, not an error.
func (e *Engine) Err() error {
	if p := e.err.Load(); p != nil {
		return *p
	}
	return nil
}

// channel returns the strip for deck i, or nil for an unknown deck. Commands
// addressed to an unknown deck are dropped.
func (e *Engine) channel(i int) *Channel {
	if i < 0 || i >= len(e.decks) {
		return nil
	}
	return e.decks[i]
}

func (e *Engine) SetVolume(i int, v float64) {
	if c := e.channel(i); c != nil {
		c.volume.Store(clamp(v, 0, 1))
	}
}

func (e *Engine) SetGain(i int, v float64) {
	if c := e.channel(i); c != nil {
		c.gain.Store(clamp(v, 0, 2))
	}
}

// SetEQ sets one band of deck i. Bands are summed, so three bands at 1 are
// flat.
func (e *Engine) SetEQ(i, band int, v float64) {
	c := e.channel(i)
	if c == nil || band < Low || band > High {
		return
	}
	c.eq[band].Store(clamp(v, 0, 2))
}

// SetFilter sets the cut-only filter; the deck is attenuated by 1-|v|.
func (e *Engine) SetFilter(i int, v float64) {
	if c := e.channel(i); c != nil {
		c.filter.Store(clamp(v, -1, 1))
	}
}

// SetCrossfader moves the fader between deck 1 (-1) and deck 2 (+1).
func (e *Engine) SetCrossfader(v float64) {
	e.crossfader.Store(clamp(v, -1, 1))
}

// ResetFx clears the state of every effect on deck i. The audio thread does
// the reset before its next frame.
func (e *Engine) ResetFx(i int) {
	if c := e.channel(i); c != nil {
		c.fxReset.Store(true)
	}
}

func (e *Engine) SetFxEnabled(i int, on bool) {
	if c := e.channel(i); c != nil {
		c.fxEnabled.Store(on)
	}
}

// SetFxSlot installs s at position slot of deck i's chain. The new chain is
// built here and published with one pointer swap.
func (e *Engine) SetFxSlot(i, slot int, s fx.Slot) {
	c := e.channel(i)
	if c == nil || slot < 0 || slot >= MaxSlots {
		return
	}
	s = fx.NewSlot(s.Effect, s.DryWet, s.Enabled, s.Momentary)

	e.mu.Lock()
	defer e.mu.Unlock()

	if ts, ok := s.Effect.(fx.TempoSynced); ok {
		if bpm := e.MasterBPM(); bpm > 0 {
			ts.UpdateTempo(bpm)
		}
	}
	next := c.chain.Load().With(slot, s)
	c.chain.Store(&next)
}

// SetMaster makes deck i the sync master, replacing any other. NoMaster
// clears it.
func (e *Engine) SetMaster(i int) {
	if i != NoMaster && e.channel(i) == nil {
		return
	}
	e.master.Store(int32(i))
}

// Master returns the master deck index or NoMaster.
func (e *Engine) Master() int {
	return int(e.master.Load())
}

// SyncTempo retunes every tempo-synced effect on both decks to bpm.
func (e *Engine) SyncTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.masterBPM.Store(math.Float64bits(bpm))
	for _, c := range e.decks {
		c.chain.Load().UpdateTempo(bpm)
	}
	slog.Debug("Synced effects tempo", "bpm", bpm, "master", e.Master())
}

// MasterBPM returns the tempo last passed to SyncTempo, or 0.
func (e *Engine) MasterBPM() float64 {
	return math.Float64frombits(e.masterBPM.Load())
}

// Controls is a snapshot of every mixer control.
type Controls struct {
	Decks      [2]ChannelControls `json:"decks"`
	Crossfader float64            `json:"crossfader"`
	Master     int                `json:"master"`
	MasterBPM  float64            `json:"master_bpm"`
	SampleRate int                `json:"sample_rate"`
	Channels   int                `json:"channels"`
}

func (e *Engine) Controls() Controls {
	return Controls{
		Decks:      [2]ChannelControls{e.decks[0].controls(), e.decks[1].controls()},
		Crossfader: float64(e.crossfader.Load()),
		Master:     e.Master(),
		MasterBPM:  e.MasterBPM(),
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	}
}
