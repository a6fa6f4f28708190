package fx

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
)

// Division is an echo length as a fraction of one beat.
type Division float64

const (
	Quarter Division = 0.25
	Half    Division = 0.5
	Whole   Division = 1
)

var ErrInvalidDivision = fmt.Errorf("invalid division")

// ParseDivision accepts "1/4", "1/2" and "1/1" (or "1").
func ParseDivision(s string) (Division, error) {
	switch s {
	case "1/4":
		return Quarter, nil
	case "1/2":
		return Half, nil
	case "1/1", "1":
		return Whole, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDivision, s)
}

func (d Division) String() string {
	switch d {
	case Quarter:
		return "1/4"
	case Half:
		return "1/2"
	case Whole:
		return "1/1"
	}
	return fmt.Sprintf("%g", float64(d))
}

// Echo is a tempo-synced feedback delay.
//
// The delay line belongs to the audio thread. UpdateTempo builds a new line
// on the caller's goroutine and hands it over through pending; Apply adopts
// it before the next sample.
type Echo struct {
	sampleRate int
	channels   int
	division   Division
	feedback   float64

	line    *delay.Line
	pending atomic.Pointer[delay.Line]
	size    atomic.Int64
	bpm     atomic.Uint64
}

// NewEcho returns an echo whose delay is round(sampleRate*60/bpm*division)
// frames. A non-positive bpm falls back to 120 and an unknown division to a
// quarter beat.
func NewEcho(sampleRate, channels int, bpm float64, division Division, feedback float64) *Echo {
	if channels < 1 {
		channels = 1
	}
	if division <= 0 {
		division = Quarter
	}
	e := &Echo{
		sampleRate: sampleRate,
		channels:   channels,
		division:   division,
		feedback:   core.Clamp(feedback, 0, 1),
	}
	e.line = e.build(bpm)
	return e
}

// DelaySamples returns the length of a delay in frames for the given tempo.
func DelaySamples(sampleRate int, bpm float64, division Division) int {
	if bpm <= 0 {
		bpm = 120
	}
	n := int(math.Round(float64(sampleRate) * 60 / bpm * float64(division)))
	if n < 1 {
		n = 1
	}
	return n
}

func (e *Echo) build(bpm float64) *delay.Line {
	if bpm <= 0 {
		bpm = 120
	}
	size := DelaySamples(e.sampleRate, bpm, e.division) * e.channels
	line, err := delay.New(size)
	if err != nil {
		// size is always positive; keep whatever line we had
		slog.Error("Failed to allocate echo line", "size", size, "error", err)
		return e.line
	}
	e.size.Store(int64(size))
	e.bpm.Store(math.Float64bits(bpm))
	return line
}

func (e *Echo) Apply(x float32) float32 {
	if next := e.pending.Swap(nil); next != nil {
		e.line = next
	}
	echo := e.line.Read(e.line.Len())
	e.line.Write(float64(x) + echo*e.feedback)
	return x + float32(echo)
}

// UpdateTempo rebuilds the delay line for bpm. Safe to call while the
// audio thread is running Apply.
func (e *Echo) UpdateTempo(bpm float64) {
	e.pending.Store(e.build(bpm))
}

func (e *Echo) Reset() {
	e.line.Reset()
}

// Delay returns the current delay length in interleaved samples.
func (e *Echo) Delay() int {
	return int(e.size.Load())
}

// BPM returns the tempo the echo was last synced to.
func (e *Echo) BPM() float64 {
	return math.Float64frombits(e.bpm.Load())
}

func (e *Echo) Division() Division {
	return e.division
}
