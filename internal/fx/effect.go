// Package fx contains the per-sample effect processors that run inside the
// mixer, and the slot/chain types that order them.
package fx

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Effect is a stateful sample transducer. Apply is only ever called from the
// audio thread and must not allocate.
type Effect interface {
	Apply(x float32) float32
	Reset()
}

// TempoSynced is implemented by effects whose timing follows the master BPM.
// UpdateTempo runs on a control goroutine.
type TempoSynced interface {
	Effect
	UpdateTempo(bpm float64)
}

var ErrUnknownEffect = fmt.Errorf("unknown effect")

// Params configures an effect built with New.
type Params struct {
	SampleRate int
	Channels   int
	BPM        float64

	Cutoff   float64  // lowpass
	Division Division // echo
	Feedback float64  // echo, reverb
}

// New builds an effect by name: "lowpass", "echo" or "reverb".
func New(name string, p Params) (Effect, error) {
	switch strings.ToLower(name) {
	case "lowpass":
		return NewLowPass(p.Cutoff, p.Channels), nil
	case "echo":
		return NewEcho(p.SampleRate, p.Channels, p.BPM, p.Division, p.Feedback), nil
	case "reverb":
		return NewReverb(p.Feedback, p.Channels), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
}

// Name returns the name New accepts for e, or "" for foreign effects.
func Name(e Effect) string {
	switch e.(type) {
	case *LowPass:
		return "lowpass"
	case *Echo:
		return "echo"
	case *Reverb:
		return "reverb"
	}
	return ""
}

// Slot pairs an effect with its mix settings.
type Slot struct {
	Effect    Effect
	Enabled   bool
	Momentary bool
	DryWet    float64
}

// NewSlot returns a slot with dryWet clamped to [0, 1].
func NewSlot(e Effect, dryWet float64, enabled, momentary bool) Slot {
	return Slot{
		Effect:    e,
		Enabled:   enabled,
		Momentary: momentary,
		DryWet:    core.Clamp(dryWet, 0, 1),
	}
}

// Active reports whether the slot processes audio.
func (s Slot) Active() bool {
	return s.Effect != nil && (s.Enabled || s.Momentary)
}

// Chain is an ordered list of slots. Order is audible.
type Chain []Slot

// Process runs x through every active slot in order.
func (c Chain) Process(x float32) float32 {
	for i := range c {
		s := &c[i]
		if !s.Active() {
			continue
		}
		wet := s.Effect.Apply(x)
		dw := float32(s.DryWet)
		x = x*(1-dw) + wet*dw
	}
	return x
}

// UpdateTempo forwards bpm to every tempo-synced effect in the chain.
func (c Chain) UpdateTempo(bpm float64) {
	for _, s := range c {
		if ts, ok := s.Effect.(TempoSynced); ok {
			ts.UpdateTempo(bpm)
		}
	}
}

// Reset clears the state of every effect in the chain.
func (c Chain) Reset() {
	for _, s := range c {
		if s.Effect != nil {
			s.Effect.Reset()
		}
	}
}

// With returns a copy of c with slot i replaced, growing the chain if needed.
func (c Chain) With(i int, s Slot) Chain {
	n := len(c)
	if i >= n {
		n = i + 1
	}
	out := make(Chain, n)
	copy(out, c)
	out[i] = s
	return out
}
