package mixer

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"

	"github.com/jaki95/dj-emulator/internal/fx"
)

// EQ bands.
const (
	Low = iota
	Mid
	High
)

// MaxSlots bounds the length of a channel's FX chain.
const MaxSlots = 8

// atomicFloat stores a float32 as its bit pattern so the audio thread can
// read controls written by the UI without locking.
type atomicFloat struct {
	bits atomic.Uint32
}

func (f *atomicFloat) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float32bits(float32(v)))
}

// Input is the read side of a deck's frame queue.
type Input interface {
	// PopFrame fills dst with one interleaved frame, or reports underflow.
	PopFrame(dst []float32) bool
}

// Channel is one deck's strip: its input plus the controls applied to it.
type Channel struct {
	input    Input
	channels int
	frame    [2]float32 // audio thread only

	volume    atomicFloat
	gain      atomicFloat
	eq        [3]atomicFloat
	filter    atomicFloat
	fxEnabled atomic.Bool
	fxReset   atomic.Bool
	chain     atomic.Pointer[fx.Chain]
}

func newChannel(in Input, channels int) *Channel {
	c := &Channel{input: in, channels: channels}
	c.volume.Store(1)
	c.gain.Store(1)
	for i := range c.eq {
		c.eq[i].Store(1)
	}
	c.chain.Store(&fx.Chain{})
	return c
}

// next pulls one frame and runs it through the strip. Controls are read
// once per frame, so every effect sees whole frames in channel order.
// Silence on underflow.
func (c *Channel) next() []float32 {
	f := c.frame[:c.channels]
	if !c.input.PopFrame(f) {
		clear(f)
	}

	level := c.volume.Load() * c.gain.Load()
	eq := (c.eq[Low].Load() + c.eq[Mid].Load() + c.eq[High].Load()) / 3
	filter := c.filter.Load()
	if filter < 0 {
		filter = -filter
	}

	chain := c.chain.Load()
	if c.fxReset.Swap(false) {
		chain.Reset()
	}
	enabled := c.fxEnabled.Load()

	for i, x := range f {
		x *= level
		x *= eq
		x *= 1 - filter
		if enabled {
			x = chain.Process(x)
		}
		f[i] = x
	}
	return f
}

// ChannelControls is a snapshot of one strip.
type ChannelControls struct {
	Volume    float64        `json:"volume"`
	Gain      float64        `json:"gain"`
	EQ        [3]float64     `json:"eq"`
	Filter    float64        `json:"filter"`
	FxEnabled bool           `json:"fx_enabled"`
	Slots     []SlotControls `json:"fx_slots"`
}

// SlotControls describes one FX slot.
type SlotControls struct {
	Effect    string  `json:"effect"`
	DryWet    float64 `json:"dry_wet"`
	Enabled   bool    `json:"enabled"`
	Momentary bool    `json:"momentary"`
}

func (c *Channel) controls() ChannelControls {
	cc := ChannelControls{
		Volume:    float64(c.volume.Load()),
		Gain:      float64(c.gain.Load()),
		Filter:    float64(c.filter.Load()),
		FxEnabled: c.fxEnabled.Load(),
	}
	for i := range c.eq {
		cc.EQ[i] = float64(c.eq[i].Load())
	}
	for _, s := range *c.chain.Load() {
		name := ""
		if s.Effect != nil {
			name = fx.Name(s.Effect)
		}
		cc.Slots = append(cc.Slots, SlotControls{
			Effect:    name,
			DryWet:    s.DryWet,
			Enabled:   s.Enabled,
			Momentary: s.Momentary,
		})
	}
	return cc
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return core.Clamp(v, lo, hi)
}
