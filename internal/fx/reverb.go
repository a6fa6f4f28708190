package fx

import "github.com/cwbudde/algo-dsp/dsp/core"

// MaxReverbFeedback keeps the recursion stable.
const MaxReverbFeedback = 0.99

// Reverb is a single-tap recursive smoother: out = x + last*feedback.
// It colours the sound rather than modelling a room.
type Reverb struct {
	feedback float64
	last     []float64
	ch       int
}

func NewReverb(feedback float64, channels int) *Reverb {
	if channels < 1 {
		channels = 1
	}
	return &Reverb{
		feedback: core.Clamp(feedback, 0, MaxReverbFeedback),
		last:     make([]float64, channels),
	}
}

func (r *Reverb) Apply(x float32) float32 {
	out := float64(x) + r.last[r.ch]*r.feedback
	r.last[r.ch] = core.FlushDenormals(out)
	r.ch++
	if r.ch == len(r.last) {
		r.ch = 0
	}
	return float32(out)
}

func (r *Reverb) Reset() {
	for i := range r.last {
		r.last[i] = 0
	}
	r.ch = 0
}
