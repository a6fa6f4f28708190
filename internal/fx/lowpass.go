package fx

import "github.com/cwbudde/algo-dsp/dsp/core"

// LowPass is a one-pole smoother, y += a*(x-y), with a = cutoff clamped to
// [0.01, 0.99]. Interleaved channels keep separate state.
type LowPass struct {
	alpha float32
	y     []float32
	ch    int
}

func NewLowPass(cutoff float64, channels int) *LowPass {
	if channels < 1 {
		channels = 1
	}
	return &LowPass{
		alpha: float32(core.Clamp(cutoff, 0.01, 0.99)),
		y:     make([]float32, channels),
	}
}

func (l *LowPass) Apply(x float32) float32 {
	y := l.y[l.ch]
	y += l.alpha * (x - y)
	l.y[l.ch] = y
	l.ch++
	if l.ch == len(l.y) {
		l.ch = 0
	}
	return y
}

func (l *LowPass) Reset() {
	for i := range l.y {
		l.y[i] = 0
	}
	l.ch = 0
}
