// Package beatgrid estimates beat positions and tempo from mono audio using
// frame energy onsets.
package beatgrid

import (
	"math"
	"sort"
)

const (
	WindowSize = 1024
	HopSize    = 512

	// MinInterval and MaxInterval bound the beat intervals used for the
	// tempo estimate, in seconds (300 and 30 BPM).
	MinInterval = 0.2
	MaxInterval = 2.0

	DefaultBPM = 120.0
)

// Grid is an ordered set of beat times in seconds plus an overall tempo.
type Grid struct {
	Beats []float64 `json:"beats"`
	BPM   float64   `json:"bpm"`
}

// Detect runs onset detection over samples and derives the beat grid.
// It keeps only a three-frame history of onset strength, so the only
// allocation is the returned beat list.
func Detect(samples []float32, sampleRate int) Grid {
	grid := Grid{BPM: DefaultBPM}
	if sampleRate <= 0 {
		return grid
	}
	hopSeconds := float64(HopSize) / float64(sampleRate)

	var (
		prevEnergy float64
		before     float64 // o[k-2]
		current    float64 // o[k-1]
		lastPeak   = -1
		sum        float64
		count      int
	)

	frame := 0
	for start := 0; start+WindowSize <= len(samples); start += HopSize {
		energy := frameEnergy(samples[start : start+WindowSize])

		var onset float64
		if frame > 0 {
			onset = math.Max(0, energy-prevEnergy)
		}
		prevEnergy = energy

		if frame >= 2 && current > before && current > onset {
			peak := frame - 1
			if lastPeak >= 0 {
				interval := float64(peak-lastPeak) * hopSeconds
				if interval >= MinInterval && interval <= MaxInterval {
					sum += interval
					count++
				}
			}
			grid.Beats = append(grid.Beats, float64(peak)*hopSeconds)
			lastPeak = peak
		}

		before, current = current, onset
		frame++
	}

	if len(grid.Beats) < 2 {
		grid.Beats = nil
		return grid
	}
	if count > 0 {
		grid.BPM = 60 / (sum / float64(count))
	}
	return grid
}

func frameEnergy(window []float32) float64 {
	var sum float64
	for _, x := range window {
		v := float64(x)
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Empty reports whether the grid has no beats to snap to.
func (g Grid) Empty() bool {
	return len(g.Beats) == 0
}

// Snap returns the beat nearest to t, or t itself when the grid is empty.
func (g Grid) Snap(t float64) float64 {
	if len(g.Beats) == 0 {
		return t
	}
	i := sort.SearchFloat64s(g.Beats, t)
	if i == 0 {
		return g.Beats[0]
	}
	if i == len(g.Beats) {
		return g.Beats[len(g.Beats)-1]
	}
	lo, hi := g.Beats[i-1], g.Beats[i]
	if t-lo <= hi-t {
		return lo
	}
	return hi
}
