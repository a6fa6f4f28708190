// Package testutil synthesises audio fixtures for package tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Sine returns seconds of a stereo sine wave at freq Hz.
func Sine(sampleRate int, seconds, freq, amp float64) [][2]float64 {
	n := int(float64(sampleRate) * seconds)
	frames := make([][2]float64, n)
	for i := range frames {
		v := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		frames[i] = [2]float64{v, v}
	}
	return frames
}

// ClickTrack returns silence with a short 1 kHz burst on every beat,
// the first one half a beat in.
func ClickTrack(sampleRate int, seconds, bpm float64) [][2]float64 {
	frames := make([][2]float64, int(float64(sampleRate)*seconds))
	period := int(float64(sampleRate) * 60 / bpm)
	burst := sampleRate / 50
	for start := period / 2; start < len(frames); start += period {
		for i := start; i < start+burst && i < len(frames); i++ {
			v := 0.9 * math.Sin(2*math.Pi*1000*float64(i-start)/float64(sampleRate))
			frames[i] = [2]float64{v, v}
		}
	}
	return frames
}

// Mono flattens frames to their left channel as float32.
func Mono(frames [][2]float64) []float32 {
	out := make([]float32, len(frames))
	for i, f := range frames {
		out[i] = float32(f[0])
	}
	return out
}

// WriteWAV encodes frames as a 16-bit WAV file in dir and returns its path.
func WriteWAV(t testing.TB, dir, name string, sampleRate, channels int, frames [][2]float64) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	pos := 0
	src := beep.StreamerFunc(func(out [][2]float64) (int, bool) {
		if pos >= len(frames) {
			return 0, false
		}
		n := copy(out, frames[pos:])
		pos += n
		return n, true
	})

	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: channels, Precision: 2}
	if err := wav.Encode(f, src, format); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	return path
}

// Mix sums two fixtures frame by frame; the result is as long as the
// shorter one.
func Mix(a, b [][2]float64) [][2]float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{a[i][0] + b[i][0], a[i][1] + b[i][1]}
	}
	return out
}
