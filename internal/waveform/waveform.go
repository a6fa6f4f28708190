// Package waveform reduces decoded audio to a sparse (time, amplitude)
// series for display.
package waveform

import (
	"context"
	"errors"
	"io"

	"github.com/jaki95/dj-emulator/internal/decoder"
)

// Decimation is the number of decoded frames per waveform point.
const Decimation = 512

// Point is a [frame index, amplitude] pair taken from the first channel.
type Point [2]float32

// Extract decodes path and samples its first channel every Decimation frames.
// It is meant for offline use; callers should treat an error as an absent waveform.
func Extract(ctx context.Context, path string) ([]Point, error) {
	src, err := decoder.Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	channels := src.Channels()
	points := make([]Point, 0, src.Len()/Decimation+1)
	buf := make([]float32, Decimation*channels*8)
	frame := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := src.Read(buf)
		for i := 0; i < n/channels; i++ {
			if (frame+i)%Decimation == 0 {
				points = append(points, Point{float32(frame + i), buf[i*channels]})
			}
		}
		frame += n / channels
		if errors.Is(err, io.EOF) {
			return points, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// FromAudio builds the same series from an already decoded track.
func FromAudio(a *decoder.Audio) []Point {
	if a == nil || a.Channels == 0 {
		return nil
	}
	frames := a.Frames()
	points := make([]Point, 0, frames/Decimation+1)
	for f := 0; f < frames; f += Decimation {
		points = append(points, Point{float32(f), a.Samples[f*a.Channels]})
	}
	return points
}
