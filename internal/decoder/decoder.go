// Package decoder probes audio files and decodes them into interleaved
// float32 stereo samples. Mono sources are duplicated to both channels.
package decoder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Channels is the channel count of every decoded stream.
const Channels = 2

const readChunkFrames = 4096

// Source is a lazy, forward-only view of a decoded file.
// It can only be restarted by opening the file again.
type Source struct {
	path   string
	file   *os.File
	stream beep.StreamSeekCloser
	format beep.Format
	kind   Format
	buf    [][2]float64
}

// Open probes path and prepares a decoder for it.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError("open", path, ErrIO, err)
	}

	kind, err := Probe(f, path)
	if err != nil {
		f.Close()
		return nil, newError("probe", path, ErrIO, err)
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch kind {
	case FormatWAV:
		stream, format, err = wav.Decode(f)
	case FormatFLAC:
		stream, format, err = flac.Decode(f)
	case FormatMP3:
		stream, format, err = mp3.Decode(f)
	case FormatVorbis:
		stream, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, newError("probe", path, ErrUnsupportedFormat, nil)
	}
	if err != nil {
		f.Close()
		return nil, newError("decode", path, ErrCorruptStream, err)
	}
	if format.SampleRate <= 0 {
		stream.Close()
		f.Close()
		return nil, newError("decode", path, ErrCorruptStream, errors.New("invalid sample rate"))
	}

	slog.Debug("Opened audio source",
		"path", path,
		"format", kind.String(),
		"sampleRate", int(format.SampleRate),
		"channels", format.NumChannels,
	)

	return &Source{
		path:   path,
		file:   f,
		stream: stream,
		format: format,
		kind:   kind,
	}, nil
}

// SampleRate is the decoded rate in Hz.
func (s *Source) SampleRate() int { return int(s.format.SampleRate) }

// Channels is the channel count of the samples returned by Read.
func (s *Source) Channels() int { return Channels }

// SourceChannels is the channel count stored in the file.
func (s *Source) SourceChannels() int { return s.format.NumChannels }

// Format returns the probed container format.
func (s *Source) Format() Format { return s.kind }

// Len returns the stream length in frames, or 0 when the decoder cannot tell.
func (s *Source) Len() int {
	n := s.stream.Len()
	if n < 0 {
		return 0
	}
	return n
}

// Read fills dst with interleaved stereo samples and returns the number of
// samples written. It returns io.EOF once the stream is drained.
func (s *Source) Read(dst []float32) (int, error) {
	frames := len(dst) / Channels
	if frames == 0 {
		return 0, nil
	}
	if cap(s.buf) < frames {
		s.buf = make([][2]float64, frames)
	}
	buf := s.buf[:frames]

	n, ok := s.stream.Stream(buf)
	for i := 0; i < n; i++ {
		dst[2*i] = float32(buf[i][0])
		dst[2*i+1] = float32(buf[i][1])
	}
	if !ok {
		if err := s.stream.Err(); err != nil {
			return n * Channels, newError("read", s.path, ErrCorruptStream, err)
		}
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n * Channels, nil
}

// Close releases the decoder and the underlying file.
func (s *Source) Close() error {
	err := s.stream.Close()
	// Some decoders close the file themselves; a second close is harmless.
	_ = s.file.Close()
	return err
}

// Audio is a fully decoded track.
type Audio struct {
	Samples        []float32
	SampleRate     int
	Channels       int
	SourceChannels int
	Format         Format
}

// Frames returns the number of sample frames.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the length in seconds at the decoded sample rate.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// Mono returns the channel average of the samples.
func (a *Audio) Mono() []float32 {
	return Mono(a.Samples, a.Channels)
}

// Decode reads the whole file at path. When the stream turns out to be
// corrupt after some audio was decoded, the partial Audio is returned
// together with an error wrapping ErrCorruptStream.
func Decode(ctx context.Context, path string) (*Audio, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	audio := &Audio{
		SampleRate:     src.SampleRate(),
		Channels:       src.Channels(),
		SourceChannels: src.SourceChannels(),
		Format:         src.Format(),
		Samples:        make([]float32, 0, src.Len()*Channels),
	}

	chunk := make([]float32, readChunkFrames*Channels)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := src.Read(chunk)
		audio.Samples = append(audio.Samples, chunk[:n]...)
		if err == io.EOF {
			return audio, nil
		}
		if err != nil {
			if len(audio.Samples) == 0 {
				return nil, err
			}
			return audio, err
		}
	}
}

// Mono averages interleaved samples across channels.
func Mono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	scale := 1 / float32(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum * scale
	}
	return out
}
