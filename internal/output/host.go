// Package output connects a mixer engine to the system audio device.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Source is what the host plays. mixer.Engine satisfies it.
type Source interface {
	beep.Streamer
	SampleRate() int
}

// Host owns the speaker for the lifetime of one engine. The speaker package
// is process-global, so only one Host may be open at a time.
type Host struct {
	src  Source
	done chan error

	mu      sync.Mutex
	started bool
	closed  bool
}

// Open initialises the default output device at the source's sample rate
// with a buffer of bufferMs milliseconds.
func Open(src Source, bufferMs int) (*Host, error) {
	if bufferMs <= 0 {
		bufferMs = 100
	}
	sr := beep.SampleRate(src.SampleRate())
	if err := speaker.Init(sr, sr.N(time.Duration(bufferMs)*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	slog.Info("Audio device opened", "sampleRate", int(sr), "bufferMs", bufferMs)
	return &Host{src: src, done: make(chan error, 1)}, nil
}

// Start begins pulling from the source on the device callback. Idempotent.
func (h *Host) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.closed {
		return
	}
	h.started = true
	// The callback runs under the speaker lock, which Fail needs.
	speaker.Play(beep.Seq(h.src, beep.Callback(func() {
		go h.sourceEnded()
	})))
}

// sourceEnded runs once the source stops streaming.
func (h *Host) sourceEnded() {
	if err := h.src.Err(); err != nil {
		h.Fail(err)
		return
	}
	h.finish()
}

// finish reports a clean end of the source on Done.
func (h *Host) finish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = false
	select {
	case h.done <- nil:
	default:
	}
}

// Fail stops playback after the device stream broke and reports err on Done.
func (h *Host) Fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	slog.Error("Audio stream failed", "error", err)
	speaker.Clear()
	h.started = false
	select {
	case h.done <- err:
	default:
	}
}

// Done delivers the first unrecoverable stream error, or nil when the source
// ended cleanly. beep's speaker does not report a lost device, so errors
// come from the source (mixer.Engine.Stop) or from a caller of Fail.
func (h *Host) Done() <-chan error {
	return h.done
}

// Close stops the stream and releases the device.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	speaker.Clear()
	speaker.Close()
	slog.Info("Audio device closed")
}
