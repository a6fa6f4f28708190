package deck

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/jaki95/dj-emulator/internal/ringbuf"
	"github.com/jaki95/dj-emulator/internal/status"
)

const (
	backoff = 10 * time.Millisecond
	noSeek  = -1
)

// producer feeds one loaded track into the deck's ring buffer. It is the
// only writer of that buffer while it runs.
type producer struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	buf      *ringbuf.Buffer
	src      *trackStreamer
	reporter *status.Reporter

	srcRate    int
	deviceRate int
	channels   int
	chunk      int
	quality    int

	// decodeErr ends the stream with an error event instead of "ended".
	decodeErr error

	rate    atomic.Uint64 // playback rate as float64 bits
	playing atomic.Bool
	seekTo  atomic.Int64
}

type producerConfig struct {
	buf        *ringbuf.Buffer
	samples    []float32
	srcRate    int
	deviceRate int
	channels   int
	chunk      int
	quality    int
	rate       float64
	reporter   *status.Reporter
	decodeErr  error
}

func startProducer(parent context.Context, cfg producerConfig) *producer {
	ctx, cancel := context.WithCancel(parent)
	p := &producer{
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		buf:        cfg.buf,
		src:        newTrackStreamer(cfg.samples),
		reporter:   cfg.reporter,
		srcRate:    cfg.srcRate,
		deviceRate: cfg.deviceRate,
		channels:   cfg.channels,
		chunk:      cfg.chunk,
		quality:    cfg.quality,
		decodeErr:  cfg.decodeErr,
	}
	p.rate.Store(math.Float64bits(cfg.rate))
	p.seekTo.Store(noSeek)
	go p.run()
	return p
}

// stop cancels the producer and waits for it to exit. Methods other than
// stop are no-ops on a nil producer.
func (p *producer) stop() {
	p.cancel()
	<-p.done
}

func (p *producer) setRate(rate float64) {
	if p == nil {
		return
	}
	p.rate.Store(math.Float64bits(rate))
}

func (p *producer) play() {
	if p != nil {
		p.playing.Store(true)
	}
}

func (p *producer) pause() {
	if p != nil {
		p.playing.Store(false)
	}
}

// seek asks the producer to drop what it has buffered and continue from
// frame.
func (p *producer) seek(frame int) {
	if p == nil {
		return
	}
	p.seekTo.Store(int64(frame))
}

func (p *producer) ratio() float64 {
	return float64(p.srcRate) / float64(p.deviceRate) * math.Float64frombits(p.rate.Load())
}

func (p *producer) run() {
	defer close(p.done)

	frames := make([][2]float64, p.chunk)
	out := make([]float32, p.chunk*p.channels)
	var pending []float32

	resampler := beep.ResampleRatio(p.quality, p.ratio(), p.src)
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	wasPlaying := false
	ended := false

	for {
		select {
		case <-p.ctx.Done():
			p.reporter.Report(status.StageCancelled, "Producer stopped")
			return
		default:
		}

		if to := p.seekTo.Swap(noSeek); to != noSeek {
			p.src.Seek(int(to))
			resampler = beep.ResampleRatio(p.quality, p.ratio(), p.src)
			p.buf.Flush()
			pending = nil
			ended = false
		}

		if !p.playing.Load() {
			if wasPlaying {
				p.buf.Flush()
				pending = nil
				wasPlaying = false
			}
			if !p.sleep(timer) {
				return
			}
			continue
		}
		if !wasPlaying {
			wasPlaying = true
			p.reporter.Report(status.StageStreaming, "Streaming")
		}

		if len(pending) == 0 && !ended {
			if r := p.ratio(); r != resampler.Ratio() {
				resampler.SetRatio(r)
			}
			n, ok := resampler.Stream(frames)
			pending = p.convert(out, frames[:n])
			if !ok || n < len(frames) {
				ended = true
				p.finish()
			}
		}

		if len(pending) > 0 {
			pushed := p.buf.Push(pending)
			pending = pending[pushed:]
		}

		if len(pending) > 0 || ended {
			if !p.sleep(timer) {
				return
			}
			continue
		}
		runtime.Gosched()
	}
}

// convert writes frames into out at the mixer's channel count.
func (p *producer) convert(out []float32, frames [][2]float64) []float32 {
	if p.channels == 1 {
		for i, f := range frames {
			out[i] = float32((f[0] + f[1]) / 2)
		}
		return out[:len(frames)]
	}
	for i, f := range frames {
		out[2*i] = float32(f[0])
		out[2*i+1] = float32(f[1])
	}
	return out[:2*len(frames)]
}

func (p *producer) finish() {
	if p.decodeErr != nil {
		slog.Error("Track stream terminated", "error", p.decodeErr)
		p.reporter.Fail(p.decodeErr)
		return
	}
	p.reporter.Report(status.StageEnded, "Track ended")
}

// sleep waits one backoff period. It returns false when the producer has
// been cancelled.
func (p *producer) sleep(timer *time.Timer) bool {
	timer.Reset(backoff)
	select {
	case <-p.ctx.Done():
		p.reporter.Report(status.StageCancelled, "Producer stopped")
		return false
	case <-timer.C:
		return true
	}
}
