package deck

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// trackStreamer plays decoded interleaved stereo samples and enforces the
// loop region in frames. Only the producer goroutine streams and seeks; the
// loop bounds may be changed from anywhere.
type trackStreamer struct {
	samples []float32
	frames  int
	pos     int

	loopIn  atomic.Int64
	loopOut atomic.Int64
}

var _ beep.StreamSeeker = (*trackStreamer)(nil)

func newTrackStreamer(samples []float32) *trackStreamer {
	s := &trackStreamer{samples: samples, frames: len(samples) / 2}
	s.loopIn.Store(-1)
	s.loopOut.Store(-1)
	return s
}

func (s *trackStreamer) Stream(out [][2]float64) (int, bool) {
	in, end := s.loopIn.Load(), s.loopOut.Load()
	looping := in >= 0 && end > in

	for i := range out {
		if looping && int64(s.pos) >= end {
			s.pos = int(in)
		}
		if s.pos >= s.frames {
			return i, i > 0
		}
		out[i][0] = float64(s.samples[2*s.pos])
		out[i][1] = float64(s.samples[2*s.pos+1])
		s.pos++
	}
	return len(out), true
}

func (s *trackStreamer) Err() error { return nil }

func (s *trackStreamer) Len() int { return s.frames }

func (s *trackStreamer) Position() int { return s.pos }

func (s *trackStreamer) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > s.frames {
		p = s.frames
	}
	s.pos = p
	return nil
}

// setLoop arms the loop [in, out) in frames. out is capped at the track end.
func (s *trackStreamer) setLoop(in, out int) {
	if out > s.frames {
		out = s.frames
	}
	s.loopOut.Store(int64(out))
	s.loopIn.Store(int64(in))
}

func (s *trackStreamer) clearLoop() {
	s.loopIn.Store(-1)
	s.loopOut.Store(-1)
}
