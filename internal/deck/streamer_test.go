package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramp returns interleaved stereo frames whose left sample is the frame
// index and right sample its negation.
func ramp(frames int) []float32 {
	s := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		s[2*i] = float32(i)
		s[2*i+1] = -float32(i)
	}
	return s
}

func TestTrackStreamerPlaysToEnd(t *testing.T) {
	s := newTrackStreamer(ramp(5))
	out := make([][2]float64, 3)

	n, ok := s.Stream(out)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, [2]float64{2, -2}, out[2])

	n, ok = s.Stream(out)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = s.Stream(out)
	assert.False(t, ok)
	assert.Zero(t, n)
	assert.Equal(t, 5, s.Position())
	assert.NoError(t, s.Err())
}

func TestTrackStreamerLoops(t *testing.T) {
	s := newTrackStreamer(ramp(10))
	s.setLoop(2, 5)

	out := make([][2]float64, 9)
	n, ok := s.Stream(out)
	require.True(t, ok)
	require.Equal(t, 9, n)

	var left []float64
	for _, f := range out {
		left = append(left, f[0])
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 2, 3, 4, 2}, left)

	s.clearLoop()
	n, _ = s.Stream(out)
	assert.Equal(t, 7, n, "frames 3..9 remain once the loop is cleared")
}

func TestTrackStreamerLoopCappedAtEnd(t *testing.T) {
	s := newTrackStreamer(ramp(4))
	s.setLoop(1, 100)

	out := make([][2]float64, 6)
	n, ok := s.Stream(out)
	require.True(t, ok)
	assert.Equal(t, 6, n)
	assert.Equal(t, [2]float64{1, -1}, out[4])
}

func TestTrackStreamerSeekClamps(t *testing.T) {
	s := newTrackStreamer(ramp(4))

	require.NoError(t, s.Seek(-3))
	assert.Equal(t, 0, s.Position())
	require.NoError(t, s.Seek(99))
	assert.Equal(t, 4, s.Position())
	assert.Equal(t, 4, s.Len())
}
