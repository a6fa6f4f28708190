package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsUpToPowerOfTwo(t *testing.T) {
	tests := []struct {
		min      int
		channels int
		want     int
	}{
		{min: 0, channels: 1, want: 1},
		{min: 0, channels: 2, want: 2},
		{min: 1, channels: 1, want: 1},
		{min: 3, channels: 2, want: 4},
		{min: 1024, channels: 2, want: 1024},
		{min: 17640, channels: 2, want: 32768},
	}
	for _, tt := range tests {
		b := New(tt.min, tt.channels)
		assert.Equal(t, tt.want, b.Capacity(), "min %d", tt.min)
		assert.Equal(t, tt.channels, b.Channels())
	}
	assert.Equal(t, 1, New(8, 0).Channels())
}

func TestSizeForEnforcesMinimum(t *testing.T) {
	assert.Equal(t, 17640, SizeFor(44100, 2, 200))
	assert.Equal(t, 17640, SizeFor(44100, 2, 50))
	assert.Equal(t, 22050, SizeFor(44100, 2, 250))
	assert.Equal(t, 9600, SizeFor(48000, 1, 200))
}

// drain pops every live frame and returns the samples in order.
func drain(b *Buffer) []float32 {
	var out []float32
	frame := make([]float32, b.Channels())
	for b.PopFrame(frame) {
		out = append(out, frame...)
	}
	return out
}

func TestPushPopFIFO(t *testing.T) {
	b := New(8, 1)

	assert.Equal(t, 3, b.Push([]float32{1, 2, 3}))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 5, b.Free())

	frame := []float32{0}
	for _, want := range []float32{1, 2, 3} {
		require.True(t, b.PopFrame(frame))
		assert.Equal(t, want, frame[0])
	}

	frame[0] = 42
	assert.False(t, b.PopFrame(frame), "empty buffer must underflow")
	assert.Equal(t, float32(42), frame[0], "underflow leaves dst alone")
}

func TestStereoFramesStayWhole(t *testing.T) {
	b := New(8, 2)

	assert.Equal(t, 2, b.Push([]float32{0.1, 0.9, 0.3}), "partial frame is not pushed")
	assert.Equal(t, 2, b.Len())

	frame := make([]float32, 2)
	require.True(t, b.PopFrame(frame))
	assert.Equal(t, []float32{0.1, 0.9}, frame)
	assert.False(t, b.PopFrame(frame))
}

func TestPushStopsWhenFull(t *testing.T) {
	b := New(4, 1)

	assert.Equal(t, 4, b.Push([]float32{1, 2, 3, 4, 5, 6}))
	assert.Equal(t, 0, b.Free())
	assert.Equal(t, 0, b.Push([]float32{7}))

	b.PopFrame(make([]float32, 1))
	assert.Equal(t, 1, b.Push([]float32{7, 8}))

	assert.Equal(t, []float32{2, 3, 4, 7}, drain(b))
}

func TestPushWhenFullKeepsStereoAlignment(t *testing.T) {
	b := New(4, 2)
	require.Equal(t, 4, b.Push([]float32{1, -1, 2, -2}))

	b.PopFrame(make([]float32, 2))
	assert.Equal(t, 2, b.Push([]float32{3, -3, 4, -4}))

	assert.Equal(t, []float32{2, -2, 3, -3}, drain(b))
}

func TestFlushDropsPendingSamples(t *testing.T) {
	b := New(8, 1)
	b.Push([]float32{1, 2, 3})
	b.Flush()
	b.Push([]float32{9})

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, []float32{9}, drain(b))
	assert.Equal(t, 8, b.Free())
}

func TestFlushBetweenFramesKeepsChannels(t *testing.T) {
	b := New(8, 2)
	b.Push([]float32{0.1, 0.9, 0.1, 0.9})

	frame := make([]float32, 2)
	require.True(t, b.PopFrame(frame))
	b.Flush()
	b.Push([]float32{0.2, 0.8})

	require.True(t, b.PopFrame(frame))
	assert.Equal(t, []float32{0.2, 0.8}, frame)
	assert.False(t, b.PopFrame(frame))
}

func TestConcurrentProducerConsumerKeepsOrder(t *testing.T) {
	const frames = 100000
	b := New(1024, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		chunk := make([]float32, 256)
		next := 0
		for next < frames {
			n := len(chunk) / 2
			if frames-next < n {
				n = frames - next
			}
			for i := 0; i < n; i++ {
				chunk[2*i] = float32(next + i)
				chunk[2*i+1] = -float32(next + i)
			}
			pushed := 0
			for pushed < 2*n {
				pushed += b.Push(chunk[pushed : 2*n])
			}
			next += n
		}
	}()

	frame := make([]float32, 2)
	expected := 0
	for expected < frames {
		if !b.PopFrame(frame) {
			continue
		}
		require.Equal(t, float32(expected), frame[0])
		require.Equal(t, -float32(expected), frame[1])
		expected++
	}
	wg.Wait()
}
