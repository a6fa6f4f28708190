// Package ringbuf implements the bounded sample queue between a deck's
// producer goroutine and the mixer.
package ringbuf

import "sync/atomic"

// MinMillis is the smallest buffer the decks are allowed to run with.
const MinMillis = 200

// Buffer is a wait-free single-producer/single-consumer queue of interleaved
// frames.
//
// Push, Free and Flush may only be called by the producer; PopFrame and Len
// only by the consumer. head and tail are monotonic sample counters that
// only ever move by whole frames, so an index is buf[n&mask], the fill level
// is tail-head and a frame never straddles a flush.
type Buffer struct {
	buf      []float32
	mask     uint64
	channels uint64

	head  atomic.Uint64 // next sample to pop
	tail  atomic.Uint64 // next sample to push
	stale atomic.Uint64 // samples below this counter were flushed
}

// New returns a buffer of frames with the given channel count (1 or 2),
// holding at least minCapacity samples. The capacity is rounded up to a
// power of two.
func New(minCapacity, channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	size := 1
	for size < minCapacity || size < channels {
		size <<= 1
	}
	return &Buffer{
		buf:      make([]float32, size),
		mask:     uint64(size - 1),
		channels: uint64(channels),
	}
}

// SizeFor returns the number of samples needed to hold ms milliseconds of
// interleaved audio, never less than MinMillis.
func SizeFor(sampleRate, channels, ms int) int {
	if ms < MinMillis {
		ms = MinMillis
	}
	return (sampleRate*channels*ms + 999) / 1000
}

// Capacity returns the number of samples the buffer can hold.
func (b *Buffer) Capacity() int {
	return len(b.buf)
}

func (b *Buffer) Channels() int {
	return int(b.channels)
}

// Push copies as many whole frames from chunk as fit and returns the number
// of samples taken. A trailing partial frame is never pushed.
func (b *Buffer) Push(chunk []float32) int {
	tail := b.tail.Load()
	free := uint64(len(b.buf)) - (tail - b.head.Load())
	n := uint64(len(chunk))
	if n > free {
		n = free
	}
	n -= n % b.channels
	for i := uint64(0); i < n; i++ {
		b.buf[(tail+i)&b.mask] = chunk[i]
	}
	b.tail.Store(tail + n)
	return int(n)
}

// Free returns the space available to the producer in samples. Flushed
// samples keep their slots until the consumer skips past them.
func (b *Buffer) Free() int {
	return len(b.buf) - int(b.tail.Load()-b.head.Load())
}

// Flush marks everything pushed so far as stale. The consumer drops those
// samples on its next PopFrame.
func (b *Buffer) Flush() {
	b.stale.Store(b.tail.Load())
}

// PopFrame copies the oldest live frame into dst, which must hold Channels
// samples. It returns false on underflow and leaves dst untouched.
func (b *Buffer) PopFrame(dst []float32) bool {
	head := b.head.Load()
	if stale := b.stale.Load(); head < stale {
		head = stale
		b.head.Store(head)
	}
	if b.tail.Load()-head < b.channels {
		return false
	}
	for i := uint64(0); i < b.channels; i++ {
		dst[i] = b.buf[(head+i)&b.mask]
	}
	b.head.Store(head + b.channels)
	return true
}

// Len returns the number of live samples waiting for the consumer.
func (b *Buffer) Len() int {
	head := b.head.Load()
	if stale := b.stale.Load(); head < stale {
		head = stale
	}
	return int(b.tail.Load() - head)
}
