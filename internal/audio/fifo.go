// Package audio provides the bounded stereo FIFO between a demodulator
// worker and an audio output goroutine.
package audio

import (
	"sync"
	"time"
)

// Frame is one stereo PCM sample pair.
type Frame struct {
	L int16
	R int16
}

// Mono returns a frame with v on both channels.
func Mono(v int16) Frame { return Frame{L: v, R: v} }

// FIFO is a fixed-capacity ring of frames. Writers never block: frames
// that do not fit are dropped and counted. Readers wait up to a timeout.
//
// Capacity is rounded up to a power of two so positions wrap with a mask.
type FIFO struct {
	mu       sync.Mutex
	data     []Frame
	mask     int
	size     int
	readPos  int
	writePos int

	dropped uint64
	closed  bool

	// notify has capacity one; a pending token means data arrived or the
	// FIFO was closed since the last reader wait.
	notify chan struct{}
}

// NewFIFO creates a FIFO holding at least capacity frames.
func NewFIFO(capacity int) *FIFO {
	capacity = max(capacity, 1)
	cap2 := 1
	for cap2 < capacity {
		cap2 <<= 1
	}
	return &FIFO{
		data:   make([]Frame, cap2),
		mask:   cap2 - 1,
		notify: make(chan struct{}, 1),
	}
}

// Write appends as many frames as fit and returns that count. The rest
// are added to the drop counter. Writes after Close are all dropped.
func (f *FIFO) Write(frames []Frame) int {
	f.mu.Lock()
	space := len(f.data) - f.size
	if f.closed {
		space = 0
	}
	n := min(len(frames), space)
	for _, fr := range frames[:n] {
		f.data[f.writePos] = fr
		f.writePos = (f.writePos + 1) & f.mask
	}
	f.size += n
	f.dropped += uint64(len(frames) - n)
	f.mu.Unlock()

	if n > 0 {
		f.signal()
	}
	return n
}

// Read copies up to len(dst) frames into dst. If the FIFO is empty it
// waits up to timeout for a writer; it then returns whatever is there,
// possibly zero. A closed, drained FIFO returns 0 immediately.
func (f *FIFO) Read(dst []Frame, timeout time.Duration) int {
	if len(dst) == 0 {
		return 0
	}
	n, wait := f.read(dst)
	if n > 0 || !wait || timeout <= 0 {
		return n
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-f.notify:
			n, wait = f.read(dst)
			if n > 0 || !wait {
				return n
			}
		case <-timer.C:
			n, _ = f.read(dst)
			return n
		}
	}
}

// read returns the frames copied and whether waiting could help.
func (f *FIFO) read(dst []Frame) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(len(dst), f.size)
	for i := range n {
		dst[i] = f.data[f.readPos]
		f.readPos = (f.readPos + 1) & f.mask
	}
	f.size -= n
	return n, !f.closed
}

func (f *FIFO) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Close stops accepting frames. Frames already queued remain readable;
// once drained, reads return silence (zero frames) without waiting. Close
// is idempotent.
func (f *FIFO) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.signal()
}

// Closed reports whether Close has been called.
func (f *FIFO) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Available returns the number of queued frames.
func (f *FIFO) Available() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Capacity returns the usable capacity in frames.
func (f *FIFO) Capacity() int { return len(f.data) }

// Dropped returns the number of frames rejected because the FIFO was full
// or closed.
func (f *FIFO) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}
