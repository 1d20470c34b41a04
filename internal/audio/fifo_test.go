package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(n int, start int16) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = Frame{L: start + int16(i), R: -(start + int16(i))}
	}
	return out
}

func TestNewFIFO_RoundsCapacity(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{1, 1},
		{3, 4},
		{1000, 1024},
		{4096, 4096},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewFIFO(tt.in).Capacity(), "capacity %d", tt.in)
	}
}

func TestWriteRead_Order(t *testing.T) {
	f := NewFIFO(8)
	require.Equal(t, 5, f.Write(frames(5, 10)))
	assert.Equal(t, 5, f.Available())

	dst := make([]Frame, 3)
	require.Equal(t, 3, f.Read(dst, 0))
	assert.Equal(t, frames(3, 10), dst)

	// Wrap the ring.
	require.Equal(t, 6, f.Write(frames(6, 100)))
	dst = make([]Frame, 16)
	n := f.Read(dst, 0)
	require.Equal(t, 8, n)
	assert.Equal(t, append(frames(2, 13), frames(6, 100)...), dst[:n])
}

func TestWrite_DropsWhenFull(t *testing.T) {
	f := NewFIFO(4)
	assert.Equal(t, 4, f.Write(frames(6, 0)))
	assert.Equal(t, uint64(2), f.Dropped())
	assert.Zero(t, f.Write(frames(1, 0)))
	assert.Equal(t, uint64(3), f.Dropped())
}

func TestRead_ShortCountOnUnderrun(t *testing.T) {
	f := NewFIFO(8)
	f.Write(frames(2, 0))

	dst := make([]Frame, 8)
	start := time.Now()
	assert.Equal(t, 2, f.Read(dst, time.Second), "does not wait when data is present")
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	start = time.Now()
	assert.Zero(t, f.Read(dst, 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRead_WakesOnWrite(t *testing.T) {
	f := NewFIFO(8)
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Write(frames(3, 7))
	}()

	dst := make([]Frame, 8)
	n := f.Read(dst, 2*time.Second)
	assert.Equal(t, 3, n)
	assert.Equal(t, frames(3, 7), dst[:n])
}

func TestClose_DrainsToSilence(t *testing.T) {
	f := NewFIFO(8)
	f.Write(frames(3, 1))
	f.Close()
	f.Close()
	assert.True(t, f.Closed())

	assert.Zero(t, f.Write(frames(2, 0)), "writes after close are dropped")
	assert.Equal(t, uint64(2), f.Dropped())

	dst := make([]Frame, 8)
	assert.Equal(t, 3, f.Read(dst, time.Second))

	start := time.Now()
	assert.Zero(t, f.Read(dst, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond, "drained FIFO returns at once")
}

func TestClose_WakesReader(t *testing.T) {
	f := NewFIFO(8)
	done := make(chan int)
	go func() { done <- f.Read(make([]Frame, 4), 5*time.Second) }()

	time.Sleep(10 * time.Millisecond)
	f.Close()
	select {
	case n := <-done:
		assert.Zero(t, n)
	case <-time.After(time.Second):
		t.Fatal("reader not woken by Close")
	}
}

func TestMono(t *testing.T) {
	assert.Equal(t, Frame{L: 5, R: 5}, Mono(5))
}
