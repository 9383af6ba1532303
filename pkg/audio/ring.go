package audio

import "sync"

// RingBuffer is a thread-safe, fixed-capacity circular store of int16 PCM
// samples. When the buffer is full the oldest sample is evicted on every
// append, so it always holds the most recent Cap() samples.
//
// A single mutex serialises producers ([RingBuffer.AddSample],
// [RingBuffer.Write]) and the consumer ([RingBuffer.DrainAll]).
type RingBuffer struct {
	mu   sync.Mutex
	buf  []int16
	head int // index of next write position
	len  int // number of valid samples
}

// NewRingBuffer creates a RingBuffer holding channels*sampleRate*maxSeconds
// samples. Non-positive arguments yield a capacity of at least one sample.
func NewRingBuffer(channels, sampleRate, maxSeconds int) *RingBuffer {
	return NewRingBufferSize(channels * sampleRate * maxSeconds)
}

// NewRingBufferSize creates a RingBuffer with an explicit capacity in samples.
func NewRingBufferSize(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]int16, capacity)}
}

// AddSample appends one sample, evicting the oldest when full.
func (rb *RingBuffer) AddSample(s int16) {
	rb.mu.Lock()
	rb.add(s)
	rb.mu.Unlock()
}

// Write appends samples under a single lock acquisition. This is the path
// used by capture callbacks.
func (rb *RingBuffer) Write(samples []int16) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for _, s := range samples {
		rb.add(s)
	}
}

// add must be called with rb.mu held.
func (rb *RingBuffer) add(s int16) {
	rb.buf[rb.head] = s
	rb.head = (rb.head + 1) % len(rb.buf)
	if rb.len < len(rb.buf) {
		rb.len++
	}
}

// DrainAll returns a copy of all buffered samples in temporal order and
// empties the buffer. Returns nil when the buffer is empty.
func (rb *RingBuffer) DrainAll() []int16 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.len == 0 {
		return nil
	}

	c := len(rb.buf)
	out := make([]int16, rb.len)
	start := (rb.head - rb.len + c) % c
	for i := range rb.len {
		out[i] = rb.buf[(start+i)%c]
	}

	rb.head = 0
	rb.len = 0
	return out
}

// Len returns the number of samples currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.len
}

// Cap returns the fixed capacity in samples.
func (rb *RingBuffer) Cap() int {
	return len(rb.buf)
}
