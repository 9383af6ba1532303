// Package mock provides in-memory mock implementations of the
// [audio.CaptureDevice] and [audio.CaptureStream] interfaces for use in unit
// tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	dev := &mock.Device{Name: "test-mic"}
//	stream, _ := dev.Open(audio.Format{SampleRate: 16000, Channels: 1}, cb)
//	_ = stream.Start()
//	dev.Emit([]int16{1, 2, 3}) // invokes cb on the caller's goroutine
package mock

import (
	"sync"

	"github.com/MrWong99/gazevoice/pkg/audio"
)

// ─── Device ───────────────────────────────────────────────────────────────────

// Device is a mock implementation of [audio.CaptureDevice].
type Device struct {
	mu sync.Mutex

	// Name is reported by the returned stream's DeviceName. Defaults to "mock".
	Name string

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// StartErr, AbortErr and CloseErr are copied into every opened stream.
	StartErr error
	AbortErr error
	CloseErr error

	// OpenCalls records the format of every Open call.
	OpenCalls []audio.Format

	streams []*Stream
}

// Open records the call and returns a new [Stream], or OpenErr.
func (d *Device) Open(format audio.Format, cb audio.FrameCallback) (audio.CaptureStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.OpenCalls = append(d.OpenCalls, format)
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	name := d.Name
	if name == "" {
		name = "mock"
	}
	s := &Stream{
		name:     name,
		format:   format,
		cb:       cb,
		startErr: d.StartErr,
		abortErr: d.AbortErr,
		closeErr: d.CloseErr,
	}
	d.streams = append(d.streams, s)
	return s, nil
}

// OpenCallCount returns the number of Open calls. Thread-safe.
func (d *Device) OpenCallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.OpenCalls)
}

// Streams returns every stream opened so far, oldest first.
func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Stream, len(d.streams))
	copy(out, d.streams)
	return out
}

// Emit delivers samples to the most recently opened stream, as a single
// callback with frameCount = len(samples)/channels. Does nothing when no
// stream is running.
func (d *Device) Emit(samples []int16) {
	d.mu.Lock()
	var s *Stream
	if len(d.streams) > 0 {
		s = d.streams[len(d.streams)-1]
	}
	d.mu.Unlock()
	if s != nil {
		s.Emit(samples)
	}
}

// Ensure Device implements audio.CaptureDevice at compile time.
var _ audio.CaptureDevice = (*Device)(nil)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.CaptureStream].
type Stream struct {
	mu sync.Mutex

	name   string
	format audio.Format
	cb     audio.FrameCallback

	startErr error
	abortErr error
	closeErr error

	running bool

	// Call counters.
	StartCallCount int
	AbortCallCount int
	CloseCallCount int
}

// DeviceName returns the configured device name.
func (s *Stream) DeviceName() string { return s.name }

// Start records the call and marks the stream running unless startErr is set.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCallCount++
	if s.startErr != nil {
		return s.startErr
	}
	s.running = true
	return nil
}

// Abort records the call and stops frame delivery.
func (s *Stream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AbortCallCount++
	s.running = false
	return s.abortErr
}

// Close records the call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.running = false
	return s.closeErr
}

// Running reports whether Start succeeded and neither Abort nor Close has
// been called since.
func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Counts returns the Start, Abort and Close call counts. Thread-safe.
func (s *Stream) Counts() (start, abort, close int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StartCallCount, s.AbortCallCount, s.CloseCallCount
}

// Emit invokes the callback with samples if the stream is running.
func (s *Stream) Emit(samples []int16) {
	s.mu.Lock()
	running, cb := s.running, s.cb
	ch := max(s.format.Channels, 1)
	s.mu.Unlock()
	if running && cb != nil {
		cb(samples, len(samples)/ch)
	}
}

// Ensure Stream implements audio.CaptureStream at compile time.
var _ audio.CaptureStream = (*Stream)(nil)
