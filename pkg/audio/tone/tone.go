// Package tone provides a synthetic [audio.CaptureDevice] that generates a
// sine tone (or silence) on a ticker. It stands in for a microphone when
// running the pipeline without audio hardware.
package tone

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/gazevoice/pkg/audio"
)

const (
	defaultPeriod    = 20 * time.Millisecond
	defaultAmplitude = 0.2
)

// Option is a functional option for configuring a [Device].
type Option func(*Device)

// WithFrequency sets the tone frequency in Hz. Zero produces silence.
func WithFrequency(hz float64) Option {
	return func(d *Device) {
		d.frequency = hz
	}
}

// WithAmplitude sets the peak amplitude as a fraction of full scale [0, 1].
func WithAmplitude(a float64) Option {
	return func(d *Device) {
		d.amplitude = math.Max(0, math.Min(1, a))
	}
}

// WithPeriod sets how often a buffer of frames is delivered. Default: 20ms.
func WithPeriod(p time.Duration) Option {
	return func(d *Device) {
		if p > 0 {
			d.period = p
		}
	}
}

// Device generates audio frames in a background goroutine. It implements
// [audio.CaptureDevice]. A Device may open any number of streams.
type Device struct {
	frequency float64
	amplitude float64
	period    time.Duration
}

// New returns a tone Device configured with the supplied options.
func New(opts ...Option) *Device {
	d := &Device{
		amplitude: defaultAmplitude,
		period:    defaultPeriod,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Open returns a stream generating frames at format.
func (d *Device) Open(format audio.Format, cb audio.FrameCallback) (audio.CaptureStream, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, errors.New("tone: sample rate and channels must be positive")
	}
	if cb == nil {
		return nil, errors.New("tone: callback must not be nil")
	}
	return &stream{dev: d, format: format, cb: cb}, nil
}

// stream implements audio.CaptureStream.
type stream struct {
	dev    *Device
	format audio.Format
	cb     audio.FrameCallback

	mu     sync.Mutex
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
	phase  float64
}

func (s *stream) DeviceName() string { return "tone generator" }

func (s *stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("tone: stream closed")
	}
	if s.done != nil {
		return nil
	}
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.done)
	return nil
}

func (s *stream) Abort() error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done != nil {
		close(done)
		s.wg.Wait()
	}
	return nil
}

func (s *stream) Close() error {
	_ = s.Abort()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stream) run(done <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.dev.period)
	defer ticker.Stop()

	frames := int(float64(s.format.SampleRate) * s.dev.period.Seconds())
	buf := make([]int16, frames*s.format.Channels)
	step := 2 * math.Pi * s.dev.frequency / float64(s.format.SampleRate)
	peak := s.dev.amplitude * math.MaxInt16

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for i := range frames {
				v := int16(peak * math.Sin(s.phase))
				s.phase = math.Mod(s.phase+step, 2*math.Pi)
				for c := range s.format.Channels {
					buf[i*s.format.Channels+c] = v
				}
			}
			s.cb(buf, frames)
		}
	}
}
