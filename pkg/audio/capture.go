// Package audio defines the capture-side audio abstractions used by the voice
// pipeline and the ring buffer that accumulates captured samples between
// uploads.
//
// The two primary abstractions are:
//
//   - [CaptureDevice] opens an input stream at a requested [Format] and
//     delivers interleaved int16 PCM frames to a [FrameCallback].
//   - [CaptureStream] is an opened stream that can be started, aborted and
//     closed.
//
// Implementations are provided by adapter packages (e.g., audio/tone).
//
// This package lives under pkg/ because external code (platform-specific
// capture adapters) is expected to implement [CaptureDevice].
package audio

import "fmt"

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable description, e.g. "16000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// FrameCallback receives interleaved int16 PCM samples from a capture stream.
// len(samples) is frameCount * channels. The slice is only valid for the
// duration of the call; implementations that retain samples must copy them.
//
// Callbacks run on a goroutine owned by the capture device and must not block.
type FrameCallback func(samples []int16, frameCount int)

// CaptureStream is an opened input stream obtained from [CaptureDevice.Open].
// Implementations must be safe for concurrent use.
type CaptureStream interface {
	// DeviceName returns the human-readable name of the underlying device.
	DeviceName() string

	// Start begins delivering frames to the callback passed to Open.
	Start() error

	// Abort stops delivery immediately, discarding pending frames. After Abort
	// returns no further callbacks are invoked.
	Abort() error

	// Close releases the stream. Calling Close more than once returns nil.
	Close() error
}

// CaptureDevice is the entry point for an audio input subsystem.
type CaptureDevice interface {
	// Open prepares an input stream with the requested format. Returns an error
	// if no input device is available or the format is unsupported. The
	// returned stream does not deliver frames until Start is called.
	Open(format Format, cb FrameCallback) (CaptureStream, error)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
