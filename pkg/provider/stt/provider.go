// Package stt defines the interfaces for Speech-to-Text backends.
//
// Two abstractions live here:
//
//   - [Backend] is the six-operation bidirectional stream the voice session
//     drives: initialise, push audio, pull transcript strings, query state,
//     close, and fetch diagnostic text. It mirrors a plugin-style transcription
//     library and is what [session.Session] consumes.
//   - [Provider] / [SessionHandle] is the channel-based streaming abstraction
//     that concrete transcription services implement. The streaming
//     sub-package adapts any Provider into a Backend.
//
// Implementations must be safe for concurrent use: the voice session calls
// SendAudio from its sender goroutine and ReceiveTranscript from its receiver
// goroutine at the same time.
package stt

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by [Backend] operations invoked before a
// successful InitializeStream or after CloseStream.
var ErrNotInitialized = errors.New("stt: stream not initialized")

// ErrStreamClosed is returned by a blocked ReceiveTranscript when the stream is
// closed underneath it.
var ErrStreamClosed = errors.New("stt: stream closed")

// StreamConfig describes the audio format and recognition settings for a new
// transcription stream.
type StreamConfig struct {
	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	Language string

	// SampleRate is the audio sample rate in Hz. 16000 is the reference value.
	SampleRate int

	// Channels is the number of interleaved audio channels. 1 = mono.
	Channels int

	// Model selects the backend recognition model, e.g. "command_and_search"
	// for short browsing commands or "default" for dictation.
	Model string

	// MaxAlternatives is the maximum number of ranked alternatives the backend
	// should return per result. Backends deliver multiple alternatives as one
	// string separated by ';', highest confidence first.
	MaxAlternatives int

	// InterimResults requests low-latency partial results in addition to
	// finals.
	InterimResults bool
}

// Backend is the opaque bidirectional transcription stream used by the voice
// session. It is an interface so that test code can substitute a fake.
type Backend interface {
	// InitializeStream opens a new stream with cfg. A previously open stream
	// is replaced.
	InitializeStream(cfg StreamConfig) error

	// SendAudio pushes interleaved int16 PCM samples. An empty slice is valid
	// and keeps the stream alive.
	SendAudio(samples []int16) error

	// ReceiveTranscript blocks until the backend has a new result. An empty
	// string with a nil error means no new result is available yet.
	ReceiveTranscript() (string, error)

	// IsInitialized reports whether a stream is currently open and usable.
	IsInitialized() bool

	// CloseStream closes the current stream, unblocking any pending
	// ReceiveTranscript. Safe to call when no stream is open.
	CloseStream()

	// Log returns diagnostic text describing the most recent failure.
	Log() string
}

// SessionHandle represents an open streaming session of a [Provider].
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of little-endian int16 PCM bytes. Calling
	// SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel of interim transcripts. The channel
	// is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel of authoritative transcripts. The
	// channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session and releases resources. After Close returns
	// both channels will be closed. Calling Close more than once returns nil.
	Close() error
}

// Provider is the abstraction over any channel-based STT service.
type Provider interface {
	// StartStream opens a new streaming session with the given configuration.
	// The caller owns the returned SessionHandle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
