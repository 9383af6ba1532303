// Package mock provides test doubles for the stt package interfaces.
//
// Use Backend to drive a voice session without a real transcription service:
// queue results with Push, inject failures with PushErr or Drop, and inspect
// which configurations and audio batches the session delivered.
//
// Use Provider and Session to exercise code built on the streaming
// abstraction, such as the streaming adapter.
//
// Example:
//
//	b := mock.NewBackend()
//	b.Push("scroll down")
//	sess, _ := session.New(b, device, cfg)
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// ─── Backend ─────────────────────────────────────────────────────────────────

type result struct {
	text string
	err  error
}

// Backend is a mock implementation of stt.Backend.
//
// ReceiveTranscript blocks until a result is pushed, the stream is closed, or
// Poll elapses (in which case it returns "" like a backend with nothing new).
type Backend struct {
	mu sync.Mutex

	// InitErr, if non-nil, is returned by every InitializeStream call and the
	// stream stays uninitialised.
	InitErr error

	// SendErr, if non-nil, is returned by every SendAudio call.
	SendErr error

	// LogText is returned by Log.
	LogText string

	// Poll, when positive, bounds how long ReceiveTranscript waits before
	// returning an empty result.
	Poll time.Duration

	// --- Call records ---

	// InitCalls records the config passed to every InitializeStream call.
	InitCalls []stt.StreamConfig

	// SendCalls records a copy of every batch passed to SendAudio.
	SendCalls [][]int16

	// CloseCallCount is the number of times CloseStream was called.
	CloseCallCount int

	results     chan result
	initialized bool
	done        chan struct{}
}

// NewBackend returns a Backend with an empty result queue.
func NewBackend() *Backend {
	return &Backend{results: make(chan result, 64)}
}

func (b *Backend) queue() chan result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.results == nil {
		b.results = make(chan result, 64)
	}
	return b.results
}

// Push queues a transcript string for ReceiveTranscript.
func (b *Backend) Push(text string) {
	b.queue() <- result{text: text}
}

// PushErr queues a receive failure.
func (b *Backend) PushErr(err error) {
	b.queue() <- result{err: err}
}

// Drop simulates the remote side ending the stream: the backend reports
// itself uninitialised and pending receivers fail with stt.ErrStreamClosed.
func (b *Backend) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *Backend) closeLocked() {
	b.initialized = false
	if b.done != nil {
		close(b.done)
		b.done = nil
	}
}

// InitializeStream records the call. It opens a new stream unless InitErr is
// set.
func (b *Backend) InitializeStream(cfg stt.StreamConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.InitCalls = append(b.InitCalls, cfg)
	b.closeLocked()
	if b.InitErr != nil {
		return b.InitErr
	}
	b.initialized = true
	b.done = make(chan struct{})
	return nil
}

// SendAudio records a copy of samples and returns SendErr.
func (b *Backend) SendAudio(samples []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return stt.ErrNotInitialized
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)
	b.SendCalls = append(b.SendCalls, cp)
	return b.SendErr
}

// ReceiveTranscript returns the next pushed result.
func (b *Backend) ReceiveTranscript() (string, error) {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return "", stt.ErrNotInitialized
	}
	done, poll := b.done, b.Poll
	if b.results == nil {
		b.results = make(chan result, 64)
	}
	results := b.results
	b.mu.Unlock()

	var timeout <-chan time.Time
	if poll > 0 {
		t := time.NewTimer(poll)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-results:
		return r.text, r.err
	case <-done:
		return "", stt.ErrStreamClosed
	case <-timeout:
		return "", nil
	}
}

// IsInitialized reports whether a stream is open.
func (b *Backend) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// CloseStream records the call and closes the open stream.
func (b *Backend) CloseStream() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCallCount++
	b.closeLocked()
}

// Log returns LogText.
func (b *Backend) Log() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LogText
}

// InitCallCount returns the number of InitializeStream calls. Thread-safe.
func (b *Backend) InitCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.InitCalls)
}

// LastInit returns the config of the most recent InitializeStream call.
func (b *Backend) LastInit() (stt.StreamConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.InitCalls) == 0 {
		return stt.StreamConfig{}, false
	}
	return b.InitCalls[len(b.InitCalls)-1], true
}

// SentSamples returns all samples delivered through SendAudio, concatenated in
// call order. Thread-safe.
func (b *Backend) SentSamples() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int16
	for _, c := range b.SendCalls {
		out = append(out, c...)
	}
	return out
}

// SendCallCount returns the number of SendAudio calls that reached an open
// stream. Thread-safe.
func (b *Backend) SendCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.SendCalls)
}

// Ensure Backend implements stt.Backend at compile time.
var _ stt.Backend = (*Backend)(nil)

// ─── Provider ────────────────────────────────────────────────────────────────

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil, StartStream
	// returns a new default Session with buffered channels.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// StartStreamCallCount returns the number of StartStream calls. Thread-safe.
func (p *Provider) StartStreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// ─── Session ─────────────────────────────────────────────────────────────────

// ErrSessionClosed is returned by Session.SendAudio after Close.
var ErrSessionClosed = errors.New("mock: session closed")

// Session is a mock implementation of stt.SessionHandle.
// Tests send Transcript values on PartialsCh and FinalsCh; Close closes both.
type Session struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials().
	PartialsCh chan stt.Transcript

	// FinalsCh is the channel returned by Finals().
	FinalsCh chan stt.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// --- Call records ---

	// SendAudioCalls records a copy of every chunk passed to SendAudio.
	SendAudioCalls [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closed bool
}

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan stt.Transcript, 16),
		FinalsCh:   make(chan stt.Transcript, 16),
	}
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, cp)
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan stt.Transcript {
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan stt.Transcript {
	return s.FinalsCh
}

// Close records the call and closes both channels on the first call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.PartialsCh)
	close(s.FinalsCh)
	return nil
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
