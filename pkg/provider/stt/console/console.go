// Package console provides an [stt.Provider] that reads transcripts from a
// line-oriented text stream instead of recognising audio.
//
// Each non-empty input line becomes one final transcript. Ranked alternatives
// may be given on the same line separated by ';', highest confidence first:
//
//	go to wikipedia;go too wikipedia
//
// The provider is meant for the CLI and for manual end-to-end testing of the
// command pipeline without a transcription service. Audio sent to a session
// is counted and discarded.
package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// ErrClosed is returned by SendAudio after the session was closed.
var ErrClosed = errors.New("console: session closed")

// Provider implements [stt.Provider] over an [io.Reader].
//
// The reader is consumed by a single goroutine started on the first
// StartStream. Lines are delivered to whichever session is open when they
// arrive; lines read while no session is open wait for the next one.
type Provider struct {
	r     io.Reader
	once  sync.Once
	lines chan string
	held  chan string
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// New returns a Provider reading from r.
func New(r io.Reader) *Provider {
	return &Provider{r: r, lines: make(chan string), held: make(chan string, 16)}
}

func (p *Provider) scan() {
	defer close(p.lines)
	sc := bufio.NewScanner(p.r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p.lines <- line
	}
	if err := sc.Err(); err != nil {
		slog.Warn("console: read transcripts", "err", err)
	}
}

// StartStream opens a session fed by the shared line reader.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.once.Do(func() { go p.scan() })

	s := &session{
		partials: make(chan stt.Transcript),
		finals:   make(chan stt.Transcript),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go s.forward(ctx, p)
	slog.Debug("console: stream started", "language", cfg.Language, "model", cfg.Model)
	return s, nil
}

type session struct {
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
	bytesIn   atomic.Int64
}

var _ stt.SessionHandle = (*session)(nil)

func (s *session) forward(ctx context.Context, p *Provider) {
	defer close(s.exited)
	for {
		line, ok := p.next(ctx, s.done)
		if !ok {
			return
		}

		alts := stt.SplitAlternatives(line)
		if len(alts) == 0 {
			continue
		}
		t := stt.Transcript{Text: alts[0], Alternatives: alts, IsFinal: true, Confidence: 1}
		select {
		case s.finals <- t:
		case <-ctx.Done():
			p.hold(line)
			return
		case <-s.done:
			p.hold(line)
			return
		}
	}
}

// next returns a held line if there is one, otherwise the next line read.
func (p *Provider) next(ctx context.Context, done <-chan struct{}) (string, bool) {
	select {
	case line := <-p.held:
		return line, true
	default:
	}
	select {
	case <-ctx.Done():
		return "", false
	case <-done:
		return "", false
	case line := <-p.held:
		return line, true
	case line, ok := <-p.lines:
		return line, ok
	}
}

// hold keeps an undelivered line for the next session.
func (p *Provider) hold(line string) {
	select {
	case p.held <- line:
	default:
		slog.Warn("console: dropping undelivered transcript", "text", line)
	}
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.bytesIn.Add(int64(len(chunk)))
	return nil
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }
func (s *session) Finals() <-chan stt.Transcript   { return s.finals }

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.exited
		close(s.partials)
		close(s.finals)
		slog.Debug("console: stream closed", "audio_bytes", s.bytesIn.Load())
	})
	return nil
}
