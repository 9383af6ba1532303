// Package mock provides an in-memory [publish.Publisher] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/gazevoice/internal/publish"
)

// Publisher records every published message. It is safe for concurrent use.
type Publisher struct {
	mu sync.Mutex

	// PublishErr, if non-nil, is returned by Publish. The message is still
	// recorded.
	PublishErr error

	// Messages records every Publish call in order.
	Messages []publish.Message

	// CloseCallCount is the number of Close calls.
	CloseCallCount int
}

// Publish records msg and returns PublishErr.
func (p *Publisher) Publish(_ context.Context, msg publish.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, msg)
	return p.PublishErr
}

// Close records the call.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return nil
}

// Published returns a copy of the recorded messages. Thread-safe.
func (p *Publisher) Published() []publish.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publish.Message, len(p.Messages))
	copy(out, p.Messages)
	return out
}

var _ publish.Publisher = (*Publisher)(nil)
