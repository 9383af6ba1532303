// Package publish forwards resolved voice actions to the browser interaction
// layer over a message broker.
//
// The frame loop must never block on the network, so implementations queue
// messages and deliver them from a background goroutine. A full queue drops
// the message and reports [ErrQueueFull].
package publish

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/gazevoice/internal/command"
)

var (
	// ErrQueueFull is returned by Publish when the delivery queue is full.
	ErrQueueFull = errors.New("publish: queue full")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("publish: publisher closed")
)

// Message is the JSON payload published for one action.
type Message struct {
	Command   string `json:"command"`
	Parameter string `json:"parameter,omitempty"`
	Mode      string `json:"mode"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewMessage builds the payload for a in mode at time now.
func NewMessage(a command.Action, mode command.Mode, sessionID string, now time.Time) Message {
	return Message{
		Command:   a.Command.String(),
		Parameter: a.Parameter,
		Mode:      mode.String(),
		SessionID: sessionID,
		Timestamp: now.UnixMilli(),
	}
}

// Publisher delivers action messages. Implementations must be safe for
// concurrent use and must not block on network I/O in Publish.
type Publisher interface {
	// Publish enqueues msg for delivery.
	Publish(ctx context.Context, msg Message) error

	// Close flushes pending messages where possible and releases the
	// connection. Calling Close more than once returns nil.
	Close() error
}

// Nop is a Publisher that discards every message.
var Nop Publisher = nop{}

type nop struct{}

func (nop) Publish(context.Context, Message) error { return nil }
func (nop) Close() error                           { return nil }
