// Package monitor is the diagnostics side channel of the voice pipeline.
//
// Components report short status texts under a fixed set of categories
// through the [Sink] interface. [Recorder] keeps the latest value of every
// category and fans changes out to subscribers, which the websocket [Handler]
// streams to a live browser view.
package monitor

import (
	"strings"
	"sync"
	"time"
)

// Category names one diagnostics field.
type Category string

const (
	// CurrentMicrophone is the name of the capture device in use.
	CurrentMicrophone Category = "CURRENT_MICROPHONE"
	// AvailableCommands lists the canonical commands usable in the current mode.
	AvailableCommands Category = "AVAILABLE_COMMANDS"
	// Connection is "on" while a transcription stream is open, "off" otherwise.
	Connection Category = "CONNECTION"
	// SentSeconds is the number of seconds since the controller started.
	SentSeconds Category = "SENT_SECONDS"
	// LastWord is the most recent transcript. The recorder keeps the last
	// three, newest first.
	LastWord Category = "LAST_WORD"
	// CurrentAction is the canonical form of the last resolved command.
	CurrentAction Category = "CURRENT_ACTION"
	// Mode is the active vocabulary mode.
	Mode Category = "MODE"
	// State is the session state.
	State Category = "STATE"
)

// ActionCategory returns the category under which scorer reports the
// command it would have chosen, e.g. "LEVENSHTEIN_ACTION".
func ActionCategory(scorer string) Category {
	return Category(strings.ToUpper(scorer) + "_ACTION")
}

// Sink receives diagnostics reports. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	Report(category Category, text string)
}

// Discard is a [Sink] that drops every report.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Category, string) {}

// Multi returns a [Sink] that forwards every report to all sinks.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

type multi []Sink

func (m multi) Report(category Category, text string) {
	for _, s := range m {
		s.Report(category, text)
	}
}

// Event is one diagnostics change.
type Event struct {
	Category Category  `json:"category"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}

// lastWordsKept is the number of transcripts shown under [LastWord].
const lastWordsKept = 3

// subscriberBuffer is the per-subscriber event buffer.
const subscriberBuffer = 64

// Recorder is a [Sink] that keeps the latest text of every category.
// All methods are safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	values    map[Category]string
	lastWords []string
	subs      map[int]chan Event
	nextSub   int
	now       func() time.Time
}

var _ Sink = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		values: make(map[Category]string),
		subs:   make(map[int]chan Event),
		now:    time.Now,
	}
}

// Report stores text under category and notifies subscribers. Subscribers
// whose buffer is full miss the event.
func (r *Recorder) Report(category Category, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if category == LastWord {
		r.lastWords = append([]string{text}, r.lastWords...)
		if len(r.lastWords) > lastWordsKept {
			r.lastWords = r.lastWords[:lastWordsKept]
		}
		text = strings.Join(r.lastWords, "\n")
	}
	r.values[category] = text

	ev := Event{Category: category, Text: text, Time: r.now()}
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Get returns the current text of category.
func (r *Recorder) Get(category Category) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[category]
}

// Snapshot returns a copy of all current values.
func (r *Recorder) Snapshot() map[Category]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Category]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel of future events and a function that cancels
// the subscription and closes the channel.
func (r *Recorder) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, subscriberBuffer)
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs, id)
			close(ch)
		})
	}
}
