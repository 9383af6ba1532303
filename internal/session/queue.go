package session

import "sync"

// Queue is a mutex-guarded FIFO of raw transcript strings. The receiver loop
// pushes and the frame loop pops. The zero value is ready to use.
type Queue struct {
	mu    sync.Mutex
	items []string
}

// Push appends s.
func (q *Queue) Push(s string) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
}

// Pop removes and returns the oldest transcript.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	s := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return s, true
}

// Len returns the number of queued transcripts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
