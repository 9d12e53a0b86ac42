package handler

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// attemptStream is one live WebSocket attempt connection. close tears it
// down at most once, from whichever side loses the race.
type attemptStream struct {
	once     sync.Once
	shutdown func()
}

func (s *attemptStream) close() {
	s.once.Do(s.shutdown)
}

// streamRegistry enforces a single live stream per (exam, student) within
// this process. A second connection for the same attempt evicts the first,
// mirroring the single-device login rule: the newest device wins. Without
// this, two tabs would each run an attempt runtime with its own timer, and
// both could write a final submission.
type streamRegistry struct {
	mu      sync.Mutex
	streams map[string]*attemptStream
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{streams: make(map[string]*attemptStream)}
}

// register installs s as the active stream for key and returns the stream
// it displaced, if any. The caller closes the displaced stream outside the
// lock.
func (r *streamRegistry) register(key string, s *attemptStream) *attemptStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.streams[key]
	r.streams[key] = s
	return prev
}

// release removes s from the registry unless a newer stream has already
// replaced it.
func (r *streamRegistry) release(key string, s *attemptStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streams[key] == s {
		delete(r.streams, key)
	}
}

func streamKey(examID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s:%d", examID, studentID)
}
