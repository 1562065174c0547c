// Package history keeps a sliding context window of recent conversational
// turns per session, so the extractor sees temporal context without an
// unbounded prompt.
package history

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one stored conversational turn. Content is expected to be
// scrubbed before it reaches the store.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultMaxTurns is the window size: the number of recent turns retained
// per session.
const DefaultMaxTurns = 4

// Store holds per-session sliding windows. In-memory, process-lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	maxTurns int
	clock    Clock
}

// NewStore creates a Store with the default window size.
func NewStore() *Store {
	return NewStoreWithClock(DefaultMaxTurns, realClock{})
}

// NewStoreWithMaxTurns creates a Store with a custom window size.
func NewStoreWithMaxTurns(maxTurns int) *Store {
	return NewStoreWithClock(maxTurns, realClock{})
}

// NewStoreWithClock creates a Store with a custom window size and clock
// (for testing). maxTurns <= 0 falls back to the default.
func NewStoreWithClock(maxTurns int, clock Clock) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		sessions: make(map[string][]Message),
		maxTurns: maxTurns,
		clock:    clock,
	}
}

// Append adds a message to the session's window, evicting the oldest turn
// once the window is full.
func (s *Store) Append(sessionID string, role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[sessionID], Message{
		Role:      role,
		Content:   content,
		Timestamp: s.clock.Now(),
	})
	if len(msgs) > s.maxTurns {
		msgs = msgs[len(msgs)-s.maxTurns:]
	}
	s.sessions[sessionID] = msgs
}

// Recent returns a copy of the session's current window, oldest first.
func (s *Store) Recent(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.sessions[sessionID]...)
}

// Digest formats the window as a single string for prompt injection, e.g.
// "USER: hello\nASSISTANT: hi there".
func (s *Store) Digest(sessionID string) string {
	msgs := s.Recent(sessionID)

	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), m.Content)
	}
	return strings.Join(parts, "\n")
}
