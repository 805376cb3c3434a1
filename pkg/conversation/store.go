package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// Store owns a conversation's history and exchange status. Every mutation
// goes through its methods; none of them can fail.
type Store struct {
	welcome string
	now     func() time.Time

	mu        sync.RWMutex
	messages  []Message
	isLoading bool
	err       *string
	last      time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a store seeded with the assistant welcome message.
func NewStore(welcome string, opts ...Option) *Store {
	s := &Store{
		welcome: welcome,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Append records a new message and returns it. Content is stored as given.
func (s *Store) Append(content string, role llm.Role) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.newMessage(content, role)
	s.messages = append(s.messages, msg)
	return msg
}

// Reset replaces the history with a fresh welcome message.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []Message{s.newMessage(s.welcome, llm.RoleAssistant)}
}

// SetLoading flags whether a reply is being produced.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.isLoading = loading
	s.mu.Unlock()
}

// SetError records the last exchange error.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	s.err = &msg
	s.mu.Unlock()
}

// ClearError removes the last exchange error.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// IsLoading reports whether a reply is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Len is the number of messages in the history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Messages:  make([]Message, len(s.messages)),
		IsLoading: s.isLoading,
	}
	copy(st.Messages, s.messages)
	if s.err != nil {
		e := *s.err
		st.Error = &e
	}
	return st
}

// newMessage must be called with mu held. Timestamps never go backwards
// within a store, even if the wall clock does.
func (s *Store) newMessage(content string, role llm.Role) Message {
	ts := s.now()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts

	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: ts,
	}
}
