// Package conversation holds the ordered message history of one chat and the
// status of the exchange currently in flight.
package conversation

import (
	"time"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// Message is one immutable entry in a conversation.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      llm.Role  `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// State is a point-in-time copy of a conversation.
type State struct {
	Messages  []Message `json:"messages"`
	IsLoading bool      `json:"is_loading"`
	Error     *string   `json:"error"`
}

// Last returns the newest message, or false for an empty state.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
