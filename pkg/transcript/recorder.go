package transcript

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// Exchange is one finished user turn and the reply it produced.
type Exchange struct {
	Conversation string
	Domain       string
	Model        string

	UserText string
	UserAt   time.Time

	Reply   string
	ReplyAt time.Time
	Source  Source

	// Error is the generation failure that led to a fallback, if any.
	Error string
}

// Recorder appends exchanges to per-conversation chains in a Storer.
type Recorder struct {
	storer Storer

	mu    sync.Mutex
	heads map[string]*Node
}

// NewRecorder records into storer.
func NewRecorder(storer Storer) *Recorder {
	return &Recorder{
		storer: storer,
		heads:  make(map[string]*Node),
	}
}

// Record stores the user and reply nodes of ex and returns the new head hash.
func (r *Recorder) Record(ctx context.Context, ex Exchange) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := r.heads[ex.Conversation]

	user := NewNode(Entry{
		Conversation: ex.Conversation,
		Domain:       ex.Domain,
		Role:         llm.RoleUser,
		Content:      ex.UserText,
		Source:       SourceUser,
	}, parent, ex.UserAt)
	if _, err := r.storer.Put(ctx, user); err != nil {
		return "", fmt.Errorf("storing user node: %w", err)
	}

	reply := NewNode(Entry{
		Conversation: ex.Conversation,
		Domain:       ex.Domain,
		Role:         llm.RoleAssistant,
		Content:      ex.Reply,
		Model:        ex.Model,
		Source:       ex.Source,
		Error:        ex.Error,
	}, user, ex.ReplyAt)
	if _, err := r.storer.Put(ctx, reply); err != nil {
		return "", fmt.Errorf("storing reply node: %w", err)
	}

	r.heads[ex.Conversation] = reply
	return reply.Hash, nil
}

// Forget drops the head of a conversation that has ended.
func (r *Recorder) Forget(conversation string) {
	r.mu.Lock()
	delete(r.heads, conversation)
	r.mu.Unlock()
}

// Storer returns the underlying store.
func (r *Recorder) Storer() Storer {
	return r.storer
}
