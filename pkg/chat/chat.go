// Package chat ties a model gateway, a fallback corpus and a conversation
// store together behind the single user-facing operation: submit a message
// and record a reply.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/conversation"
	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/fallback"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/notify"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

// Gateway is the part of *gateway.Gateway the orchestrator needs.
type Gateway interface {
	State() gateway.State
	Status() gateway.ModelStatus
	GenerateReply(ctx context.Context, prompt string) (gateway.Reply, error)
}

// Recorder stores finished exchanges. Optional.
type Recorder interface {
	Record(ctx context.Context, ex transcript.Exchange) (string, error)
	Forget(conversation string)
}

// Snapshot is the read-only view handed to presenters.
type Snapshot struct {
	Domain    string                 `json:"domain"`
	Messages  []conversation.Message `json:"messages"`
	IsLoading bool                   `json:"is_loading"`
	Error     *string                `json:"error"`
	Model     gateway.ModelStatus    `json:"model"`
}

// Config wires an Orchestrator.
type Config struct {
	Domain   domain.Config
	Gateway  Gateway
	Corpus   *fallback.Corpus
	Store    *conversation.Store
	Notifier notify.Notifier
	Recorder Recorder
}

// Orchestrator runs submissions for one domain.
//
// It does not serialise Submit calls. Callers must not submit while
// IsLoading is true; concurrent submissions may interleave their messages.
type Orchestrator struct {
	config Config
	logger *zap.Logger

	mu           sync.Mutex
	conversation string
}

// New validates config and returns an orchestrator.
func New(config Config, logger *zap.Logger) (*Orchestrator, error) {
	if config.Gateway == nil {
		return nil, errors.New("chat: gateway is required")
	}
	if config.Store == nil {
		config.Store = conversation.NewStore(config.Domain.Welcome)
	}
	if config.Corpus == nil {
		c, err := fallback.New(config.Domain.Fallbacks, nil)
		if err != nil {
			return nil, fmt.Errorf("chat: domain %q: %w", config.Domain.Name, err)
		}
		config.Corpus = c
	}
	if config.Notifier == nil {
		config.Notifier = notify.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		config:       config,
		logger:       logger.With(zap.String("domain", config.Domain.Name)),
		conversation: uuid.NewString(),
	}, nil
}

// Submit records text as a user message and appends exactly one assistant
// reply. Text that is empty after trimming is ignored. Submit never fails;
// problems are absorbed into a fallback reply and the conversation error.
func (o *Orchestrator) Submit(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	store := o.config.Store
	userMsg := store.Append(text, llm.RoleUser)

	store.SetLoading(true)
	store.ClearError()
	defer store.SetLoading(false)

	reply, source, genErr := o.respond(ctx, text)

	replyMsg := store.Append(reply, llm.RoleAssistant)
	if genErr != nil {
		store.SetError(genErr.Error())
		n := o.config.Domain.GenerationFailedNotice
		o.config.Notifier.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       n.Title,
			Description: n.Description,
			Domain:      o.config.Domain.Name,
		})
	}

	o.record(ctx, userMsg, replyMsg, source, genErr)
}

// respond picks the reply. The gateway state is read once, here, so a load
// that completes mid-call does not change the branch taken.
func (o *Orchestrator) respond(ctx context.Context, text string) (reply string, source transcript.Source, genErr error) {
	if o.config.Gateway.State() != gateway.StateLoaded {
		o.logger.Debug("model not loaded, using fallback")
		return o.config.Corpus.Pick(), transcript.SourceFallback, nil
	}

	defer func() {
		if r := recover(); r != nil {
			genErr = &gateway.GenerationError{Err: fmt.Errorf("panic: %v", r)}
			reply, source = o.config.Corpus.Pick(), transcript.SourceFallback
			o.logger.Error("generation panicked", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	r, err := o.config.Gateway.GenerateReply(ctx, text)
	if err != nil {
		o.logger.Warn("generation failed, using fallback", zap.Error(err))
		return o.config.Corpus.Pick(), transcript.SourceFallback, err
	}

	o.logger.Debug("generated reply",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("placeholder", r.Placeholder),
		zap.String("content_preview", truncate(r.Text, 100)),
	)
	if r.Placeholder {
		return r.Text, transcript.SourcePlaceholder, nil
	}
	return r.Text, transcript.SourceModel, nil
}

func (o *Orchestrator) record(ctx context.Context, user, reply conversation.Message, source transcript.Source, genErr error) {
	if o.config.Recorder == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("recording panicked", zap.Any("panic", r))
		}
	}()

	ex := transcript.Exchange{
		Conversation: o.conversationID(),
		Domain:       o.config.Domain.Name,
		UserText:     user.Content,
		UserAt:       user.Timestamp,
		Reply:        reply.Content,
		ReplyAt:      reply.Timestamp,
		Source:       source,
	}
	if source != transcript.SourceFallback || genErr != nil {
		ex.Model = o.config.Gateway.Status().Name
	}
	if genErr != nil {
		ex.Error = genErr.Error()
	}

	// Detached from ctx so a client hanging up does not leave half an
	// exchange behind.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	head, err := o.config.Recorder.Record(rctx, ex)
	if err != nil {
		o.logger.Error("failed to record exchange", zap.Error(err))
		return
	}
	o.logger.Debug("exchange recorded", zap.String("head_hash", truncate(head, 16)))
}

// ResetConversation restores the welcome-only history. The gateway is left
// as it is.
func (o *Orchestrator) ResetConversation() {
	o.config.Store.Reset()

	o.mu.Lock()
	old := o.conversation
	o.conversation = uuid.NewString()
	o.mu.Unlock()

	if o.config.Recorder != nil {
		o.config.Recorder.Forget(old)
	}
}

// Snapshot returns the conversation and model status.
func (o *Orchestrator) Snapshot() Snapshot {
	st := o.config.Store.Snapshot()
	return Snapshot{
		Domain:    o.config.Domain.Name,
		Messages:  st.Messages,
		IsLoading: st.IsLoading,
		Error:     st.Error,
		Model:     o.config.Gateway.Status(),
	}
}

// IsLoading reports whether a submission is in flight.
func (o *Orchestrator) IsLoading() bool {
	return o.config.Store.IsLoading()
}

// Domain returns the orchestrator's domain.
func (o *Orchestrator) Domain() domain.Config {
	return o.config.Domain
}

func (o *Orchestrator) conversationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conversation
}

// truncate shortens s to at most maxLen runes for log previews.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
