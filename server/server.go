// Package server exposes the chat core over HTTP: one conversation per
// domain, a notification event stream, and the recorded transcripts.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/papercomputeco/dialogue/pkg/chat"
	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/notify"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

// heartbeat keeps idle event streams alive and detects gone clients.
const heartbeat = 15 * time.Second

// session is one domain's conversation and the gateway behind it.
type session struct {
	orch     *chat.Orchestrator
	gateway  *gateway.Gateway
	inflight atomic.Bool

	// limiter is nil when submissions are not rate limited.
	limiter *rate.Limiter
}

// Server serves every configured domain.
type Server struct {
	config   Config
	logger   *zap.Logger
	sessions map[string]*session
	bus      *notify.Bus
	storer   transcript.Storer
	server   *fiber.App
}

// New builds a server whose gateways load through loader. storer may be nil
// to disable transcripts.
func New(config Config, loader gateway.Loader, storer transcript.Storer, logger *zap.Logger) (*Server, error) {
	names := config.Domains
	if len(names) == 0 {
		names = domain.Names()
	}

	s := &Server{
		config:   config,
		logger:   logger,
		sessions: make(map[string]*session, len(names)),
		bus:      notify.NewBus(32),
		storer:   storer,
	}

	notifier := notify.Multi(s.bus, notify.LogNotifier{Logger: logger})

	var recorder *transcript.Recorder
	if storer != nil {
		recorder = transcript.NewRecorder(storer)
	}

	for _, name := range names {
		d, ok := domain.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown domain %q (known: %s)", name, strings.Join(domain.Names(), ", "))
		}
		if _, dup := s.sessions[d.Name]; dup {
			continue
		}

		gw, err := gateway.New(gateway.Config{
			Model:    config.Model,
			Domain:   d,
			Loader:   loader,
			Notifier: notifier,
		}, logger)
		if err != nil {
			return nil, err
		}

		cfg := chat.Config{
			Domain:   d,
			Gateway:  gw,
			Notifier: notifier,
		}
		// A nil *Recorder must not become a non-nil interface.
		if recorder != nil {
			cfg.Recorder = recorder
		}
		orch, err := chat.New(cfg, logger)
		if err != nil {
			return nil, err
		}

		sess := &session{orch: orch, gateway: gw}
		if config.SubmitRate > 0 {
			sess.limiter = rate.NewLimiter(rate.Limit(config.SubmitRate), max(config.SubmitBurst, 1))
		}
		s.sessions[d.Name] = sess
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})
	s.server = app

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/", s.handleDomains)
	api.Get("/:domain", s.handleSnapshot)
	api.Post("/:domain/messages", s.handleSubmit)
	api.Post("/:domain/reset", s.handleReset)
	api.Get("/:domain/events", s.handleEvents)

	if storer != nil {
		app.Get("/transcripts", s.handleListTranscripts)
		app.Get("/transcripts/stats", s.handleTranscriptStats)
		app.Post("/transcripts/nodes", s.handleIngestNodes)
		app.Get("/transcripts/:hash", s.handleGetTranscript)
	}

	return s, nil
}

// Start begins loading every domain's model. It returns immediately.
func (s *Server) Start(ctx context.Context) {
	for _, sess := range s.sessions {
		sess.gateway.Start(ctx)
	}
}

// Run starts the gateways and serves on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting dialogue server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("model", s.config.Model),
		zap.Int("domains", len(s.sessions)),
	)
	s.Start(context.Background())
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener is Run on an existing listener.
func (s *Server) RunWithListener(l net.Listener) error {
	s.logger.Info("starting dialogue server", zap.String("listen", l.Addr().String()))
	s.Start(context.Background())
	return s.server.Listener(l)
}

// Shutdown stops accepting requests and ends open event streams.
func (s *Server) Shutdown() error {
	s.bus.Close()
	return s.server.Shutdown()
}

// Close disposes the gateways and releases the transcript store.
func (s *Server) Close() error {
	for _, sess := range s.sessions {
		sess.gateway.Dispose()
	}
	s.bus.Close()
	if s.storer != nil {
		return s.storer.Close()
	}
	return nil
}

// session resolves :domain or writes a 404.
func (s *Server) session(c *fiber.Ctx) (*session, bool) {
	sess, ok := s.sessions[strings.ToLower(c.Params("domain"))]
	if !ok {
		_ = c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "unknown domain: " + c.Params("domain")})
	}
	return sess, ok
}

// handleDomains lists the served domains and their model status.
func (s *Server) handleDomains(c *fiber.Ctx) error {
	out := make(map[string]gateway.ModelStatus, len(s.sessions))
	for name, sess := range s.sessions {
		out[name] = sess.gateway.Status()
	}
	return c.JSON(map[string]any{"domains": out})
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	sess, ok := s.session(c)
	if !ok {
		return nil
	}
	return c.JSON(sess.orch.Snapshot())
}

// SubmitRequest is the body of POST /api/:domain/messages.
type SubmitRequest struct {
	Content string `json:"content"`
}

// handleSubmit runs one exchange. The server is the caller that keeps
// submissions single-flight per domain.
func (s *Server) handleSubmit(c *fiber.Ctx) error {
	sess, ok := s.session(c)
	if !ok {
		return nil
	}

	var req SubmitRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Debug("failed to parse submit request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if !sess.inflight.CompareAndSwap(false, true) {
		return c.Status(fiber.StatusConflict).JSON(llm.ErrorResponse{Error: "a reply is already being generated"})
	}
	defer sess.inflight.Store(false)

	// Only submissions that would run are charged to the limiter.
	if sess.limiter != nil && !sess.limiter.Allow() {
		return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{Error: "too many messages, slow down"})
	}

	start := time.Now()
	sess.orch.Submit(c.UserContext(), req.Content)

	snap := sess.orch.Snapshot()
	s.logger.Debug("submission complete",
		zap.String("domain", snap.Domain),
		zap.Int("message_count", len(snap.Messages)),
		zap.Duration("duration", time.Since(start)),
	)
	return c.JSON(snap)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	sess, ok := s.session(c)
	if !ok {
		return nil
	}
	sess.orch.ResetConversation()
	return c.JSON(sess.orch.Snapshot())
}

// handleEvents streams the domain's notifications as Server-Sent Events.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	sess, ok := s.session(c)
	if !ok {
		return nil
	}
	name := sess.orch.Domain().Name

	events, unsubscribe := s.bus.Subscribe()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		if err := streamEvents(w, events, ticker.C, name); err != nil {
			s.logger.Debug("event stream closed", zap.String("domain", name), zap.Error(err))
		}
	}))
	return nil
}

// errStreamEnded is returned when the bus closes the subscription.
var errStreamEnded = errors.New("notification stream ended")

// streamEvents writes notifications for domainName until events closes or a
// write fails.
func streamEvents(w *bufio.Writer, events <-chan notify.Notification, ping <-chan time.Time, domainName string) error {
	for {
		select {
		case n, ok := <-events:
			if !ok {
				return errStreamEnded
			}
			if n.Domain != domainName {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("marshal notification: %w", err)
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Level, data)
		case <-ping:
			w.WriteString(": ping\n\n")
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}

// handleTranscriptStats returns counts over the transcript store.
func (s *Server) handleTranscriptStats(c *fiber.Ctx) error {
	ctx := c.Context()

	nodes, err := s.storer.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list nodes"})
	}

	leaves, err := s.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	bySource := map[transcript.Source]int{}
	for _, n := range nodes {
		if n.Entry.Role == llm.RoleAssistant {
			bySource[n.Entry.Source]++
		}
	}

	return c.JSON(map[string]any{
		"total_nodes":   len(nodes),
		"conversations": len(leaves),
		"replies":       bySource,
	})
}

// IngestResponse reports the outcome of POST /transcripts/nodes.
type IngestResponse struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// handleIngestNodes stores nodes pushed from another dialogue instance.
// Nodes whose hash does not match their content, or whose role is unknown,
// are counted as errors.
func (s *Server) handleIngestNodes(c *fiber.Ctx) error {
	var nodes []*transcript.Node
	if err := json.Unmarshal(c.Body(), &nodes); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	var resp IngestResponse
	for _, n := range nodes {
		if n == nil || !n.Verify() || !n.Entry.Role.Valid() {
			resp.Errors++
			continue
		}
		isNew, err := s.storer.Put(c.Context(), n)
		if err != nil {
			s.logger.Warn("failed to store pushed node", zap.String("hash", n.Hash), zap.Error(err))
			resp.Errors++
			continue
		}
		if isNew {
			resp.New++
		} else {
			resp.Duplicate++
		}
	}

	s.logger.Debug("ingested nodes",
		zap.Int("new", resp.New),
		zap.Int("duplicate", resp.Duplicate),
		zap.Int("errors", resp.Errors),
	)
	return c.JSON(resp)
}

// HistoryResponse is one recorded conversation.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the head)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the newest node
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage is a recorded message.
type HistoryMessage struct {
	Hash       string            `json:"hash"`
	ParentHash *string           `json:"parent_hash,omitempty"`
	Domain     string            `json:"domain"`
	Role       llm.Role          `json:"role"`
	Content    string            `json:"content"`
	Source     transcript.Source `json:"source"`
	Model      string            `json:"model,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// handleListTranscripts returns every recorded conversation, one per head.
func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	ctx := c.Context()

	leaves, err := s.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := s.buildHistory(ctx, leaf.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetTranscript returns the conversation leading up to :hash.
func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	history, err := s.buildHistory(c.Context(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}
	return c.JSON(history)
}

func (s *Server) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	nodes, err := transcript.History(ctx, s.storer, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, len(nodes))
	for i, n := range nodes {
		messages[i] = HistoryMessage{
			Hash:       n.Hash,
			ParentHash: n.ParentHash,
			Domain:     n.Entry.Domain,
			Role:       n.Entry.Role,
			Content:    n.Entry.Content,
			Source:     n.Entry.Source,
			Model:      n.Entry.Model,
			Error:      n.Entry.Error,
			CreatedAt:  n.CreatedAt,
		}
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}
