// Package gateway owns the lifecycle of one text-generation backend and turns
// a user's prompt into a cleaned reply using a domain's template and
// parameters.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/notify"
)

// State is the gateway lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ModelStatus is the externally visible view of the gateway.
type ModelStatus struct {
	Name      string  `json:"name"`
	IsLoading bool    `json:"is_loading"`
	IsLoaded  bool    `json:"is_loaded"`
	Error     *string `json:"error"`
}

// Config is the gateway configuration.
type Config struct {
	// Model is the backend model identifier passed to the Loader.
	Model string

	Domain domain.Config
	Loader Loader

	// Notifier receives load success and failure notices. Optional.
	Notifier notify.Notifier
}

// Reply is a cleaned generation.
type Reply struct {
	Text string

	// Placeholder is true when the generation fell under the quality floor
	// and Text is the domain placeholder.
	Placeholder bool
}

// Gateway manages UNINITIALIZED -> LOADING -> {LOADED, FAILED}. There is no
// way back out of LOADED or FAILED.
type Gateway struct {
	config Config
	logger *zap.Logger

	mu       sync.RWMutex
	state    State
	gen      Generator
	loadErr  string
	disposed bool
	cancel   context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a gateway in the UNINITIALIZED state.
func New(config Config, logger *zap.Logger) (*Gateway, error) {
	if config.Loader == nil {
		return nil, errors.New("gateway: loader is required")
	}
	if err := config.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	if config.Notifier == nil {
		config.Notifier = notify.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gateway{
		config: config,
		logger: logger.With(zap.String("domain", config.Domain.Name), zap.String("model", config.Model)),
		done:   make(chan struct{}),
	}, nil
}

// Start begins loading the backend in the background and returns at once.
// Only the first call has any effect.
func (g *Gateway) Start(ctx context.Context) {
	g.mu.Lock()
	if g.state != StateUninitialized || g.disposed {
		g.mu.Unlock()
		return
	}
	g.state = StateLoading
	ctx, g.cancel = context.WithCancel(ctx)
	g.mu.Unlock()

	g.logger.Info("loading model")
	go g.load(ctx)
}

func (g *Gateway) load(ctx context.Context) {
	defer g.settle()

	gen, err := g.callLoader(ctx)

	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		g.logger.Debug("discarding load outcome after dispose", zap.Error(err))
		return
	}
	if err == nil && gen == nil {
		err = errors.New("loader returned no generator")
	}
	if err != nil {
		g.state = StateFailed
		g.loadErr = describe(err, "unknown error loading the model")
	} else {
		g.state = StateLoaded
		g.gen = gen
		g.loadErr = ""
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("failed to load model", zap.Error(&LoadError{Model: g.config.Model, Err: err}))
		g.publish(notify.LevelError, g.config.Domain.LoadFailedNotice)
		return
	}
	g.logger.Info("model loaded")
	g.publish(notify.LevelSuccess, g.config.Domain.LoadedNotice)
}

// callLoader turns a panicking loader into a load failure.
func (g *Gateway) callLoader(ctx context.Context) (gen Generator, err error) {
	defer func() {
		if r := recover(); r != nil {
			gen, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	return g.config.Loader.Load(ctx, g.config.Model)
}

func (g *Gateway) settle() {
	g.doneOnce.Do(func() { close(g.done) })
}

func (g *Gateway) publish(level notify.Level, n domain.Notice) {
	g.config.Notifier.Notify(notify.Notification{
		Level:       level,
		Title:       n.Title,
		Description: n.Description,
		Domain:      g.config.Domain.Name,
	})
}

// Dispose tears the gateway down. A load still in flight is asked to stop
// via its context, and whatever it eventually returns is ignored.
func (g *Gateway) Dispose() {
	g.mu.Lock()
	g.disposed = true
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()
	g.settle()
}

// Wait blocks until the load settles, the gateway is disposed, or ctx ends.
// It returns the state at that point.
func (g *Gateway) Wait(ctx context.Context) (State, error) {
	select {
	case <-g.done:
		return g.State(), nil
	case <-ctx.Done():
		return g.State(), ctx.Err()
	}
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Status returns a snapshot for presentation.
func (g *Gateway) Status() ModelStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	st := ModelStatus{
		Name:      g.config.Model,
		IsLoading: g.state == StateLoading,
		IsLoaded:  g.state == StateLoaded,
	}
	if g.loadErr != "" {
		e := g.loadErr
		st.Error = &e
	}
	return st
}

// Domain returns the domain this gateway generates for.
func (g *Gateway) Domain() domain.Config {
	return g.config.Domain
}

// Generate produces a cleaned reply for prompt.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	r, err := g.GenerateReply(ctx, prompt)
	return r.Text, err
}

// GenerateReply is Generate that also reports whether the quality floor
// substituted the placeholder.
func (g *Gateway) GenerateReply(ctx context.Context, prompt string) (Reply, error) {
	g.mu.RLock()
	state, gen, disposed := g.state, g.gen, g.disposed
	g.mu.RUnlock()

	if disposed || state != StateLoaded || gen == nil {
		return Reply{}, ErrModelNotReady
	}

	d := g.config.Domain
	wrapped := d.WrapPrompt(prompt)

	out, err := gen.Generate(ctx, wrapped, d.Params)
	if err != nil {
		return Reply{}, &GenerationError{Err: err}
	}

	cleaned := strings.TrimSpace(strings.Replace(out, wrapped, "", 1))
	if utf8.RuneCountInString(cleaned) < d.MinLength {
		g.logger.Debug("generation under quality floor",
			zap.Int("length", utf8.RuneCountInString(cleaned)),
			zap.Int("min_length", d.MinLength),
		)
		return Reply{Text: d.Placeholder, Placeholder: true}, nil
	}
	return Reply{Text: cleaned}, nil
}

func describe(err error, otherwise string) string {
	if err == nil || err.Error() == "" {
		return otherwise
	}
	return err.Error()
}
