package gateway_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/notify"
)

// recorder collects notifications.
type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

func loaderFor(gen gateway.Generator, err error) gateway.Loader {
	return gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
		return gen, err
	})
}

func echo(body string) gateway.Generator {
	return gateway.GeneratorFunc(func(_ context.Context, prompt string, _ llm.Params) (string, error) {
		return prompt + body, nil
	})
}

var _ = Describe("Gateway", func() {
	var (
		ctx   context.Context
		notes *recorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		notes = &recorder{}
	})

	newGateway := func(d domain.Config, loader gateway.Loader) *gateway.Gateway {
		g, err := gateway.New(gateway.Config{
			Model:    "test-model",
			Domain:   d,
			Loader:   loader,
			Notifier: notes,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(g.Dispose)
		return g
	}

	Describe("New", func() {
		It("requires a loader", func() {
			_, err := gateway.New(gateway.Config{Domain: domain.Philosophy}, nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects an invalid domain", func() {
			d := domain.Philosophy
			d.Fallbacks = nil
			_, err := gateway.New(gateway.Config{Domain: d, Loader: gateway.Disabled}, nil)
			Expect(err).To(MatchError(ContainSubstring("fallback corpus")))
		})

		It("starts uninitialized", func() {
			g := newGateway(domain.Philosophy, gateway.Disabled)
			Expect(g.State()).To(Equal(gateway.StateUninitialized))
			Expect(g.Status()).To(Equal(gateway.ModelStatus{Name: "test-model"}))
		})
	})

	Describe("lifecycle", func() {
		It("moves to LOADED and announces success", func() {
			g := newGateway(domain.Philosophy, loaderFor(echo(" fine words indeed, friend"), nil))
			g.Start(ctx)

			state, err := g.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(gateway.StateLoaded))

			st := g.Status()
			Expect(st.IsLoaded).To(BeTrue())
			Expect(st.IsLoading).To(BeFalse())
			Expect(st.Error).To(BeNil())

			Expect(notes.all()).To(HaveLen(1))
			Expect(notes.all()[0].Level).To(Equal(notify.LevelSuccess))
			Expect(notes.all()[0].Title).To(Equal(domain.Philosophy.LoadedNotice.Title))
			Expect(notes.all()[0].Domain).To(Equal("philosophy"))
		})

		It("moves to FAILED with a description and announces failure", func() {
			g := newGateway(domain.Finance, loaderFor(nil, errors.New("weights unavailable")))
			g.Start(ctx)

			Expect(g.Wait(ctx)).To(Equal(gateway.StateFailed))
			st := g.Status()
			Expect(st.IsLoaded).To(BeFalse())
			Expect(st.IsLoading).To(BeFalse())
			Expect(st.Error).To(HaveValue(Equal("weights unavailable")))

			Expect(notes.all()).To(HaveLen(1))
			Expect(notes.all()[0].Level).To(Equal(notify.LevelError))
			Expect(notes.all()[0].Title).To(Equal(domain.Finance.LoadFailedNotice.Title))
		})

		It("treats a loader panic as a load failure", func() {
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
				panic("bad runtime")
			}))
			g.Start(ctx)

			Expect(g.Wait(ctx)).To(Equal(gateway.StateFailed))
			Expect(g.Status().Error).To(HaveValue(ContainSubstring("bad runtime")))
		})

		It("reports FAILED with ErrNoBackend when disabled", func() {
			g := newGateway(domain.Philosophy, gateway.Disabled)
			g.Start(ctx)
			Expect(g.Wait(ctx)).To(Equal(gateway.StateFailed))
			Expect(g.Status().Error).To(HaveValue(Equal(gateway.ErrNoBackend.Error())))
		})

		It("is LOADING while the loader runs and never loaded at the same time", func() {
			release := make(chan struct{})
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
				<-release
				return echo(" a long enough philosophical reply"), nil
			}))
			g.Start(ctx)

			Expect(g.State()).To(Equal(gateway.StateLoading))
			st := g.Status()
			Expect(st.IsLoading).To(BeTrue())
			Expect(st.IsLoaded).To(BeFalse())

			close(release)
			Expect(g.Wait(ctx)).To(Equal(gateway.StateLoaded))
		})

		It("loads at most once", func() {
			var calls atomic.Int32
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
				calls.Add(1)
				return nil, errors.New("nope")
			}))

			g.Start(ctx)
			g.Start(ctx)
			g.Wait(ctx)
			g.Start(ctx)

			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(g.State()).To(Equal(gateway.StateFailed))
		})

		It("discards a load that finishes after dispose", func() {
			release := make(chan struct{})
			finished := make(chan struct{})
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
				defer close(finished)
				<-release
				return echo(" too late to matter at all"), nil
			}))
			g.Start(ctx)
			g.Dispose()
			close(release)
			<-finished

			Consistently(g.State, 50*time.Millisecond).Should(Equal(gateway.StateLoading))
			Expect(notes.all()).To(BeEmpty())
			_, err := g.Generate(ctx, "anything")
			Expect(err).To(MatchError(gateway.ErrModelNotReady))
		})

		It("cancels the load context on dispose", func() {
			canceled := make(chan struct{})
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(ctx context.Context, _ string) (gateway.Generator, error) {
				<-ctx.Done()
				close(canceled)
				return nil, ctx.Err()
			}))
			g.Start(ctx)
			g.Dispose()
			Eventually(canceled).Should(BeClosed())
		})

		It("returns from Wait when the caller's context ends", func() {
			g := newGateway(domain.Philosophy, gateway.LoaderFunc(func(ctx context.Context, _ string) (gateway.Generator, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}))
			g.Start(ctx)

			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			state, err := g.Wait(waitCtx)
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(state).To(Equal(gateway.StateLoading))
		})
	})

	Describe("Generate", func() {
		loaded := func(d domain.Config, gen gateway.Generator) *gateway.Gateway {
			g := newGateway(d, loaderFor(gen, nil))
			g.Start(ctx)
			Expect(g.Wait(ctx)).To(Equal(gateway.StateLoaded))
			return g
		}

		It("fails with ErrModelNotReady before loading", func() {
			g := newGateway(domain.Philosophy, gateway.Disabled)
			_, err := g.Generate(ctx, "hello")
			Expect(err).To(MatchError(gateway.ErrModelNotReady))
		})

		It("fails with ErrModelNotReady after a failed load", func() {
			g := newGateway(domain.Philosophy, gateway.Disabled)
			g.Start(ctx)
			g.Wait(ctx)
			_, err := g.Generate(ctx, "hello")
			Expect(err).To(MatchError(gateway.ErrModelNotReady))
		})

		It("strips the echoed template and trims the result", func() {
			gen := gateway.GeneratorFunc(func(_ context.Context, prompt string, _ llm.Params) (string, error) {
				Expect(prompt).To(Equal("Question: X\n\nA philosophical response:"))
				return "Question: X\n\nA philosophical response:Wisdom begins in wonder.", nil
			})
			g := loaded(domain.Philosophy, gen)

			out, err := g.Generate(ctx, "X")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Wisdom begins in wonder."))
		})

		It("passes the domain generation parameters", func() {
			var got llm.Params
			gen := gateway.GeneratorFunc(func(_ context.Context, prompt string, p llm.Params) (string, error) {
				got = p
				return prompt + " " + domain.Finance.Fallbacks[0], nil
			})
			g := loaded(domain.Finance, gen)

			_, err := g.Generate(ctx, "outlook")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(llm.Params{MaxNewTokens: 300, Temperature: 0.6, TopP: 0.9, RepetitionPenalty: 1.2}))
		})

		It("keeps text that does not echo the prompt", func() {
			g := loaded(domain.Philosophy, gateway.GeneratorFunc(func(context.Context, string, llm.Params) (string, error) {
				return "  Virtue is its own reward, said someone.  ", nil
			}))
			out, err := g.Generate(ctx, "virtue")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("Virtue is its own reward, said someone."))
		})

		DescribeTable("applies the quality floor",
			func(d domain.Config, body string, wantPlaceholder bool) {
				g := loaded(d, echo(body))
				r, err := g.GenerateReply(ctx, "q")
				Expect(err).NotTo(HaveOccurred())
				Expect(r.Placeholder).To(Equal(wantPlaceholder))
				if wantPlaceholder {
					Expect(r.Text).To(Equal(d.Placeholder))
				} else {
					Expect(r.Text).To(Equal(body))
				}
			},
			Entry("philosophy below 20", domain.Philosophy, "Too short.", true),
			Entry("philosophy at exactly 20", domain.Philosophy, "abcdefghijklmnopqrst", false),
			Entry("finance at 49", domain.Finance, "1234567890123456789012345678901234567890123456789", true),
			Entry("finance at 50", domain.Finance, "12345678901234567890123456789012345678901234567890", false),
			Entry("empty output", domain.Finance, "", true),
			Entry("counts characters, not bytes", domain.Philosophy, "ééééééééééééééééééé", true),
		)

		It("wraps backend failures in GenerationError", func() {
			cause := errors.New("out of memory")
			g := loaded(domain.Philosophy, gateway.GeneratorFunc(func(context.Context, string, llm.Params) (string, error) {
				return "", cause
			}))

			_, err := g.Generate(ctx, "q")
			var genErr *gateway.GenerationError
			Expect(errors.As(err, &genErr)).To(BeTrue())
			Expect(err).To(MatchError(cause))
		})
	})
})

var _ = Describe("State", func() {
	It("has readable names", func() {
		Expect(gateway.StateLoaded.String()).To(Equal("loaded"))
		Expect(gateway.State(42).String()).To(Equal("state(42)"))
	})
})

var _ = Describe("LoadError", func() {
	It("names the model and unwraps", func() {
		cause := errors.New("404")
		err := &gateway.LoadError{Model: "llama3.2", Err: cause}
		Expect(err.Error()).To(Equal("loading model llama3.2: 404"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})
