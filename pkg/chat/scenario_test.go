package chat_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/chat"
	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/notify"
)

// These scenarios run the orchestrator against a real gateway.
var _ = Describe("End to end", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	start := func(d domain.Config, loader gateway.Loader, n notify.Notifier) *chat.Orchestrator {
		gw, err := gateway.New(gateway.Config{Model: "test-model", Domain: d, Loader: loader, Notifier: n}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(gw.Dispose)

		gw.Start(ctx)
		_, err = gw.Wait(ctx)
		Expect(err).NotTo(HaveOccurred())

		o, err := chat.New(chat.Config{Domain: d, Gateway: gw, Notifier: n}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	It("answers from the philosophical corpus when the model failed to load", func() {
		o := start(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
			return nil, errors.New("no weights")
		}), nil)

		Expect(o.Snapshot().Messages).To(HaveLen(1))
		o.Submit(ctx, "What is happiness?")

		snap := o.Snapshot()
		Expect(snap.Messages).To(HaveLen(3))
		reply := snap.Messages[len(snap.Messages)-1]
		Expect(reply.Role).To(Equal(llm.RoleAssistant))
		Expect(domain.Philosophy.Fallbacks).To(ContainElement(reply.Content))
		Expect(snap.IsLoading).To(BeFalse())
		Expect(snap.Model.Error).To(HaveValue(Equal("no weights")))
	})

	It("returns the cleaned generation when the model echoes the prompt", func() {
		o := start(domain.Philosophy, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
			return gateway.GeneratorFunc(func(context.Context, string, llm.Params) (string, error) {
				return "Question: X\n\nA philosophical response:Wisdom begins in wonder.", nil
			}), nil
		}), nil)

		o.Submit(ctx, "X")

		last, ok := chatLast(o)
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal("Wisdom begins in wonder."))
	})

	It("notifies once for a finance generation failure after a successful load", func() {
		bus := notify.NewBus(8)
		DeferCleanup(bus.Close)
		events, _ := bus.Subscribe()

		o := start(domain.Finance, gateway.LoaderFunc(func(context.Context, string) (gateway.Generator, error) {
			return gateway.GeneratorFunc(func(context.Context, string, llm.Params) (string, error) {
				return "", errors.New("CUDA out of memory")
			}), nil
		}), bus)

		var loaded notify.Notification
		Eventually(events).Should(Receive(&loaded))
		Expect(loaded.Title).To(Equal(domain.Finance.LoadedNotice.Title))

		o.Submit(ctx, "Hospital REIT outlook")

		var failed notify.Notification
		Eventually(events).Should(Receive(&failed))
		Expect(failed.Level).To(Equal(notify.LevelError))
		Expect(failed.Description).To(Equal("Falling back to predefined financial insights"))
		Consistently(events).ShouldNot(Receive())

		last, _ := chatLast(o)
		Expect(domain.Finance.Fallbacks).To(ContainElement(last))
		Expect(o.Snapshot().Error).To(HaveValue(ContainSubstring("CUDA out of memory")))
	})
})

func chatLast(o *chat.Orchestrator) (string, bool) {
	msgs := o.Snapshot().Messages
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1].Content, true
}
