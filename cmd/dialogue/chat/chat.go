package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/cmd/dialogue/cliconfig"
	"github.com/papercomputeco/dialogue/cmd/dialogue/termui"
	"github.com/papercomputeco/dialogue/pkg/chat"
	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/logger"
	"github.com/papercomputeco/dialogue/pkg/notify"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

const chatLongDesc string = `Chat with one domain in the terminal.

The model loads in the background. By default the prompt waits for the load
to finish; with --wait=false you can start typing right away and get
fallback replies until the model is ready.

Commands:
  /reset    start a new conversation
  /status   show the model status
  /quit     leave (also /exit or Ctrl+D)

Examples:
  dialogue chat
  dialogue chat finance --model llama3
  dialogue chat philosophy --backend none`

const chatShortDesc string = "Chat with a domain in the terminal"

type chatCommander struct {
	wait    bool
	backend cliconfig.BackendFlags

	out   io.Writer
	outMu sync.Mutex
	md    *termui.Renderer

	you, bot, info, success, failure func(a ...any) string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:       "chat [domain]",
		Short:     chatShortDesc,
		Long:      chatLongDesc,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: domain.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := domain.Philosophy.Name
			if len(args) == 1 {
				name = args[0]
			}
			return cmder.run(cmd.Context(), cmd, name)
		},
	}

	cmd.Flags().BoolVar(&cmder.wait, "wait", true, "Wait for the model to load before prompting")
	cmder.backend.Register(cmd)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, name string) error {
	d, ok := domain.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown domain %q (known: %s)", name, strings.Join(domain.Names(), ", "))
	}

	cfg, err := cliconfig.Load(cmd)
	if err != nil {
		return err
	}
	if err := c.backend.Apply(cmd, cfg); err != nil {
		return err
	}

	log := zap.NewNop()
	if cfg.Debug {
		log = logger.New(logger.Options{Debug: true, Output: cmd.ErrOrStderr()})
	}
	defer log.Sync()

	c.out = cmd.OutOrStdout()
	c.md = termui.NewRenderer(c.out, 80)
	c.you = color.New(color.FgGreen, color.Bold).SprintFunc()
	c.bot = color.New(color.FgCyan, color.Bold).SprintFunc()
	c.info = color.New(color.FgBlue).SprintFunc()
	c.success = color.New(color.FgGreen).SprintFunc()
	c.failure = color.New(color.FgRed).SprintFunc()

	storer, err := cliconfig.OpenStorer(cfg)
	if err != nil {
		return err
	}
	if storer != nil {
		defer storer.Close()
	}

	notifier := notify.NotifierFunc(c.printNotification)

	gw, err := gateway.New(gateway.Config{
		Model:    cfg.Backend.Model,
		Domain:   d,
		Loader:   cliconfig.NewLoader(cfg, log),
		Notifier: notifier,
	}, log)
	if err != nil {
		return err
	}
	defer gw.Dispose()

	chatCfg := chat.Config{
		Domain:   d,
		Gateway:  gw,
		Notifier: notifier,
	}
	if storer != nil {
		chatCfg.Recorder = transcript.NewRecorder(storer)
	}
	orch, err := chat.New(chatCfg, log)
	if err != nil {
		return err
	}

	c.printf("%s\n", c.bot(fmt.Sprintf("dialogue · %s", d.Name)))
	c.printf("Model: %s (%s)\n\n", cfg.Backend.Model, cfg.Backend.Kind)

	gw.Start(ctx)
	if c.wait {
		c.printf("%s\n", c.info("Loading model..."))
		if _, err := gw.Wait(ctx); err != nil {
			return nil
		}
	}

	c.printLast(orch.Snapshot())

	interactive := termui.IsTerminal(cmd.InOrStdin())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if interactive {
			c.printf("%s", c.you("You: "))
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(line) {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			orch.ResetConversation()
			c.printLast(orch.Snapshot())
			continue
		case "/status":
			c.printStatus(gw.Status())
			continue
		}

		orch.Submit(ctx, line)
		if ctx.Err() != nil {
			return nil
		}
		c.printLast(orch.Snapshot())
	}

	return scanner.Err()
}

func (c *chatCommander) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *chatCommander) printLast(snap chat.Snapshot) {
	if len(snap.Messages) == 0 {
		return
	}
	last := snap.Messages[len(snap.Messages)-1]
	c.printf("%s %s\n\n", c.bot("Assistant:"), c.md.Render(last.Content))
}

func (c *chatCommander) printStatus(s gateway.ModelStatus) {
	switch {
	case s.IsLoaded:
		c.printf("%s %s is loaded\n", c.success("●"), s.Name)
	case s.IsLoading:
		c.printf("%s %s is loading\n", c.info("●"), s.Name)
	case s.Error != nil:
		c.printf("%s %s failed to load: %s\n", c.failure("●"), s.Name, *s.Error)
	default:
		c.printf("%s %s is not loaded\n", c.info("●"), s.Name)
	}
}

// printNotification may run on the gateway's load goroutine.
func (c *chatCommander) printNotification(n notify.Notification) {
	paint := c.info
	switch n.Level {
	case notify.LevelSuccess:
		paint = c.success
	case notify.LevelError:
		paint = c.failure
	}
	c.printf("%s %s\n", paint(n.Title+":"), n.Description)
}
