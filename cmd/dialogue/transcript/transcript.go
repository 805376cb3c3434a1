package transcriptcmder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/dialogue/cmd/dialogue/cliconfig"
	"github.com/papercomputeco/dialogue/cmd/dialogue/termui"
	mergecmder "github.com/papercomputeco/dialogue/cmd/dialogue/transcript/merge"
	pushcmder "github.com/papercomputeco/dialogue/cmd/dialogue/transcript/push"
	"github.com/papercomputeco/dialogue/pkg/config"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

const transcriptLongDesc string = `Inspect and move recorded conversations.

Every exchange served by dialogue is recorded as a pair of content-addressed
nodes (the user message and the reply) chained to the previous exchange of
the same conversation.`

func NewTranscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transcript",
		Aliases: []string{"transcripts"},
		Short:   "Inspect recorded conversations",
		Long:    transcriptLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())
	cmd.AddCommand(pushcmder.NewPushCmd())

	return cmd
}

type listCommander struct {
	sqlitePath string
	domain     string
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to transcript database")
	cmd.Flags().StringVarP(&cmder.domain, "domain", "d", "", "Only list conversations of this domain")

	return cmd
}

func (c *listCommander) run(ctx context.Context, cmd *cobra.Command) error {
	storer, err := openStorer(cmd, c.sqlitePath)
	if err != nil {
		return err
	}
	defer storer.Close()

	leaves, err := storer.Leaves(ctx)
	if err != nil {
		return fmt.Errorf("could not list conversations: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HEAD\tDOMAIN\tMESSAGES\tUPDATED\tLAST")

	var shown int
	for _, leaf := range leaves {
		if c.domain != "" && !strings.EqualFold(leaf.Entry.Domain, c.domain) {
			continue
		}
		history, err := transcript.History(ctx, storer, leaf.Hash)
		if err != nil {
			return fmt.Errorf("could not load conversation %s: %w", leaf.Hash, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			leaf.Hash[:12],
			leaf.Entry.Domain,
			len(history),
			leaf.CreatedAt.Local().Format("2006-01-02 15:04"),
			oneLine(leaf.Entry.Content, 60),
		)
		shown++
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if shown == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations recorded.")
	}
	return nil
}

type showCommander struct {
	sqlitePath string
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Show a recorded conversation up to a node",
		Long: `Show a recorded conversation up to a node.

The hash may be abbreviated to any unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to transcript database")

	return cmd
}

func (c *showCommander) run(ctx context.Context, cmd *cobra.Command, hash string) error {
	storer, err := openStorer(cmd, c.sqlitePath)
	if err != nil {
		return err
	}
	defer storer.Close()

	full, err := resolveHash(ctx, storer, hash)
	if err != nil {
		return err
	}

	history, err := transcript.History(ctx, storer, full)
	if err != nil {
		return fmt.Errorf("could not load conversation %s: %w", full, err)
	}

	printHistory(cmd.OutOrStdout(), history)
	return nil
}

func printHistory(out io.Writer, history []*transcript.Node) {
	user := color.New(color.FgGreen, color.Bold).SprintFunc()
	assistant := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	md := termui.NewRenderer(out, 80)

	for _, n := range history {
		label := user("You:")
		if n.Entry.Role == llm.RoleAssistant {
			label = assistant("Assistant:")
		}

		meta := n.CreatedAt.Local().Format("15:04:05")
		if n.Entry.Role == llm.RoleAssistant {
			meta += " · " + string(n.Entry.Source)
		}
		if n.Entry.Error != "" {
			meta += " · " + n.Entry.Error
		}

		content := n.Entry.Content
		if n.Entry.Role == llm.RoleAssistant {
			content = md.Render(content)
		}
		fmt.Fprintf(out, "%s %s\n%s\n\n", label, content, dim(meta+" · "+n.Hash[:12]))
	}
}

// resolveHash expands a unique hash prefix.
func resolveHash(ctx context.Context, storer transcript.Storer, prefix string) (string, error) {
	if _, err := storer.Get(ctx, prefix); err == nil {
		return prefix, nil
	}

	nodes, err := storer.List(ctx)
	if err != nil {
		return "", fmt.Errorf("could not list nodes: %w", err)
	}

	var match string
	for _, n := range nodes {
		if !strings.HasPrefix(n.Hash, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("hash prefix %q is ambiguous", prefix)
		}
		match = n.Hash
	}
	if match == "" {
		return "", transcript.ErrNotFound{Hash: prefix}
	}
	return match, nil
}

func openStorer(cmd *cobra.Command, flag string) (*transcript.SQLiteStorer, error) {
	cfg, err := cliconfig.Load(cmd)
	if err != nil {
		return nil, err
	}

	path, err := config.ResolveTranscriptPath(flag, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not resolve transcript database: %w", err)
	}

	storer, err := transcript.NewSQLiteStorer(path)
	if err != nil {
		return nil, fmt.Errorf("could not open transcript database %s: %w", path, err)
	}
	return storer, nil
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen]) + "..."
	}
	return s
}
