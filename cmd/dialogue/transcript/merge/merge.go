package mergecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/dialogue/cmd/dialogue/cliconfig"
	"github.com/papercomputeco/dialogue/pkg/config"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

const mergeLongDesc string = `Merge one or more transcript databases into a target.

Nodes are content-addressed, so merging is a union: nodes already in the
target are skipped. Nodes whose hash does not match their content are
rejected.

Examples:
  dialogue transcript merge laptop.db desktop.db
  dialogue transcript merge --sqlite /tmp/all.db ~/alice/transcripts.db ~/bob/transcripts.db`

const mergeShortDesc string = "Merge transcript databases"

type mergeCommander struct {
	sqlitePath string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to target transcript database")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	cfg, err := cliconfig.Load(cmd)
	if err != nil {
		return err
	}

	targetPath, err := config.ResolveTranscriptPath(c.sqlitePath, cfg)
	if err != nil {
		return fmt.Errorf("could not resolve target database: %w", err)
	}

	target, err := transcript.NewSQLiteStorer(targetPath)
	if err != nil {
		return fmt.Errorf("could not open target database %s: %w", targetPath, err)
	}
	defer target.Close()

	var totalNew, totalDuped, totalBad int

	for _, srcPath := range sources {
		srcNew, srcDuped, srcBad, err := mergeFrom(ctx, target, srcPath)
		if err != nil {
			return err
		}

		totalNew += srcNew
		totalDuped += srcDuped
		totalBad += srcBad

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d already existed, %d rejected\n", srcPath, srcNew, srcDuped, srcBad)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d new nodes from %d sources (%d already existed, %d rejected) into %s\n",
		totalNew, len(sources), totalDuped, totalBad, targetPath)

	return nil
}

func mergeFrom(ctx context.Context, target transcript.Storer, srcPath string) (isNew, duped, bad int, err error) {
	source, err := transcript.NewSQLiteStorer(srcPath)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("could not open source database %s: %w", srcPath, err)
	}
	defer source.Close()

	nodes, err := source.List(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("could not list nodes from %s: %w", srcPath, err)
	}

	for _, n := range nodes {
		if !n.Verify() {
			bad++
			continue
		}
		added, err := target.Put(ctx, n)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("could not put node %s: %w", n.Hash, err)
		}
		if added {
			isNew++
		} else {
			duped++
		}
	}
	return isNew, duped, bad, nil
}
