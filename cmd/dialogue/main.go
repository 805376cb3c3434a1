package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/dialogue/cmd/dialogue/chat"
	servecmder "github.com/papercomputeco/dialogue/cmd/dialogue/serve"
	transcriptcmder "github.com/papercomputeco/dialogue/cmd/dialogue/transcript"
)

const rootLongDesc string = `dialogue is a fallback-aware chat service.

Each domain (philosophy, finance) talks to a small language model when one
is available and answers from a curated corpus when it is not, so every
message gets a reply.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dialogue",
		Short:         "Fallback-aware chat over a small language model",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default ~/.dialogue/config.toml)")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(transcriptcmder.NewTranscriptCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
