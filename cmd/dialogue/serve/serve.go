package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/cmd/dialogue/cliconfig"
	"github.com/papercomputeco/dialogue/pkg/config"
	"github.com/papercomputeco/dialogue/pkg/logger"
	"github.com/papercomputeco/dialogue/server"
)

const serveLongDesc string = `Serve every configured domain over HTTP.

Each domain starts loading its model in the background as soon as the
server starts. Until the model is loaded, or if it never loads, replies
come from the domain's fallback corpus.

Endpoints:
  GET  /api/:domain            conversation snapshot
  POST /api/:domain/messages   submit {"content": "..."}
  POST /api/:domain/reset      start a new conversation
  GET  /api/:domain/events     notifications (Server-Sent Events)
  GET  /transcripts            recorded conversations

Examples:
  dialogue serve
  dialogue serve --listen :9000 --model llama3
  dialogue serve --backend none --domain finance`

const serveShortDesc string = "Serve the chat API"

type serveCommander struct {
	listen   string
	domains  []string
	jsonLogs bool
	watch    bool
	backend  cliconfig.BackendFlags
}

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default from config)")
	cmd.Flags().StringSliceVarP(&cmder.domains, "domain", "d", nil, "Domains to serve (default from config)")
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Log JSON lines instead of console output")
	cmd.Flags().BoolVar(&cmder.watch, "watch-config", true, "Apply debug changes in the config file without restarting")
	cmder.backend.Register(cmd)

	return cmd
}

// run serves until ctx is cancelled. A non-nil listener is used instead of
// the configured address.
func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command, listener net.Listener) error {
	cfg, err := cliconfig.Load(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = c.listen
	}
	if cmd.Flags().Changed("domain") {
		cfg.Domains = c.domains
	}
	if err := c.backend.Apply(cmd, cfg); err != nil {
		return err
	}

	level := zap.NewAtomicLevelAt(logger.LevelFor(cfg.Debug))
	log := logger.New(logger.Options{
		JSON:   c.jsonLogs,
		Output: cmd.ErrOrStderr(),
		Level:  &level,
	})
	defer log.Sync()

	if c.watch {
		c.watchConfig(ctx, cmd, log, &level)
	}

	storer, err := cliconfig.OpenStorer(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Listen,
		Model:       cfg.Backend.Model,
		Domains:     cfg.Domains,
		SubmitRate:  cfg.Limits.SubmitRate,
		SubmitBurst: cfg.Limits.SubmitBurst,
	}, cliconfig.NewLoader(cfg, log), storer, log)
	if err != nil {
		if storer != nil {
			storer.Close()
		}
		return fmt.Errorf("could not create server: %w", err)
	}
	defer srv.Close()

	log.Info("dialogue server configured",
		zap.String("backend", cfg.Backend.Kind),
		zap.String("backend_url", cfg.Backend.URL),
		zap.Strings("domains", cfg.Domains),
		zap.Bool("transcripts", storer != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		if listener != nil {
			errCh <- srv.RunWithListener(listener)
			return
		}
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// watchConfig follows the debug switch in the config file. Other settings
// need a restart.
func (c *serveCommander) watchConfig(ctx context.Context, cmd *cobra.Command, log *zap.Logger, level *zap.AtomicLevel) {
	var flagPath string
	if f := cmd.Flags().Lookup("config"); f != nil {
		flagPath = f.Value.String()
	}
	path := config.Resolve(flagPath)
	if path == "" {
		return
	}

	debugFlag := cmd.Flags().Lookup("debug")
	err := config.Watch(ctx, path, log, func(cfg *config.Config) {
		if debugFlag != nil && debugFlag.Changed {
			return
		}
		level.SetLevel(logger.LevelFor(cfg.Debug))
	})
	if err != nil {
		log.Warn("not watching config", zap.String("path", path), zap.Error(err))
	}
}
