// Package cliconfig turns the persistent --config and --debug flags plus the
// per-command backend flags into a loaded config and the components built
// from it.
package cliconfig

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/config"
	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/ollama"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

// Load reads the config named by --config and applies --debug. Commands run
// on their own (as in tests) have neither flag and get the defaults.
func Load(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if f := cmd.Flags().Lookup("config"); f != nil {
		path = f.Value.String()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if f := cmd.Flags().Lookup("debug"); f != nil && f.Changed {
		cfg.Debug = f.Value.String() == "true"
	}
	return cfg, nil
}

// BackendFlags are the backend overrides shared by serve and chat.
type BackendFlags struct {
	Kind       string
	URL        string
	Model      string
	Transcript string
}

// Register adds the flags to cmd.
func (b *BackendFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&b.Kind, "backend", "", "Model backend: ollama or none (default from config)")
	cmd.Flags().StringVar(&b.URL, "backend-url", "", "Backend base URL (default from config)")
	cmd.Flags().StringVarP(&b.Model, "model", "m", "", "Model to load (default from config)")
	cmd.Flags().StringVar(&b.Transcript, "transcript", "", `Transcript database path, or "off" (default from config)`)
}

// Apply copies the flags that were set onto cfg and revalidates it.
func (b *BackendFlags) Apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("backend") {
		cfg.Backend.Kind = b.Kind
	}
	if cmd.Flags().Changed("backend-url") {
		cfg.Backend.URL = b.URL
	}
	if cmd.Flags().Changed("model") {
		cfg.Backend.Model = b.Model
	}
	if cmd.Flags().Changed("transcript") {
		cfg.Transcript.Path = b.Transcript
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// NewLoader returns the gateway loader cfg selects.
func NewLoader(cfg *config.Config, logger *zap.Logger) gateway.Loader {
	if cfg.Backend.Kind == config.BackendNone {
		return gateway.Disabled
	}
	return ollama.New(ollama.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	}, logger)
}

// OpenStorer opens the transcript store cfg selects. It returns nil when
// transcripts are off.
func OpenStorer(cfg *config.Config) (transcript.Storer, error) {
	if !cfg.TranscriptsEnabled() {
		return nil, nil
	}

	path, err := cfg.TranscriptPath()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return transcript.NewMemoryStorer(), nil
	}

	storer, err := transcript.NewSQLiteStorer(path)
	if err != nil {
		return nil, fmt.Errorf("could not open transcript database %s: %w", path, err)
	}
	return storer, nil
}
