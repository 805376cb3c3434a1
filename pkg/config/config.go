// Package config loads dialogue's TOML configuration.
//
// Lookup order is defaults, then the config file (~/.dialogue/config.toml
// unless a path is given), then DIALOGUE_* environment overrides. Command
// line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/dialogue/pkg/domain"
	"github.com/papercomputeco/dialogue/pkg/ollama"
)

const (
	BackendOllama = "ollama"
	BackendNone   = "none"

	// TranscriptOff disables transcript recording.
	TranscriptOff = "off"
)

// Config is the root configuration.
type Config struct {
	Listen  string   `toml:"listen"`
	Debug   bool     `toml:"debug"`
	Domains []string `toml:"domains"`

	Backend    BackendConfig    `toml:"backend"`
	Transcript TranscriptConfig `toml:"transcript"`
	Limits     LimitsConfig     `toml:"limits"`
}

// BackendConfig selects and configures the model backend.
type BackendConfig struct {
	// Kind is "ollama" or "none". "none" never loads a model, so every
	// reply comes from the fallback corpus.
	Kind    string        `toml:"kind"`
	URL     string        `toml:"url"`
	Model   string        `toml:"model"`
	Timeout time.Duration `toml:"timeout"`
}

// TranscriptConfig configures the exchange transcript store.
type TranscriptConfig struct {
	// Path to a SQLite database. Empty keeps transcripts in memory and
	// "off" disables them.
	Path string `toml:"path"`
}

// LimitsConfig throttles the HTTP server.
type LimitsConfig struct {
	// SubmitRate is submissions per second per domain. Zero is unlimited.
	SubmitRate  float64 `toml:"submit_rate"`
	SubmitBurst int     `toml:"submit_burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		Domains: domain.Names(),
		Backend: BackendConfig{
			Kind:    BackendOllama,
			URL:     ollama.DefaultBaseURL,
			Model:   "gpt2",
			Timeout: 2 * time.Minute,
		},
	}
}

// Dir returns the dialogue configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".dialogue"), nil
}

// DefaultPath returns ~/.dialogue/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the configuration at path. An empty path reads the default
// location if it exists and otherwise returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	path = Resolve(path)
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Resolve returns the file Load reads for path: path itself, or the default
// location if it exists, or "" when there is no file.
func Resolve(path string) string {
	if path != "" {
		return path
	}
	p, err := DefaultPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// ApplyEnvOverrides applies DIALOGUE_* environment variables:
//
//   - DIALOGUE_LISTEN: overrides listen
//   - DIALOGUE_DEBUG: "1" or "true" enables debug logging
//   - DIALOGUE_BACKEND: overrides backend.kind
//   - DIALOGUE_BACKEND_URL: overrides backend.url
//   - DIALOGUE_MODEL: overrides backend.model
//   - DIALOGUE_TRANSCRIPT: overrides transcript.path
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DIALOGUE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("DIALOGUE_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("DIALOGUE_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("DIALOGUE_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("DIALOGUE_MODEL"); v != "" {
		c.Backend.Model = v
	}
	if v := os.Getenv("DIALOGUE_TRANSCRIPT"); v != "" {
		c.Transcript.Path = v
	}
}

// Validate checks the configuration and normalises the backend kind.
func (c *Config) Validate() error {
	var errs []error

	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	switch c.Backend.Kind {
	case BackendOllama:
		if c.Backend.URL == "" {
			errs = append(errs, errors.New("backend.url is required for the ollama backend"))
		}
		if c.Backend.Model == "" {
			errs = append(errs, errors.New("backend.model is required for the ollama backend"))
		}
	case BackendNone:
	default:
		errs = append(errs, fmt.Errorf("backend.kind %q is not one of %s, %s", c.Backend.Kind, BackendOllama, BackendNone))
	}

	if c.Limits.SubmitRate < 0 || c.Limits.SubmitBurst < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}

	if c.Backend.Timeout < 0 {
		errs = append(errs, errors.New("backend.timeout must not be negative"))
	}

	seen := make(map[string]bool, len(c.Domains))
	for _, name := range c.Domains {
		d, ok := domain.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown domain %q", name))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("domain %q is listed more than once", d.Name))
		}
		seen[d.Name] = true
	}

	return errors.Join(errs...)
}

// TranscriptsEnabled reports whether exchanges should be recorded.
func (c *Config) TranscriptsEnabled() bool {
	return !strings.EqualFold(c.Transcript.Path, TranscriptOff)
}

// TranscriptPath returns the expanded transcript database path, or "" for
// an in-memory store.
func (c *Config) TranscriptPath() (string, error) {
	if !c.TranscriptsEnabled() {
		return "", nil
	}
	return expandHome(c.Transcript.Path)
}

// ResolveTranscriptPath picks the database a transcript command operates
// on: the flag if set, else the configured path, else
// ~/.dialogue/transcripts.db.
func ResolveTranscriptPath(flag string, cfg *Config) (string, error) {
	if flag != "" {
		return expandHome(flag)
	}
	if cfg != nil && cfg.TranscriptsEnabled() && cfg.Transcript.Path != "" {
		return expandHome(cfg.Transcript.Path)
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "transcripts.db"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
