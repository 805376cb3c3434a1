// Package domain describes the per-domain configuration that turns the generic
// chat core into a concrete product: the prompt template, fallback corpus,
// generation parameters, quality floor and welcome text.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// PromptPlaceholder marks where the user's text goes in a PromptTemplate.
const PromptPlaceholder = "{prompt}"

// Notice is the title and description of a user-facing notification.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Config parameterises one conversation domain.
type Config struct {
	// Name is the domain's route key, e.g. "philosophy".
	Name string

	// Welcome seeds every fresh conversation as an assistant message.
	Welcome string

	// PromptTemplate wraps the user's text before generation.
	PromptTemplate string

	Params llm.Params

	// MinLength is the quality floor in characters. A cleaned generation
	// shorter than this is replaced by Placeholder.
	MinLength   int
	Placeholder string

	// Fallbacks is the canned corpus used whenever generation is unavailable.
	Fallbacks []string

	LoadedNotice           Notice
	LoadFailedNotice       Notice
	GenerationFailedNotice Notice
}

// WrapPrompt substitutes prompt into the template.
func (c Config) WrapPrompt(prompt string) string {
	return strings.Replace(c.PromptTemplate, PromptPlaceholder, prompt, 1)
}

// Validate checks the invariants the core relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(c.Fallbacks) == 0 {
		errs = append(errs, errors.New("fallback corpus must not be empty"))
	}
	if !strings.Contains(c.PromptTemplate, PromptPlaceholder) {
		errs = append(errs, fmt.Errorf("prompt template must contain %s", PromptPlaceholder))
	}
	if c.MinLength <= 0 {
		errs = append(errs, errors.New("quality floor must be positive"))
	}
	if c.Placeholder == "" {
		errs = append(errs, errors.New("placeholder is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("domain %q: %w", c.Name, errors.Join(errs...))
	}
	return nil
}

var builtins = map[string]Config{
	Philosophy.Name: Philosophy,
	Finance.Name:    Finance,
}

// Lookup returns the built-in domain with the given name.
func Lookup(name string) (Config, bool) {
	c, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names lists the built-in domains in a stable order.
func Names() []string {
	return []string{Philosophy.Name, Finance.Name}
}
