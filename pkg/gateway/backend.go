package gateway

import (
	"context"

	"github.com/papercomputeco/dialogue/pkg/llm"
)

// Generator is a loaded generation handle. Implementations may echo the
// prompt at the start of their output; the gateway strips it.
type Generator interface {
	Generate(ctx context.Context, prompt string, params llm.Params) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, params llm.Params) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	return f(ctx, prompt, params)
}

// Loader prepares a backend model and returns its generation handle. A
// gateway calls Load at most once.
type Loader interface {
	Load(ctx context.Context, model string) (Generator, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, model string) (Generator, error)

func (f LoaderFunc) Load(ctx context.Context, model string) (Generator, error) {
	return f(ctx, model)
}

// Disabled is a Loader that always fails with ErrNoBackend, which leaves the
// gateway FAILED and its conversation in fallback-only mode.
var Disabled Loader = LoaderFunc(func(context.Context, string) (Generator, error) {
	return nil, ErrNoBackend
})
