package gateway

import (
	"errors"
	"fmt"
)

// ErrModelNotReady is returned by Generate when the gateway is not LOADED.
var ErrModelNotReady = errors.New("model not loaded")

// ErrNoBackend is the load failure of a gateway configured without a backend.
var ErrNoBackend = errors.New("no generation backend configured")

// LoadError reports that the backend failed to initialise.
type LoadError struct {
	Model string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading model %s: %v", e.Model, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// GenerationError reports that the backend accepted a prompt but failed.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
