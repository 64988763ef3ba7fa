package engine

import (
	"context"
	"fmt"

	"localllm/pkg/types"
)

// Engine loads models for a particular runtime.
type Engine interface {
	// Name identifies the runtime (e.g. "llama", "openai").
	Name() string
	// Load opens the model at modelPath. Errors from the underlying loader
	// are returned unchanged.
	Load(ctx context.Context, modelPath string, params LoadParams) (Model, error)
}

// Built reports whether e can load models in this binary. The llama engine
// needs the 'llama' build tag; every other engine is always available.
func Built(e Engine) bool {
	if _, ok := e.(llamaEngine); ok {
		return llamaBuilt
	}
	return e != nil
}

// Model is a loaded model ready to generate text.
type Model interface {
	// Complete runs a single blocking completion. Implementations must return
	// when ctx is canceled.
	Complete(ctx context.Context, prompt string, params CompleteParams) (types.CompletionResponse, error)
	// Close releases native resources held by the model.
	Close() error
}

// LoadParams are fixed at load time.
type LoadParams struct {
	ContextSize int
	Threads     int
	GPULayers   int
	F16Memory   bool
}

// CompleteParams are passed per generation.
type CompleteParams struct {
	MaxTokens   int
	Echo        bool
	Temperature float32
	TopP        float32
	TopK        int
	Stop        []string
	Seed        int
}

// Options configure engines built by New.
type Options struct {
	// ServerURL is the OpenAI-compatible base URL (e.g. http://127.0.0.1:8081/v1).
	ServerURL string
	APIKey    string
}

// New returns the engine registered under name.
func New(name string, opts Options) (Engine, error) {
	switch name {
	case "llama", "":
		return NewLlama(), nil
	case "openai":
		return NewOpenAI(opts.ServerURL, opts.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
