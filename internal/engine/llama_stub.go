//go:build !llama

package engine

// No-CGO stub for the llama engine, compiled when the 'llama' build tag is
// NOT set. The real engine lives in llama.go.

import (
	"context"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = false

type llamaEngine struct{}

// NewLlama returns a stub that refuses to load models.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) Name() string { return "llama" }

func (llamaEngine) Load(ctx context.Context, modelPath string, p LoadParams) (Model, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
