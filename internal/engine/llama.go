//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"

	"localllm/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
const llamaBuilt = true

type llamaEngine struct{}

// NewLlama returns the in-process go-llama.cpp engine.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) Name() string { return "llama" }

// llamaModel owns the loaded model. Predict is not reentrant, so calls are
// serialized on mu.
type llamaModel struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
	id      string
}

func (llamaEngine) Load(ctx context.Context, modelPath string, p LoadParams) (Model, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(p.ContextSize),
		llama.SetGPULayers(p.GPULayers),
	}
	if p.F16Memory {
		mo = append(mo, llama.EnableF16Memory)
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{model: m, threads: p.Threads, id: modelPath}, nil
}

func (s *llamaModel) Complete(ctx context.Context, prompt string, p CompleteParams) (types.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return types.CompletionResponse{}, errors.New("llama model not initialized")
	}
	po := append(predictOptions(p, s.threads), llama.SetTokenCallback(func(string) bool {
		// Returning false stops generation.
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}))
	text, err := s.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return types.CompletionResponse{}, ctx.Err()
		}
		return types.CompletionResponse{}, err
	}
	if ctx.Err() != nil {
		return types.CompletionResponse{}, ctx.Err()
	}
	if p.Echo {
		text = prompt + text
	}
	return types.CompletionResponse{
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   s.id,
		Choices: []types.Choice{{Text: text, Index: 0, FinishReason: "stop"}},
	}, nil
}

func (s *llamaModel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts CompleteParams into go-llama.cpp options.
func predictOptions(p CompleteParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(zf(p.Temperature, llama.DefaultOptions.Temperature)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
