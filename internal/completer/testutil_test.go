package completer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"localllm/internal/engine"
	"localllm/pkg/types"
)

type fakeEngine struct {
	mu         sync.Mutex
	loadErr    error
	loads      int
	lastPath   string
	lastParams engine.LoadParams
	models     []*fakeModel
	newModel   func() *fakeModel
	// gate, when set, holds Load until it is closed; entered is signaled
	// once Load has begun.
	gate    chan struct{}
	entered chan struct{}
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Load(ctx context.Context, path string, p engine.LoadParams) (engine.Model, error) {
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
	e.lastPath = path
	e.lastParams = p
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	var m *fakeModel
	if e.newModel != nil {
		m = e.newModel()
	} else {
		m = &fakeModel{choices: []string{"ok"}}
	}
	e.models = append(e.models, m)
	return m, nil
}

type fakeModel struct {
	mu         sync.Mutex
	choices    []string
	err        error
	block      chan struct{}
	started    chan struct{}
	calls      int
	lastPrompt string
	lastParams engine.CompleteParams
	closed     bool
}

func (m *fakeModel) Complete(ctx context.Context, prompt string, p engine.CompleteParams) (types.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	m.lastParams = p
	block, started := m.block, m.started
	m.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return types.CompletionResponse{}, ctx.Err()
		}
	}
	if m.err != nil {
		return types.CompletionResponse{}, m.err
	}
	resp := types.CompletionResponse{Object: "text_completion"}
	for i, t := range m.choices {
		resp.Choices = append(resp.Choices, types.Choice{Text: t, Index: i, FinishReason: "stop"})
	}
	return resp, nil
}

func (m *fakeModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeModel) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// writeModel creates an empty gguf file and returns its path.
func writeModel(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

func newTestCompleter(t *testing.T, eng *fakeEngine, mut func(*Config)) *Completer {
	t.Helper()
	cfg := Config{
		Engine:    eng,
		ModelPath: writeModel(t, t.TempDir(), "tiny.Q4_K_M.gguf"),
		MaxWait:   time.Second,
	}
	if mut != nil {
		mut(&cfg)
	}
	c := New(cfg)
	t.Cleanup(func() { _ = c.Shutdown() })
	return c
}

func setup(t *testing.T, c *Completer) {
	t.Helper()
	if err := c.Setup(context.Background()); err != nil {
		t.Fatalf("setup: %v", err)
	}
}
