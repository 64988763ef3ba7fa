package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"localllm/pkg/types"
)

// fakeLlamaServer mimics the llama-server OpenAI endpoints used by the engine.
func fakeLlamaServer(t *testing.T, gotReq *map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"served.gguf","object":"model"}]}`))
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if gotReq != nil {
			*gotReq = body
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"text_completion","created":1700000000,"model":"served.gguf",
			"choices":[{"text":"acci(n):","index":0,"finish_reason":"length"},{"text":"other","index":1}],
			"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEngine_LoadAndComplete(t *testing.T) {
	var got map[string]any
	srv := fakeLlamaServer(t, &got)
	e := NewOpenAI(srv.URL+"/v1/", "")
	if e.Name() != "openai" {
		t.Fatalf("name=%q", e.Name())
	}
	m, err := e.Load(context.Background(), "/models/other.gguf", LoadParams{ContextSize: 2048})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer m.Close()
	resp, err := m.Complete(context.Background(), "def fibon", CompleteParams{MaxTokens: 16})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(resp.Choices) != 2 || resp.Choices[0].Text != "acci(n):" || resp.Choices[0].FinishReason != "length" {
		t.Fatalf("unexpected choices: %+v", resp.Choices)
	}
	if resp.Usage != (types.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}) {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
	if got["prompt"] != "def fibon" || got["max_tokens"] != float64(16) {
		t.Fatalf("unexpected request body: %v", got)
	}
	// Unknown model name falls back to the id the server reports.
	if got["model"] != "served.gguf" {
		t.Fatalf("model=%v", got["model"])
	}
	if echo, ok := got["echo"]; ok && echo != false {
		t.Fatalf("echo should be disabled, got %v", echo)
	}
	if _, ok := got["seed"]; ok {
		t.Fatalf("zero seed should not be sent: %v", got)
	}
}

func TestOpenAIEngine_ForwardsSeed(t *testing.T) {
	var got map[string]any
	srv := fakeLlamaServer(t, &got)
	m, err := NewOpenAI(srv.URL+"/v1", "").Load(context.Background(), "served.gguf", LoadParams{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer m.Close()
	if _, err := m.Complete(context.Background(), "x", CompleteParams{MaxTokens: 4, Seed: 42, TopK: 40}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got["seed"] != float64(42) {
		t.Fatalf("seed=%v", got["seed"])
	}
	if _, ok := got["top_k"]; ok {
		t.Fatalf("top_k has no completion request field: %v", got)
	}
}

func TestOpenAIEngine_LoadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	if _, err := NewOpenAI(url+"/v1", "").Load(context.Background(), "m.gguf", LoadParams{}); err == nil {
		t.Fatalf("expected error for unreachable server")
	}
	if _, err := NewOpenAI("", "").Load(context.Background(), "m.gguf", LoadParams{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestOpenAIEngine_CompleteAfterClose(t *testing.T) {
	srv := fakeLlamaServer(t, nil)
	m, err := NewOpenAI(srv.URL+"/v1", "").Load(context.Background(), "served.gguf", LoadParams{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = m.Close()
	if _, err := m.Complete(context.Background(), "x", CompleteParams{MaxTokens: 1}); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"llama", "", "openai"} {
		if _, err := New(name, Options{ServerURL: "http://x/v1"}); err != nil {
			t.Fatalf("%q: %v", name, err)
		}
	}
	if _, err := New("gpt", Options{}); err == nil {
		t.Fatalf("expected unknown engine error")
	}
}

func TestDependencyUnavailable(t *testing.T) {
	err := ErrDependencyUnavailable("missing")
	if !IsDependencyUnavailable(err) || err.Error() != "missing" {
		t.Fatalf("unexpected: %v", err)
	}
	if IsDependencyUnavailable(errors.New("missing")) {
		t.Fatalf("plain error misclassified")
	}
}
