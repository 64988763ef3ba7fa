package engine

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"localllm/pkg/types"
)

// openAIEngine talks to an OpenAI-compatible llama.cpp server (llama-server).
// The server owns the weights; Load only checks reachability and picks the
// model id to send.
type openAIEngine struct {
	baseURL string
	apiKey  string
	// HTTPClient overrides the transport; nil uses http.DefaultClient.
	httpClient *http.Client
}

// NewOpenAI returns an engine for the server at baseURL (e.g. http://127.0.0.1:8081/v1).
func NewOpenAI(baseURL, apiKey string) Engine {
	return &openAIEngine{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (e *openAIEngine) Name() string { return "openai" }

type openAIModel struct {
	mu     sync.Mutex
	client *openai.Client
	id     string
	closed bool
}

func (e *openAIEngine) Load(ctx context.Context, modelPath string, p LoadParams) (Model, error) {
	if strings.TrimSpace(e.baseURL) == "" {
		return nil, errors.New("openai engine: empty server url")
	}
	cfg := openai.DefaultConfig(e.apiKey)
	cfg.BaseURL = e.baseURL
	if e.httpClient != nil {
		cfg.HTTPClient = e.httpClient
	}
	client := openai.NewClientWithConfig(cfg)
	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	id := filepath.Base(strings.TrimSpace(modelPath))
	found := false
	for _, m := range list.Models {
		if m.ID == id || m.ID == modelPath {
			id, found = m.ID, true
			break
		}
	}
	// llama-server serves a single model; fall back to what it reports.
	if !found && len(list.Models) > 0 {
		id = list.Models[0].ID
	}
	return &openAIModel{client: client, id: id}, nil
}

func (m *openAIModel) Complete(ctx context.Context, prompt string, p CompleteParams) (types.CompletionResponse, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return types.CompletionResponse{}, errors.New("openai model closed")
	}
	req := openai.CompletionRequest{
		Model:       m.id,
		Prompt:      prompt,
		MaxTokens:   p.MaxTokens,
		Echo:        p.Echo,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		Stop:        p.Stop,
	}
	// TopK has no field in the OpenAI completion request and is not sent.
	if p.Seed != 0 {
		seed := p.Seed
		req.Seed = &seed
	}
	resp, err := m.client.CreateCompletion(ctx, req)
	if err != nil {
		return types.CompletionResponse{}, err
	}
	out := types.CompletionResponse{
		ID:      resp.ID,
		Object:  resp.Object,
		Created: resp.Created,
		Model:   resp.Model,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	out.Choices = make([]types.Choice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		out.Choices = append(out.Choices, types.Choice{Text: c.Text, Index: c.Index, FinishReason: c.FinishReason})
	}
	return out, nil
}

func (m *openAIModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
