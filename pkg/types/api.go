package types

// CompletionRequest is the payload of POST /v1/completions.
type CompletionRequest struct {
	// Optional model identifier; ignored when a single model is loaded.
	// example: deepseek-coder-6.7b-base.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"deepseek-coder-6.7b-base.Q4_K_M.gguf"`
	// Required prompt text to complete.
	// example: def fibon
	Prompt string `json:"prompt" example:"def fibon"`
	// Maximum number of new tokens to generate. Must be positive.
	// example: 32
	MaxTokens int `json:"max_tokens" example:"32"`
	// If true the prompt is prepended to the returned text.
	Echo bool `json:"echo,omitempty"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences.
	// example: ["<|EOT|>"]
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility; 0 lets the engine choose.
	Seed int `json:"seed,omitempty"`
}

// Choice is one generated completion.
type Choice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Usage contains token accounting when the engine reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse mirrors the OpenAI text completion response shape.
type CompletionResponse struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Lifecycle state of the model handle: unloaded, loading, loaded, error.
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Model currently held by the handle, if any.
	Model *Model `json:"model,omitempty"`
	// Engine backing the handle (llama, openai).
	// example: llama
	Engine string `json:"engine" example:"llama"`
	// Whether the engine is compiled into this binary.
	EngineBuilt bool `json:"engine_built"`
	// Context window the model was loaded with.
	// example: 2048
	ContextSize int `json:"context_size" example:"2048"`
	// Current number of queued generations.
	QueueLen int `json:"queue_len"`
	// Number of in-flight generations (0 or 1).
	Inflight int `json:"inflight"`
	// Maximum queued generations before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last error observed during setup.
	LastError string `json:"last_error,omitempty"`
	// Total completions served.
	CompletionsTotal uint64 `json:"completions_total"`
	// Uptime in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// ModelCard is one entry of GET /v1/models.
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// ModelList mirrors the OpenAI model list response shape.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}
