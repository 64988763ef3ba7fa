package completer

import (
	"context"
	"time"

	"localllm/internal/engine"
	"localllm/pkg/types"
)

// Transform forwards prompt and maxTokens to the loaded model with echo
// disabled and returns the text of the first choice.
func (c *Completer) Transform(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := c.validate(maxTokens); err != nil {
		completionsTotal.WithLabelValues(resultLabel(err)).Inc()
		return "", err
	}
	if text, ok := c.cache.get(prompt, maxTokens); ok {
		cacheHitsTotal.Inc()
		completionsTotal.WithLabelValues("cached").Inc()
		return text, nil
	}
	resp, err := c.run(ctx, prompt, engine.CompleteParams{MaxTokens: maxTokens, Echo: false})
	if err != nil {
		return "", err
	}
	text := resp.Choices[0].Text
	c.cache.set(prompt, maxTokens, text)
	return text, nil
}

// Complete runs Transform with the completion token budget.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.Transform(ctx, prompt, c.cfg.CompletionTokens)
}

// Generate runs Transform with the generation token budget.
func (c *Completer) Generate(ctx context.Context, prompt string) (string, error) {
	return c.Transform(ctx, prompt, c.cfg.GenerationTokens)
}

// CompleteRequest serves an OpenAI-style completion request and returns the
// full engine response. A zero MaxTokens uses the completion budget.
func (c *Completer) CompleteRequest(ctx context.Context, req types.CompletionRequest) (types.CompletionResponse, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.CompletionTokens
	}
	if err := c.validate(req.MaxTokens); err != nil {
		completionsTotal.WithLabelValues(resultLabel(err)).Inc()
		return types.CompletionResponse{}, err
	}
	resp, err := c.run(ctx, req.Prompt, engine.CompleteParams{
		MaxTokens:   req.MaxTokens,
		Echo:        req.Echo,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
		TopK:        req.TopK,
		Stop:        req.Stop,
		Seed:        req.Seed,
	})
	if err != nil {
		return types.CompletionResponse{}, err
	}
	if resp.Object == "" {
		resp.Object = "text_completion"
	}
	if resp.Model == "" {
		resp.Model = c.modelName()
	}
	return resp, nil
}

func (c *Completer) validate(maxTokens int) error {
	if !c.Loaded() {
		return ErrNotLoaded
	}
	if maxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if maxTokens > c.cfg.Load.ContextSize {
		return newContextExceeded(maxTokens, c.cfg.Load.ContextSize)
	}
	return nil
}

// run admits the request and calls the engine. Engine errors are returned as-is.
func (c *Completer) run(ctx context.Context, prompt string, p engine.CompleteParams) (types.CompletionResponse, error) {
	release, err := c.beginGeneration(ctx)
	if err != nil {
		completionsTotal.WithLabelValues(resultLabel(err)).Inc()
		if IsTooBusy(err) {
			c.log.Warn().Str("event", "backpressure").Int("queue_len", len(c.queueCh)).Msg("generation rejected")
		}
		return types.CompletionResponse{}, err
	}
	defer release()

	c.mu.RLock()
	m := c.model
	c.mu.RUnlock()
	if m == nil {
		// closed while queued
		completionsTotal.WithLabelValues("not_loaded").Inc()
		return types.CompletionResponse{}, ErrNotLoaded
	}

	start := time.Now()
	resp, err := m.Complete(ctx, prompt, p)
	dur := time.Since(start)
	completionDuration.Observe(dur.Seconds())
	if err != nil {
		completionsTotal.WithLabelValues("error").Inc()
		c.log.Error().Err(err).Str("event", "complete_error").Dur("dur", dur).Msg("completion failed")
		return types.CompletionResponse{}, err
	}
	if len(resp.Choices) == 0 {
		completionsTotal.WithLabelValues("error").Inc()
		return types.CompletionResponse{}, ErrNoChoices
	}
	completionsTotal.WithLabelValues("ok").Inc()
	c.completions.Add(1)
	c.cfg.Publisher.Publish(Event{Name: "complete", Model: c.modelName(), Fields: map[string]any{"max_tokens": p.MaxTokens, "dur": dur}})
	c.log.Debug().Str("event", "complete").Int("max_tokens", p.MaxTokens).Int("prompt_len", len(prompt)).Dur("dur", dur).Msg("completion done")
	return resp, nil
}
