package completer

import (
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/engine"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultContextSize      = 2048
	defaultThreads          = 8
	defaultGPULayers        = 35
	defaultCompletionTokens = 32
	defaultGenerationTokens = 256
	defaultMaxQueueDepth    = 32
	defaultMaxWait          = 30 * time.Second
)

// Config encapsulates all tunables for Completer construction.
type Config struct {
	Engine engine.Engine
	// ModelPath is used as-is when set; otherwise Model is resolved in ModelsDir.
	ModelPath string
	ModelsDir string
	Model     string

	// Load.Threads and Load.GPULayers are taken from Threads and GPULayers.
	Load engine.LoadParams
	// Threads and GPULayers fall back to defaults when nil; an explicit 0
	// reaches the engine unchanged.
	Threads   *int
	GPULayers *int

	// Token budgets used by Complete and Generate.
	CompletionTokens int
	GenerationTokens int

	MaxQueueDepth int
	MaxWait       time.Duration
	// CacheTTL enables the response cache when positive.
	CacheTTL time.Duration

	Logger    *zerolog.Logger
	Publisher EventPublisher
}

func (cfg *Config) applyDefaults() {
	if cfg.Engine == nil {
		cfg.Engine = engine.NewLlama()
	}
	if cfg.Load.ContextSize == 0 {
		cfg.Load.ContextSize = defaultContextSize
	}
	cfg.Load.Threads = intOr(cfg.Threads, defaultThreads)
	cfg.Load.GPULayers = intOr(cfg.GPULayers, defaultGPULayers)
	if cfg.CompletionTokens <= 0 {
		cfg.CompletionTokens = defaultCompletionTokens
	}
	if cfg.GenerationTokens <= 0 {
		cfg.GenerationTokens = defaultGenerationTokens
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
