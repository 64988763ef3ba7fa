package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Engine names accepted in Config.Engine.
const (
	EngineLlama  = "llama"
	EngineOpenAI = "openai"
)

// Defaults applied by ApplyDefaults when the corresponding field is unset.
const (
	DefaultAddr             = ":8080"
	DefaultContextSize      = 2048
	DefaultThreads          = 8
	DefaultGPULayers        = 35
	DefaultCompletionTokens = 32
	DefaultGenerationTokens = 256
	DefaultMaxQueueDepth    = 32
	DefaultMaxWaitSeconds   = 30
	DefaultLogLevel         = "info"
	DefaultServerURL        = "http://127.0.0.1:8081/v1"
)

// MaxNewTokens splits the token budget by request kind.
type MaxNewTokens struct {
	Completion int `json:"completion" yaml:"completion" toml:"completion"`
	Generation int `json:"generation" yaml:"generation" toml:"generation"`
}

// Config holds runtime parameters for the completer and its surfaces.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// Venv is an optional virtual environment root activated before setup.
	Venv string `json:"venv" yaml:"venv" toml:"venv"`

	Engine    string `json:"engine" yaml:"engine" toml:"engine"`
	ModelPath string `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Model     string `json:"model" yaml:"model" toml:"model"`

	ContextSize int `json:"n_ctx" yaml:"n_ctx" toml:"n_ctx"`
	// Threads and GPULayers are nil when absent; an explicit 0 is kept.
	Threads   *int `json:"n_threads" yaml:"n_threads" toml:"n_threads"`
	GPULayers *int `json:"n_gpu_layers" yaml:"n_gpu_layers" toml:"n_gpu_layers"`
	F16Memory bool `json:"f16_memory" yaml:"f16_memory" toml:"f16_memory"`

	MaxNewTokens MaxNewTokens `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`

	// OpenAI-compatible engine (llama-server).
	ServerURL             string `json:"server_url" yaml:"server_url" toml:"server_url"`
	APIKey                string `json:"api_key" yaml:"api_key" toml:"api_key"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`

	MaxQueueDepth   int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds  int `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	CacheTTLSeconds int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`

	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Engine == "" {
		c.Engine = EngineLlama
	}
	if c.ContextSize == 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.Threads == nil {
		c.Threads = Int(DefaultThreads)
	}
	if c.GPULayers == nil {
		c.GPULayers = Int(DefaultGPULayers)
	}
	if c.MaxNewTokens.Completion == 0 {
		c.MaxNewTokens.Completion = DefaultCompletionTokens
	}
	if c.MaxNewTokens.Generation == 0 {
		c.MaxNewTokens.Generation = DefaultGenerationTokens
	}
	if c.ServerURL == "" && c.Engine == EngineOpenAI {
		c.ServerURL = DefaultServerURL
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitSeconds == 0 {
		c.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineLlama, EngineOpenAI:
	default:
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineLlama, EngineOpenAI)
	}
	if strings.TrimSpace(c.ModelPath) == "" && strings.TrimSpace(c.Model) == "" {
		return errors.New("model_path or model is required")
	}
	if c.ModelPath == "" && c.ModelsDir == "" {
		return errors.New("models_dir is required when model is set by name")
	}
	if c.ContextSize <= 0 {
		return errors.New("n_ctx must be non zero")
	}
	if negative(c.Threads) || negative(c.GPULayers) {
		return errors.New("n_threads and n_gpu_layers must not be negative")
	}
	if c.MaxNewTokens.Completion < 0 || c.MaxNewTokens.Generation < 0 {
		return errors.New("max_new_tokens must not be negative")
	}
	if c.Engine == EngineOpenAI && strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url is required for the openai engine")
	}
	return nil
}

// Int returns a pointer to v, for the optional integer fields of Config.
func Int(v int) *int { return &v }

// IntValue returns *p, or 0 when p is nil.
func IntValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func negative(p *int) bool { return p != nil && *p < 0 }
