// Package cli wires configuration, the completer and its surfaces into the
// localllm command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"localllm/internal/completer"
	"localllm/internal/config"
	"localllm/internal/engine"
	"localllm/internal/envprofile"
)

// newEngine is replaced in tests.
var newEngine = engine.New

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath  string
	logLevel    string
	venv        string
	engine      string
	modelPath   string
	modelsDir   string
	model       string
	contextSize int
	threads     int
	gpuLayers   int
	f16Memory   bool
	serverURL   string
	cacheTTL    int
}

// NewRootCommand builds the command tree. Output is written to out; logs go to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "localllm",
		Short: "Load a local GGUF model and serve single-shot text completions",
		Long: `localllm loads a GGUF checkpoint through llama.cpp (in-process or via an
OpenAI-compatible llama-server) and exposes one operation: complete a prompt
up to a token budget and return the text of the first choice.

Commands:
  complete  run one completion and print the text
  serve     expose /v1/completions over HTTP
  env       apply a virtualenv activation profile and print it
  models    list GGUF files in the models directory`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", os.Getenv("LOCALLLM_CONFIG"), "config file (.yaml, .json, .toml)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	f.StringVar(&opts.venv, "venv", "", "virtualenv root to activate before loading the model")
	f.StringVar(&opts.engine, "engine", "", "inference engine: llama or openai")
	f.StringVarP(&opts.modelPath, "model-path", "m", "", "path to a GGUF model file")
	f.StringVar(&opts.modelsDir, "models-dir", "", "directory to scan for *.gguf model files")
	f.StringVar(&opts.model, "model", "", "model name resolved in --models-dir")
	f.IntVar(&opts.contextSize, "n-ctx", 0, "context window size (default 2048)")
	f.IntVar(&opts.threads, "n-threads", 0, "CPU threads (default 8)")
	f.IntVar(&opts.gpuLayers, "n-gpu-layers", 0, "layers offloaded to the GPU (default 35)")
	f.BoolVar(&opts.f16Memory, "f16-memory", false, "use f16 for the KV cache")
	f.StringVar(&opts.serverURL, "server-url", "", "OpenAI-compatible base URL for the openai engine")
	f.IntVar(&opts.cacheTTL, "cache-ttl", 0, "cache completions for this many seconds (0 disables)")

	root.AddCommand(
		newCompleteCommand(opts),
		newServeCommand(opts),
		newEnvCommand(opts),
		newModelsCommand(opts),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// loadConfig reads the config file, if any, and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("log-level", func() { cfg.LogLevel = opts.logLevel })
	set("venv", func() { cfg.Venv = opts.venv })
	set("engine", func() { cfg.Engine = opts.engine })
	set("model-path", func() { cfg.ModelPath = opts.modelPath })
	set("models-dir", func() { cfg.ModelsDir = opts.modelsDir })
	set("model", func() { cfg.Model = opts.model })
	set("n-ctx", func() { cfg.ContextSize = opts.contextSize })
	set("n-threads", func() { cfg.Threads = config.Int(opts.threads) })
	set("n-gpu-layers", func() { cfg.GPULayers = config.Int(opts.gpuLayers) })
	set("f16-memory", func() { cfg.F16Memory = opts.f16Memory })
	set("server-url", func() { cfg.ServerURL = opts.serverURL })
	set("cache-ttl", func() { cfg.CacheTTLSeconds = opts.cacheTTL })
	cfg.ApplyDefaults()
	return cfg, nil
}

func newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

// activateVenv applies cfg.Venv when set. Failure is reported, not fatal.
func activateVenv(cfg config.Config, log zerolog.Logger) {
	if cfg.Venv == "" {
		return
	}
	envprofile.NewActivator(log).Activate(cfg.Venv)
}

// buildCompleter validates cfg and constructs an unloaded Completer.
func buildCompleter(cfg config.Config, log zerolog.Logger) (*completer.Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	eng, err := newEngine(cfg.Engine, engine.Options{ServerURL: cfg.ServerURL, APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	return completer.New(completer.Config{
		Engine:    eng,
		ModelPath: cfg.ModelPath,
		ModelsDir: cfg.ModelsDir,
		Model:     cfg.Model,
		Load: engine.LoadParams{
			ContextSize: cfg.ContextSize,
			F16Memory:   cfg.F16Memory,
		},
		Threads:          cfg.Threads,
		GPULayers:        cfg.GPULayers,
		CompletionTokens: cfg.MaxNewTokens.Completion,
		GenerationTokens: cfg.MaxNewTokens.Generation,
		MaxQueueDepth:    cfg.MaxQueueDepth,
		MaxWait:          time.Duration(cfg.MaxWaitSeconds) * time.Second,
		CacheTTL:         time.Duration(cfg.CacheTTLSeconds) * time.Second,
		Logger:           &log,
	}), nil
}
