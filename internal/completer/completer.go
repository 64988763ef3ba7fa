package completer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/common/fsutil"
	"localllm/internal/engine"
	"localllm/internal/registry"
	"localllm/pkg/types"
)

// State values reported by Status.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateError    State = "error"
)

// Completer holds one model handle and serializes generations against it.
type Completer struct {
	cfg Config
	log zerolog.Logger

	mu      sync.RWMutex
	state   State
	model   engine.Model
	info    *types.Model
	lastErr string

	// setupMu serializes Setup and Close.
	setupMu sync.Mutex

	genCh   chan struct{}
	queueCh chan struct{}

	cache       *responseCache
	startTime   time.Time
	completions atomic.Uint64
}

// New constructs a Completer with defaults applied. No model is loaded until Setup.
func New(cfg Config) *Completer {
	cfg.applyDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	c := &Completer{
		cfg:       cfg,
		log:       log.With().Str("component", "completer").Logger(),
		state:     StateUnloaded,
		genCh:     make(chan struct{}, 1),
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		startTime: time.Now(),
	}
	if cfg.CacheTTL > 0 {
		c.cache = newResponseCache(cfg.CacheTTL)
	}
	return c
}

// ModelPath resolves the configured model file: ModelPath when set, otherwise
// Model looked up in ModelsDir.
func (c *Completer) ModelPath() (string, error) {
	if c.cfg.ModelPath != "" {
		return fsutil.ResolvePath(c.cfg.ModelPath)
	}
	if c.cfg.Model == "" {
		return "", fmt.Errorf("%w: model_path or model is required", ErrInvalidConfig)
	}
	dir, err := fsutil.ResolvePath(c.cfg.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("models_dir: %w", err)
	}
	m, err := registry.Resolve(dir, c.cfg.Model)
	if err != nil {
		return "", err
	}
	return m.Path, nil
}

// Setup loads the configured model and stores the handle, replacing and
// closing any previous one. Loader errors are returned unchanged.
func (c *Completer) Setup(ctx context.Context) error {
	if c.cfg.Load.ContextSize <= 0 {
		return fmt.Errorf("%w: n_ctx must be positive", ErrInvalidConfig)
	}
	path, err := c.ModelPath()
	if err != nil {
		c.fail(err)
		return err
	}

	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	c.mu.Lock()
	prevState := c.state
	c.state = StateLoading
	c.mu.Unlock()

	eng := c.cfg.Engine.Name()
	c.cfg.Publisher.Publish(Event{Name: "load_start", Model: path, Fields: map[string]any{"engine": eng}})
	c.log.Info().Str("event", "load_start").Str("model", path).Str("engine", eng).
		Int("n_ctx", c.cfg.Load.ContextSize).Int("n_threads", c.cfg.Load.Threads).
		Int("n_gpu_layers", c.cfg.Load.GPULayers).Msg("loading model")

	start := time.Now()
	m, err := c.cfg.Engine.Load(ctx, path, c.cfg.Load)
	if err != nil {
		loadsTotal.WithLabelValues(eng, "error").Inc()
		c.cfg.Publisher.Publish(Event{Name: "load_error", Model: path, Fields: map[string]any{"error": err.Error()}})
		c.log.Error().Err(err).Str("event", "load_error").Str("model", path).Msg("model load failed")
		c.mu.Lock()
		c.lastErr = err.Error()
		if c.model != nil {
			// a failed reload keeps the previous handle serving
			c.state = prevState
		} else {
			c.state = StateError
		}
		c.mu.Unlock()
		return err
	}
	loadsTotal.WithLabelValues(eng, "ok").Inc()

	info := &types.Model{ID: filepath.Base(path), Path: path, Quant: registry.ParseQuant(filepath.Base(path))}
	if st, serr := os.Stat(path); serr == nil {
		info.SizeBytes = st.Size()
	}

	c.mu.Lock()
	prev := c.model
	c.model = m
	c.info = info
	c.state = StateLoaded
	c.lastErr = ""
	c.mu.Unlock()
	c.cache.purge()

	if prev != nil {
		// wait out a generation still running on the old handle
		c.genCh <- struct{}{}
		<-c.genCh
		if cerr := prev.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("closing previous model")
		}
	}
	dur := time.Since(start)
	c.cfg.Publisher.Publish(Event{Name: "load_ready", Model: path, Fields: map[string]any{"dur": dur}})
	c.log.Info().Str("event", "load_ready").Str("model", path).Dur("dur", dur).Msg("model loaded")
	return nil
}

func (c *Completer) fail(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	if c.model == nil {
		c.state = StateError
	}
	c.mu.Unlock()
	c.log.Error().Err(err).Str("event", "load_error").Msg("model path resolution failed")
}

// Loaded reports whether a model handle is available.
func (c *Completer) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Close frees the model handle and stops the cache janitor. The Completer may
// be set up again afterwards. A Setup in progress finishes first, so the
// handle it stores is the one closed.
func (c *Completer) Close() error {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()
	// wait for the in-flight generation before freeing native memory
	c.genCh <- struct{}{}
	defer func() { <-c.genCh }()

	name := c.modelName()
	c.mu.Lock()
	m := c.model
	c.model = nil
	c.info = nil
	c.state = StateUnloaded
	c.mu.Unlock()
	c.cache.purge()

	if m == nil {
		return nil
	}
	c.cfg.Publisher.Publish(Event{Name: "unload", Model: name})
	c.log.Info().Str("event", "unload").Msg("model closed")
	return m.Close()
}

// Shutdown closes the model and releases background resources permanently.
func (c *Completer) Shutdown() error {
	err := c.Close()
	c.cache.stop()
	return err
}

func (c *Completer) modelName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info != nil {
		return c.info.ID
	}
	return filepath.Base(c.cfg.ModelPath)
}
