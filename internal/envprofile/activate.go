package envprofile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"localllm/internal/common/fsutil"
)

// scriptTimeout bounds how long an activation script may run.
const scriptTimeout = 5 * time.Second

// Activator locates and applies virtual environment activation scripts.
// Zero-value fields fall back to the running process.
type Activator struct {
	GOOS     string
	Environ  func() []string
	Setenv   func(key, value string) error
	Unsetenv func(key string) error
	Log      zerolog.Logger
}

// NewActivator returns an Activator bound to the current process that
// reports diagnostics on log.
func NewActivator(log zerolog.Logger) *Activator {
	return &Activator{Log: log}
}

func (a *Activator) goos() string {
	if a.GOOS != "" {
		return a.GOOS
	}
	return runtime.GOOS
}

func (a *Activator) environ() []string {
	if a.Environ != nil {
		return a.Environ()
	}
	return os.Environ()
}

// Load parses the activation script under root without touching the process
// environment. A missing script yields an error wrapping ErrNotFound.
func (a *Activator) Load(root string) (*Profile, error) {
	dir, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	script := ScriptPath(dir, a.goos())
	if !fsutil.IsRegularFile(script) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	src, err := os.ReadFile(script)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), scriptTimeout)
	defer cancel()
	p, err := Parse(ctx, src, script, a.environ())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", script, err)
	}
	p.Root = dir
	return p, nil
}

// Activate applies the activation profile under root to the environment and
// reports success. Failures are logged, never returned.
func (a *Activator) Activate(root string) bool {
	p, err := a.Load(root)
	if err != nil {
		ev := a.Log.Error().Str("venv", root).Str("script", ScriptPath(root, a.goos()))
		if errors.Is(err, ErrNotFound) {
			ev.Msgf("virtualenv not found: %s", root)
		} else {
			ev.Err(err).Msg("virtualenv activation failed")
		}
		return false
	}
	setenv, unsetenv := a.Setenv, a.Unsetenv
	if setenv == nil {
		setenv = os.Setenv
	}
	if unsetenv == nil {
		unsetenv = os.Unsetenv
	}
	if err := p.Apply(setenv, unsetenv); err != nil {
		a.Log.Error().Str("venv", root).Err(err).Msg("virtualenv activation failed")
		return false
	}
	a.Log.Debug().Str("venv", root).Int("vars", len(p.Vars)).Strs("refused", p.Refused).Msg("virtualenv activated")
	return true
}

// Activate applies the activation profile under root to the current process,
// writing diagnostics to stderr.
func Activate(root string) bool {
	return NewActivator(zerolog.New(os.Stderr).With().Timestamp().Logger()).Activate(root)
}
