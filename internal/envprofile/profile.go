// Package envprofile applies a virtual environment's activation profile to
// the running process. The activation script runs in an embedded shell
// interpreter: builtins, conditionals and functions are evaluated, but no
// external command is ever executed and no file other than /dev/null can be
// opened.
package envprofile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// ErrNotFound is returned by Load when the activation script does not exist.
var ErrNotFound = errors.New("virtualenv not found")

// Var is one exported variable mutation from an activation script.
type Var struct {
	Name  string
	Value string
	// Unset removes the variable instead of setting it.
	Unset bool
}

// Profile is the set of environment mutations an activation script
// performs, sorted by variable name.
type Profile struct {
	Root   string
	Script string
	Vars   []Var
	// Refused lists external commands the script tried to run, in order.
	// They exit with status 127 and produce no output.
	Refused []string
}

// ScriptPath returns the activation script location for a virtual
// environment root on the given platform.
func ScriptPath(root, goos string) string {
	if goos == "windows" {
		return filepath.Join(root, "Scripts", "activate")
	}
	return filepath.Join(root, "bin", "activate")
}

// Parse runs the activation script read from src against environ
// ("KEY=VALUE" pairs) and returns how it changed the exported variables.
// Variables already present in environ count as exported, as they would in
// a shell. A non-zero exit status of the script is not an error.
func Parse(ctx context.Context, src []byte, name string, environ []string) (*Profile, error) {
	f, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	p := &Profile{Script: name}
	var mu sync.Mutex
	refuse := func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			mu.Lock()
			p.Refused = append(p.Refused, args[0])
			mu.Unlock()
			return interp.NewExitStatus(127)
		}
	}
	r, err := interp.New(
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, io.Discard, io.Discard),
		interp.ExecHandlers(refuse),
		interp.OpenHandler(openDevNullOnly),
	)
	if err != nil {
		return nil, err
	}
	if err := r.Run(ctx, f); err != nil {
		if _, ok := interp.IsExitStatus(err); !ok {
			return nil, fmt.Errorf("run %s: %w", name, err)
		}
	}
	p.Vars = exportedChanges(environ, r.Vars)
	return p, nil
}

// exportedChanges reports variables whose exported value differs from
// environ, plus variables of environ the script unset.
func exportedChanges(environ []string, vars map[string]expand.Variable) []Var {
	before := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			before[k] = v
		}
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Var
	for _, name := range names {
		vr := vars[name]
		old, had := before[name]
		switch {
		case !vr.IsSet():
			if had {
				out = append(out, Var{Name: name, Unset: true})
			}
		case vr.Exported && vr.Kind == expand.String:
			if !had || old != vr.Str {
				out = append(out, Var{Name: name, Value: vr.Str})
			}
		}
	}
	return out
}

// openDevNullOnly serves redirections such as "2> /dev/null" and refuses
// every other path.
func openDevNullOnly(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		return devNull{}, nil
	}
	return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrPermission}
}

type devNull struct{}

func (devNull) Read([]byte) (int, error)    { return 0, io.EOF }
func (devNull) Write(b []byte) (int, error) { return len(b), nil }
func (devNull) Close() error                { return nil }

// Apply writes the profile's mutations using setenv and unsetenv.
func (p *Profile) Apply(setenv func(key, value string) error, unsetenv func(key string) error) error {
	for _, v := range p.Vars {
		var err error
		if v.Unset {
			err = unsetenv(v.Name)
		} else {
			err = setenv(v.Name, v.Value)
		}
		if err != nil {
			return fmt.Errorf("apply %s: %w", v.Name, err)
		}
	}
	return nil
}

// ApplyProcess applies the profile to the current process environment.
func (p *Profile) ApplyProcess() error { return p.Apply(os.Setenv, os.Unsetenv) }
