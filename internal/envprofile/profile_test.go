package envprofile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const venvActivate = `# This file must be used with "source bin/activate" *from bash*
# you cannot run it directly

deactivate () {
    if [ -n "${_OLD_VIRTUAL_PATH:-}" ] ; then
        PATH="${_OLD_VIRTUAL_PATH:-}"
        export PATH
        unset _OLD_VIRTUAL_PATH
    fi
}

# unset irrelevant variables
deactivate nondestructive

case "$(uname)" in
    CYGWIN*|MSYS*|MINGW*)
        VIRTUAL_ENV=$(cygpath "@ROOT@")
        ;;
    *)
        VIRTUAL_ENV="@ROOT@"
        ;;
esac
export VIRTUAL_ENV

_OLD_VIRTUAL_PATH="$PATH"
PATH="$VIRTUAL_ENV/bin:$PATH"
export PATH

if [ -n "${PYTHONHOME:-}" ] ; then
    _OLD_VIRTUAL_PYTHONHOME="${PYTHONHOME:-}"
    unset PYTHONHOME
fi

VIRTUAL_ENV_PROMPT="(venv) "
export VIRTUAL_ENV_PROMPT
hash -r 2> /dev/null
`

// venvActivate312 is the layout written by Python 3.12's venv module: the
// root is assigned inside an if/else on $OSTYPE.
const venvActivate312 = `# This file must be used with "source bin/activate" *from bash*
# You cannot run it directly

deactivate () {
    # reset old environment variables
    if [ -n "${_OLD_VIRTUAL_PATH:-}" ] ; then
        PATH="${_OLD_VIRTUAL_PATH:-}"
        export PATH
        unset _OLD_VIRTUAL_PATH
    fi
    if [ -n "${_OLD_VIRTUAL_PYTHONHOME:-}" ] ; then
        PYTHONHOME="${_OLD_VIRTUAL_PYTHONHOME:-}"
        export PYTHONHOME
        unset _OLD_VIRTUAL_PYTHONHOME
    fi

    # Call hash to forget past commands. Without forgetting
    # past commands the $PATH changes we made may not be respected
    hash -r 2> /dev/null

    unset VIRTUAL_ENV
    unset VIRTUAL_ENV_PROMPT
    if [ ! "${1:-}" = "nondestructive" ] ; then
    # Self destruct!
        unset -f deactivate
    fi
}

# unset irrelevant variables
deactivate nondestructive

# on Windows, a path can contain colons and backslashes and has to be converted:
if [ "${OSTYPE:-}" = "cygwin" ] || [ "${OSTYPE:-}" = "msys" ] ; then
    # transform D:\path\to\venv to /d/path/to/venv on MSYS
    # and to /cygdrive/d/path/to/venv on Cygwin
    export VIRTUAL_ENV=$(cygpath "@ROOT@")
else
    # use the path as-is
    export VIRTUAL_ENV="@ROOT@"
fi

_OLD_VIRTUAL_PATH="$PATH"
PATH="$VIRTUAL_ENV/bin:$PATH"
export PATH

# unset PYTHONHOME if set
# this will fail if PYTHONHOME is set to the empty string (which is bad anyway)
# could use ` + "`if (set -u; : $PYTHONHOME) ;`" + ` in bash
if [ -n "${PYTHONHOME:-}" ] ; then
    _OLD_VIRTUAL_PYTHONHOME="${PYTHONHOME:-}"
    unset PYTHONHOME
fi

if [ -z "${VIRTUAL_ENV_DISABLE_PROMPT:-}" ] ; then
    _OLD_VIRTUAL_PS1="${PS1:-}"
    PS1="(venv) ${PS1:-}"
    export PS1
    VIRTUAL_ENV_PROMPT="(venv) "
    export VIRTUAL_ENV_PROMPT
fi

# Call hash to forget past commands. Without forgetting
# past commands the $PATH changes we made may not be respected
hash -r 2> /dev/null
`

func writeVenv(t *testing.T, goos string) string {
	t.Helper()
	return writeVenvScript(t, goos, venvActivate)
}

func writeVenvScript(t *testing.T, goos, tmpl string) string {
	t.Helper()
	root := t.TempDir()
	script := ScriptPath(root, goos)
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	src := strings.ReplaceAll(tmpl, "@ROOT@", root)
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return root
}

type fakeEnv struct {
	vals map[string]string
}

func newFakeEnv(pairs ...string) *fakeEnv {
	e := &fakeEnv{vals: map[string]string{}}
	for _, kv := range pairs {
		k, v, _ := strings.Cut(kv, "=")
		e.vals[k] = v
	}
	return e
}

func (e *fakeEnv) environ() []string {
	out := make([]string, 0, len(e.vals))
	for k, v := range e.vals {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *fakeEnv) set(k, v string) error { e.vals[k] = v; return nil }
func (e *fakeEnv) unset(k string) error  { delete(e.vals, k); return nil }

func (e *fakeEnv) activator(goos string, log zerolog.Logger) *Activator {
	return &Activator{GOOS: goos, Environ: e.environ, Setenv: e.set, Unsetenv: e.unset, Log: log}
}

func TestScriptPath(t *testing.T) {
	if got := ScriptPath("/v", "linux"); got != filepath.Join("/v", "bin", "activate") {
		t.Fatalf("linux: %s", got)
	}
	if got := ScriptPath("/v", "darwin"); got != filepath.Join("/v", "bin", "activate") {
		t.Fatalf("darwin: %s", got)
	}
	if got := ScriptPath("/v", "windows"); got != filepath.Join("/v", "Scripts", "activate") {
		t.Fatalf("windows: %s", got)
	}
}

func TestActivate_AppliesExports(t *testing.T) {
	root := writeVenv(t, "linux")
	env := newFakeEnv("PATH=/usr/bin", "PYTHONHOME=/opt/py", "HOME=/home/u")
	var logBuf bytes.Buffer
	if !env.activator("linux", zerolog.New(&logBuf)).Activate(root) {
		t.Fatalf("activate failed: %s", logBuf.String())
	}
	if env.vals["VIRTUAL_ENV"] != root {
		t.Fatalf("VIRTUAL_ENV=%q", env.vals["VIRTUAL_ENV"])
	}
	if want := root + "/bin:/usr/bin"; env.vals["PATH"] != want {
		t.Fatalf("PATH=%q want %q", env.vals["PATH"], want)
	}
	if env.vals["VIRTUAL_ENV_PROMPT"] != "(venv) " {
		t.Fatalf("VIRTUAL_ENV_PROMPT=%q", env.vals["VIRTUAL_ENV_PROMPT"])
	}
	// shell-local variables stay out of the environment
	if _, ok := env.vals["_OLD_VIRTUAL_PATH"]; ok {
		t.Fatalf("unexported variable leaked")
	}
	if _, ok := env.vals["PYTHONHOME"]; ok {
		t.Fatalf("PYTHONHOME should be unset, got %q", env.vals["PYTHONHOME"])
	}
	if env.vals["HOME"] != "/home/u" {
		t.Fatalf("HOME changed")
	}
}

func TestActivate_Python312Layout(t *testing.T) {
	root := writeVenvScript(t, "linux", venvActivate312)
	env := newFakeEnv("PATH=/usr/bin", "PYTHONHOME=/py")
	var logBuf bytes.Buffer
	if !env.activator("linux", zerolog.New(&logBuf)).Activate(root) {
		t.Fatalf("activate failed: %s", logBuf.String())
	}
	if env.vals["VIRTUAL_ENV"] != root {
		t.Fatalf("VIRTUAL_ENV=%q want %q", env.vals["VIRTUAL_ENV"], root)
	}
	if want := root + "/bin:/usr/bin"; env.vals["PATH"] != want {
		t.Fatalf("PATH=%q want %q", env.vals["PATH"], want)
	}
	if _, ok := env.vals["PYTHONHOME"]; ok {
		t.Fatalf("PYTHONHOME should be unset")
	}
	if env.vals["VIRTUAL_ENV_PROMPT"] != "(venv) " || env.vals["PS1"] != "(venv) " {
		t.Fatalf("prompt vars: %v", env.vals)
	}
	for _, k := range []string{"_OLD_VIRTUAL_PATH", "_OLD_VIRTUAL_PYTHONHOME", "_OLD_VIRTUAL_PS1"} {
		if _, ok := env.vals[k]; ok {
			t.Fatalf("unexported %s leaked", k)
		}
	}
}

func TestActivate_WindowsLayout(t *testing.T) {
	root := writeVenv(t, "windows")
	env := newFakeEnv("PATH=/usr/bin")
	if !env.activator("windows", zerolog.Nop()).Activate(root) {
		t.Fatalf("activate failed")
	}
	if env.vals["VIRTUAL_ENV"] != root {
		t.Fatalf("VIRTUAL_ENV=%q", env.vals["VIRTUAL_ENV"])
	}
	// a Scripts/ layout is not found when the platform expects bin/
	if env.activator("linux", zerolog.Nop()).Activate(root) {
		t.Fatalf("expected failure for mismatched layout")
	}
}

func TestActivate_MissingScript(t *testing.T) {
	root := filepath.Join(t.TempDir(), "no-venv")
	env := newFakeEnv("PATH=/usr/bin")
	var logBuf bytes.Buffer
	if env.activator("linux", zerolog.New(&logBuf)).Activate(root) {
		t.Fatalf("expected failure")
	}
	out := logBuf.String()
	if !strings.Contains(out, "virtualenv not found") || !strings.Contains(out, filepath.Base(root)) {
		t.Fatalf("diagnostic does not name the path: %s", out)
	}
	if env.vals["PATH"] != "/usr/bin" || len(env.vals) != 1 {
		t.Fatalf("environment mutated: %v", env.vals)
	}
}

func TestLoad_NotFoundError(t *testing.T) {
	a := &Activator{GOOS: "linux", Environ: func() []string { return nil }}
	_, err := a.Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), ErrNotFound.Error()) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestActivate_ParseError(t *testing.T) {
	root := t.TempDir()
	script := ScriptPath(root, "linux")
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(script, []byte("if [ -n x ; then\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var logBuf bytes.Buffer
	env := newFakeEnv()
	if env.activator("linux", zerolog.New(&logBuf)).Activate(root) {
		t.Fatalf("expected failure on parse error")
	}
	if !strings.Contains(logBuf.String(), "activation failed") {
		t.Fatalf("unexpected log: %s", logBuf.String())
	}
}

func TestParse_Statements(t *testing.T) {
	src := `A=1
export B="$A-2"
C=3
export C
D=$(date)
export D
E+=x
export E
unset F
G=local
if [ "$A" = 1 ]; then
    export H=yes
else
    export H=no
fi
`
	p, err := Parse(context.Background(), []byte(src), "activate", []string{"E=pre", "F=gone", "K=same"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := map[string]Var{}
	for _, v := range p.Vars {
		got[v.Name] = v
	}
	if _, ok := got["A"]; ok {
		t.Fatalf("A is not exported")
	}
	if _, ok := got["G"]; ok {
		t.Fatalf("G is not exported")
	}
	if _, ok := got["K"]; ok {
		t.Fatalf("unchanged K reported")
	}
	if got["B"].Value != "1-2" || got["C"].Value != "3" || got["E"].Value != "prex" || got["H"].Value != "yes" {
		t.Fatalf("unexpected vars: %+v", p.Vars)
	}
	if d, ok := got["D"]; !ok || d.Value != "" {
		t.Fatalf("D should be exported empty: %+v", d)
	}
	if !got["F"].Unset {
		t.Fatalf("F should be unset: %+v", got["F"])
	}
	if len(p.Refused) != 1 || p.Refused[0] != "date" {
		t.Fatalf("refused = %v", p.Refused)
	}
	for i := 1; i < len(p.Vars); i++ {
		if p.Vars[i-1].Name > p.Vars[i].Name {
			t.Fatalf("vars not sorted: %+v", p.Vars)
		}
	}
}

func TestParse_NoSideEffects(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	src := "touch " + marker + "\necho hi > " + marker + "\nexport OK=1\n"
	p, err := Parse(context.Background(), []byte(src), "activate", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Fatalf("script created a file: %v", err)
	}
	if len(p.Vars) != 1 || p.Vars[0] != (Var{Name: "OK", Value: "1"}) {
		t.Fatalf("vars = %+v", p.Vars)
	}
	if len(p.Refused) != 1 || p.Refused[0] != "touch" {
		t.Fatalf("refused = %v", p.Refused)
	}
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Parse(ctx, []byte("while true; do :; done\n"), "activate", nil); err == nil {
		t.Fatalf("expected error from canceled run")
	}
}

func TestPackageActivate_MutatesProcess(t *testing.T) {
	root := writeVenv(t, "linux")
	if filepath.Separator != '/' {
		t.Skip("process-level check uses the bin/ layout")
	}
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("VIRTUAL_ENV", "")
	t.Setenv("VIRTUAL_ENV_PROMPT", "")
	if !Activate(root) {
		t.Fatalf("activate failed")
	}
	if os.Getenv("VIRTUAL_ENV") != root {
		t.Fatalf("VIRTUAL_ENV=%q", os.Getenv("VIRTUAL_ENV"))
	}
	if !strings.HasPrefix(os.Getenv("PATH"), root+"/bin:") {
		t.Fatalf("PATH=%q", os.Getenv("PATH"))
	}
}
