package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"localllm/internal/common/fsutil"
	"localllm/pkg/types"
)

// quantPattern matches llama.cpp quantization tags such as Q4_K_M, Q8_0, F16.
var quantPattern = regexp.MustCompile(`(?i)(?:^|[.\-_])((?:I?Q[0-9]+(?:_[A-Z0-9]+)*)|F16|F32|BF16)$`)

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
// Results are sorted by ID.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		mdl := types.Model{ID: name, Path: filepath.Join(abs, name), Quant: ParseQuant(name)}
		if fi, err := e.Info(); err == nil {
			mdl.SizeBytes = fi.Size()
		}
		models = append(models, mdl)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Resolve finds the model called name inside dir. An exact file name wins,
// then a name without the .gguf extension, then a unique suffix match
// (e.g. "Q4_K_M.gguf" for "deepseek-coder-6.7b-base.Q4_K_M.gguf").
func Resolve(dir, name string) (types.Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Model{}, fmt.Errorf("empty model name")
	}
	models, err := LoadDir(dir)
	if err != nil {
		return types.Model{}, err
	}
	for _, m := range models {
		if m.ID == name {
			return m, nil
		}
	}
	for _, m := range models {
		if strings.EqualFold(strings.TrimSuffix(m.ID, filepath.Ext(m.ID)), name) {
			return m, nil
		}
	}
	var matches []types.Model
	lower := strings.ToLower(name)
	for _, m := range models {
		if strings.HasSuffix(strings.ToLower(m.ID), lower) {
			matches = append(matches, m)
		}
	}
	switch len(matches) {
	case 0:
		return types.Model{}, fmt.Errorf("model %q not found in %s", name, dir)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return types.Model{}, fmt.Errorf("model %q is ambiguous in %s: %s", name, dir, strings.Join(ids, ", "))
	}
}

// ParseQuant extracts the quantization tag from a GGUF file name, or "".
func ParseQuant(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	m := quantPattern.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}
