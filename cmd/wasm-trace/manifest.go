package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/sliminality/wasm-trace/internal/tracer"
)

// projectManifest is an optional wasmtrace.toml found by walking up
// from the working directory. Flags always win over manifest values.
type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Instrument instrumentConfig `toml:"instrument"`
	Trace      traceConfig      `toml:"trace"`
}

type instrumentConfig struct {
	Logger    string   `toml:"logger"`
	Skip      []string `toml:"skip"`
	OutputDir string   `toml:"output-dir"`
}

type traceConfig struct {
	Capacity int `toml:"capacity"`
}

func findWasmtraceToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "wasmtrace.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findWasmtraceToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// resolveTraceCapacity returns the replay ring capacity: the
// [trace].capacity manifest value when one is configured, otherwise
// tracer.DefaultCapacity.
func resolveTraceCapacity(startDir string) (int, error) {
	manifest, ok, err := loadProjectManifest(startDir)
	if err != nil {
		return 0, err
	}
	if ok && manifest.Config.Trace.Capacity > 0 {
		return manifest.Config.Trace.Capacity, nil
	}
	return tracer.DefaultCapacity, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("trace", "capacity") && cfg.Trace.Capacity <= 0 {
		return projectConfig{}, fmt.Errorf("%s: [trace].capacity must be positive", path)
	}
	if meta.IsDefined("instrument", "output-dir") {
		if info, err := os.Stat(filepath.Join(filepath.Dir(path), cfg.Instrument.OutputDir)); err == nil && !info.IsDir() {
			return projectConfig{}, fmt.Errorf("%s: [instrument].output-dir is not a directory", path)
		}
	}
	return cfg, nil
}
