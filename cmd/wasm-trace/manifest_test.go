package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sliminality/wasm-trace/internal/tracer"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "wasmtrace.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestFindWasmtraceTomlWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path, ok, err := findWasmtraceToml(nested)
	if err != nil {
		t.Fatalf("findWasmtraceToml: %v", err)
	}
	if !ok {
		t.Fatalf("manifest not found from nested dir")
	}
	if filepath.Dir(path) != root {
		t.Fatalf("found %q, want one under %q", path, root)
	}
}

func TestFindWasmtraceTomlMissing(t *testing.T) {
	_, ok, err := findWasmtraceToml(t.TempDir())
	if err != nil {
		t.Fatalf("findWasmtraceToml: %v", err)
	}
	if ok {
		t.Fatalf("found a manifest in an empty tree")
	}
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, `
[instrument]
logger = "__my_log"
skip = ["helper", "init"]

[trace]
capacity = 256
`)

	cfg, err := loadProjectConfig(path)
	if err != nil {
		t.Fatalf("loadProjectConfig: %v", err)
	}
	if cfg.Instrument.Logger != "__my_log" {
		t.Fatalf("Logger = %q", cfg.Instrument.Logger)
	}
	if len(cfg.Instrument.Skip) != 2 || cfg.Instrument.Skip[0] != "helper" {
		t.Fatalf("Skip = %v", cfg.Instrument.Skip)
	}
	if cfg.Trace.Capacity != 256 {
		t.Fatalf("Capacity = %d", cfg.Trace.Capacity)
	}
}

func TestLoadProjectConfigRejectsBadCapacity(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "[trace]\ncapacity = 0\n")
	if _, err := loadProjectConfig(path); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
}

func TestLoadProjectConfigRejectsFileOutputDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "out"), nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	path := writeManifest(t, dir, "[instrument]\noutput-dir = \"out\"\n")
	if _, err := loadProjectConfig(path); err == nil {
		t.Fatalf("expected error for output-dir pointing at a file")
	}
}

func TestResolveTraceCapacity(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[trace]\ncapacity = 32\n")

	got, err := resolveTraceCapacity(dir)
	if err != nil {
		t.Fatalf("resolveTraceCapacity: %v", err)
	}
	if got != 32 {
		t.Fatalf("capacity = %d, want 32", got)
	}
}

func TestResolveTraceCapacityDefault(t *testing.T) {
	got, err := resolveTraceCapacity(t.TempDir())
	if err != nil {
		t.Fatalf("resolveTraceCapacity: %v", err)
	}
	if got != tracer.DefaultCapacity {
		t.Fatalf("capacity = %d, want %d", got, tracer.DefaultCapacity)
	}
}

func TestLoadProjectManifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[trace]\ncapacity = 64\n")

	m, ok, err := loadProjectManifest(root)
	if err != nil {
		t.Fatalf("loadProjectManifest: %v", err)
	}
	if !ok {
		t.Fatalf("manifest not found")
	}
	if m.Root != filepath.Dir(m.Path) {
		t.Fatalf("Root = %q, Path = %q", m.Root, m.Path)
	}
	if m.Config.Trace.Capacity != 64 {
		t.Fatalf("Capacity = %d", m.Config.Trace.Capacity)
	}
}
