package tracer

import (
	"path/filepath"
	"testing"
)

func TestSidecarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.names.mp")
	names := map[uint32]string{1: "main", 2: "render"}
	if err := WriteSidecar(path, NewSidecar("app.wasm", "__log_call", names)); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}

	s, err := ReadSidecar(path)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if s.Module != "app.wasm" {
		t.Fatalf("Module = %q", s.Module)
	}
	if s.Logger != "__log_call" {
		t.Fatalf("Logger = %q", s.Logger)
	}
	if s.Name(2) != "render" {
		t.Fatalf("Name(2) = %q", s.Name(2))
	}
	if s.Name(99) != "" {
		t.Fatalf("Name(99) = %q, want empty", s.Name(99))
	}
}

func TestSidecarMissingFile(t *testing.T) {
	if _, err := ReadSidecar(filepath.Join(t.TempDir(), "nope.names.mp")); err == nil {
		t.Fatalf("expected error for missing sidecar")
	}
}

func TestSidecarSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.names.mp")
	s := NewSidecar("old.wasm", "__log_call", nil)
	s.Schema = sidecarSchemaVersion + 1
	if err := WriteSidecar(path, s); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	if _, err := ReadSidecar(path); err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestNilSidecarName(t *testing.T) {
	var s *Sidecar
	if s.Name(1) != "" {
		t.Fatalf("nil sidecar resolved a name")
	}
}
