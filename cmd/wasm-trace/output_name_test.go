package main

import (
	"path/filepath"
	"testing"
)

func TestOutputNameFromPath(t *testing.T) {
	tests := []struct {
		input     string
		outputDir string
		want      string
	}{
		{"app.wasm", "", "app.traced.wasm"},
		{filepath.Join("build", "app.wasm"), "", filepath.Join("build", "app.traced.wasm")},
		{filepath.Join("build", "app.wasm"), "out", filepath.Join("out", "app.traced.wasm")},
		{"noext", "", "noext.traced.wasm"},
	}
	for _, tt := range tests {
		if got := outputNameFromPath(tt.input, tt.outputDir); got != tt.want {
			t.Errorf("outputNameFromPath(%q, %q) = %q, want %q", tt.input, tt.outputDir, got, tt.want)
		}
	}
}

func TestSidecarNameFromPath(t *testing.T) {
	got := sidecarNameFromPath(filepath.Join("out", "app.traced.wasm"))
	want := filepath.Join("out", "app.names.mp")
	if got != want {
		t.Fatalf("sidecarNameFromPath = %q, want %q", got, want)
	}
}
