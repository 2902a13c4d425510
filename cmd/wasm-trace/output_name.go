package main

import (
	"path/filepath"
	"strings"
)

// outputNameFromPath derives the instrumented output path for a module:
// "dir/foo.wasm" becomes "dir/foo.traced.wasm" (or outputDir/foo.traced.wasm
// when an output directory is configured).
func outputNameFromPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inputPath)
	if outputDir != "" {
		dir = outputDir
	}
	return filepath.Join(dir, stem+".traced.wasm")
}

// sidecarNameFromPath derives the name-sidecar path next to the
// instrumented output.
func sidecarNameFromPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, ".traced.wasm") + ".names.mp"
}
