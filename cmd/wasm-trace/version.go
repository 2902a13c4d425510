package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sliminality/wasm-trace/internal/instrument"
	"github.com/sliminality/wasm-trace/internal/tracer"
	"github.com/sliminality/wasm-trace/internal/version"
	"github.com/sliminality/wasm-trace/internal/wasm"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the build and the instrumentation ABI",
	Long: `Version prints the CLI build identity along with the contract an
instrumented module must satisfy: the wasm binary version the codec
speaks, the logger export the pass wires calls to, and the default
trace ring capacity`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().Bool("full", false, "include commit and build date")
}

type versionPayload struct {
	Tool          string `json:"tool"`
	Version       string `json:"version"`
	WasmVersion   uint32 `json:"wasm_version"`
	Logger        string `json:"logger"`
	TraceCapacity int    `json:"trace_capacity"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildDate     string `json:"build_date,omitempty"`
}

func runVersion(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	full, err := cmd.Flags().GetBool("full")
	if err != nil {
		return fmt.Errorf("failed to get full flag: %w", err)
	}

	switch format {
	case "pretty":
		renderVersionPretty(cmd.OutOrStdout(), full, useColor(cmd, os.Stdout))
		return nil
	case "json":
		return renderVersionJSON(cmd.OutOrStdout(), full)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func renderVersionPretty(out io.Writer, full, colorize bool) {
	toolColor := color.New(color.FgCyan, color.Bold)
	if !colorize {
		toolColor.DisableColor()
	}
	fmt.Fprintf(out, "%s %s\n", toolColor.Sprint("wasm-trace"), version.Version)
	fmt.Fprintf(out, "  wasm binary version:    %d\n", wasm.BinaryVersion)
	fmt.Fprintf(out, "  logger export:          %s(kind i32, data i32)\n", instrument.LogCall)
	fmt.Fprintf(out, "  default trace capacity: %d records\n", tracer.DefaultCapacity)
	if full {
		fmt.Fprintf(out, "  commit: %s\n", valueOrUnknown(version.GitCommit))
		fmt.Fprintf(out, "  built:  %s\n", valueOrUnknown(version.BuildDate))
	}
}

func renderVersionJSON(out io.Writer, full bool) error {
	payload := versionPayload{
		Tool:          "wasm-trace",
		Version:       version.Version,
		WasmVersion:   wasm.BinaryVersion,
		Logger:        instrument.LogCall,
		TraceCapacity: tracer.DefaultCapacity,
	}
	if full {
		payload.GitCommit = valueOrUnknown(version.GitCommit)
		payload.BuildDate = valueOrUnknown(version.BuildDate)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
