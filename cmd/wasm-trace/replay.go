package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sliminality/wasm-trace/internal/tracer"
)

var replayCmd = &cobra.Command{
	Use:   "replay [flags] log.bin",
	Short: "Replay a raw trace log into readable entries",
	Long: `Replay reads a raw log dump (the little-endian record pairs a host
copies out of an instrumented module's memory), pairs calls with
returns, and prints the resulting trace buffer`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("names", "", "function-name sidecar written by instrument")
	replayCmd.Flags().String("format", "text", "output format (text|json)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	recorder, err := replayLogFile(cmd, args[0])
	if err != nil {
		return err
	}

	switch format {
	case "text":
		_, err := recorder.WriteTo(cmd.OutOrStdout())
		return err
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recorder.Entries())
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// replayLogFile parses a raw log file and replays it into a fresh
// Recorder, resolving names through the sidecar when one is given.
// The dump is funneled through a ring sized by [trace].capacity so a
// log longer than the ring keeps only the newest records, matching
// what the in-module tracer would have retained.
func replayLogFile(cmd *cobra.Command, logPath string) (*tracer.Recorder, error) {
	namesPath, err := cmd.Flags().GetString("names")
	if err != nil {
		return nil, fmt.Errorf("failed to get names flag: %w", err)
	}

	var sidecar *tracer.Sidecar
	if namesPath != "" {
		sidecar, err = tracer.ReadSidecar(namesPath)
		if err != nil {
			return nil, err
		}
	}

	capacity, err := resolveTraceCapacity(".")
	if err != nil {
		return nil, err
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	records, err := tracer.ParseRawLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", logPath, err)
	}

	recorder, err := replayRecords(records, capacity, sidecar.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", logPath, err)
	}
	return recorder, nil
}

func replayRecords(records []tracer.Record, capacity int, name func(uint32) string) (*tracer.Recorder, error) {
	log := tracer.NewLog(capacity)
	for _, r := range records {
		log.Append(r.Kind, r.Data)
	}
	recorder := tracer.NewRecorder()
	if err := log.Replay(name, recorder); err != nil {
		return nil, err
	}
	return recorder, nil
}
