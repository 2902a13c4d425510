package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sliminality/wasm-trace/internal/instrument"
	"github.com/sliminality/wasm-trace/internal/tracer"
	"github.com/sliminality/wasm-trace/internal/ui"
	"github.com/sliminality/wasm-trace/internal/wasm"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [flags] module.wasm...",
	Short: "Add entry/exit tracing to a module's exported functions",
	Long: `Instrument rewrites each exported function with a prologue and epilogue
that call the module's logger export, then writes the result next to the
input along with a name sidecar for later replay`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstrument,
}

func init() {
	instrumentCmd.Flags().StringP("output", "o", "", "output path (single input only)")
	instrumentCmd.Flags().String("logger", "", "logger export name (default "+instrument.LogCall+")")
	instrumentCmd.Flags().StringSlice("skip", nil, "additional export names to leave uninstrumented")
	instrumentCmd.Flags().Bool("sidecar", true, "write a .names.mp function-name sidecar")
	instrumentCmd.Flags().Int("jobs", 0, "number of modules to process in parallel (0 = GOMAXPROCS)")
	instrumentCmd.Flags().Bool("ui", false, "show interactive progress")
}

// instrumentOptions is the fully resolved configuration for one run:
// flags layered over the optional wasmtrace.toml manifest.
type instrumentOptions struct {
	output    string
	outputDir string
	logger    string
	skip      []string
	sidecar   bool
	jobs      int
}

func runInstrument(cmd *cobra.Command, args []string) error {
	opts, err := resolveInstrumentOptions(cmd)
	if err != nil {
		return err
	}
	if opts.output != "" && len(args) > 1 {
		return fmt.Errorf("--output requires exactly one input module")
	}

	showUI, err := cmd.Flags().GetBool("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")

	if showUI && isTerminal(os.Stdout) {
		return instrumentWithUI(cmd.Context(), args, opts)
	}

	results, err := instrumentAll(cmd.Context(), args, opts, nil)
	if err != nil {
		return err
	}
	if !quiet {
		for _, res := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: instrumented %d of %d functions -> %s\n",
				res.input, res.instrumented, res.total, res.output)
		}
	}
	return nil
}

func resolveInstrumentOptions(cmd *cobra.Command) (instrumentOptions, error) {
	var opts instrumentOptions
	var err error

	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return opts, fmt.Errorf("failed to get output flag: %w", err)
	}
	if opts.logger, err = cmd.Flags().GetString("logger"); err != nil {
		return opts, fmt.Errorf("failed to get logger flag: %w", err)
	}
	if opts.skip, err = cmd.Flags().GetStringSlice("skip"); err != nil {
		return opts, fmt.Errorf("failed to get skip flag: %w", err)
	}
	if opts.sidecar, err = cmd.Flags().GetBool("sidecar"); err != nil {
		return opts, fmt.Errorf("failed to get sidecar flag: %w", err)
	}
	if opts.jobs, err = cmd.Flags().GetInt("jobs"); err != nil {
		return opts, fmt.Errorf("failed to get jobs flag: %w", err)
	}

	manifest, found, err := loadProjectManifest(".")
	if err != nil {
		return opts, err
	}
	if found {
		cfg := manifest.Config.Instrument
		if opts.logger == "" {
			opts.logger = cfg.Logger
		}
		opts.skip = append(opts.skip, cfg.Skip...)
		if cfg.OutputDir != "" {
			opts.outputDir = cfg.OutputDir
		}
	}
	return opts, nil
}

// instrumentResult is the outcome for one input module.
type instrumentResult struct {
	input        string
	output       string
	sidecar      string
	total        uint32
	instrumented int
}

// instrumentAll processes the input modules in parallel, reporting
// progress to events when non-nil.
func instrumentAll(ctx context.Context, files []string, opts instrumentOptions, events chan<- ui.Event) ([]instrumentResult, error) {
	jobs := opts.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]instrumentResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := instrumentOne(path, opts, events)
			if err != nil {
				emit(events, ui.Event{File: path, Status: ui.StatusError})
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			emit(events, ui.Event{File: path, Status: ui.StatusDone})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func instrumentOne(path string, opts instrumentOptions, events chan<- ui.Event) (instrumentResult, error) {
	emit(events, ui.Event{File: path, Stage: ui.StageDecode, Status: ui.StatusWorking})
	module, err := wasm.DecodeFile(path)
	if err != nil {
		return instrumentResult{}, err
	}

	emit(events, ui.Event{File: path, Stage: ui.StageInstrument, Status: ui.StatusWorking})
	before := countInstructions(module)
	err = instrument.Run(module, instrument.Options{Logger: opts.logger, Skip: opts.skip})
	if err != nil {
		return instrumentResult{}, err
	}

	output := opts.output
	if output == "" {
		output = outputNameFromPath(path, opts.outputDir)
	}
	emit(events, ui.Event{File: path, Stage: ui.StageEncode, Status: ui.StatusWorking})
	if err := module.EncodeFile(output); err != nil {
		return instrumentResult{}, err
	}

	res := instrumentResult{
		input:        path,
		output:       output,
		total:        module.NumFuncs(),
		instrumented: countChangedBodies(module, before),
	}

	if opts.sidecar {
		emit(events, ui.Event{File: path, Stage: ui.StageSidecar, Status: ui.StatusWorking})
		names := make(map[uint32]string)
		for id := uint32(0); id < module.NumFuncs(); id++ {
			if name, ok := module.FunctionName(id); ok {
				names[id] = name
			}
		}
		logger := opts.logger
		if logger == "" {
			logger = instrument.LogCall
		}
		res.sidecar = sidecarNameFromPath(output)
		if err := tracer.WriteSidecar(res.sidecar, tracer.NewSidecar(path, logger, names)); err != nil {
			return instrumentResult{}, err
		}
	}
	return res, nil
}

// pipelineOutcome is what the background instrumentation goroutine
// reports once every module is processed.
type pipelineOutcome struct {
	results []instrumentResult
	err     error
}

func instrumentWithUI(ctx context.Context, files []string, opts instrumentOptions) error {
	events := make(chan ui.Event, 256)
	outcomes := make(chan pipelineOutcome, 1)

	go func() {
		results, err := instrumentAll(ctx, files, opts, events)
		outcomes <- pipelineOutcome{results: results, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("instrumenting modules", files, events)
	program := newTeaProgram(model)
	_, uiErr := program.Run()
	out := awaitPipeline(events, outcomes)
	if uiErr != nil {
		return uiErr
	}
	return out.err
}

// awaitPipeline collects the pipeline outcome after the progress UI
// has exited. Remaining events are drained first: when the user quits
// early the pipeline may still be blocked sending to a full channel,
// and its outcome only arrives once those sends complete.
func awaitPipeline(events <-chan ui.Event, outcomes <-chan pipelineOutcome) pipelineOutcome {
	for range events {
	}
	return <-outcomes
}

func emit(events chan<- ui.Event, ev ui.Event) {
	if events == nil {
		return
	}
	events <- ev
}

func countInstructions(m *wasm.Module) []int {
	counts := make([]int, len(m.Bodies))
	for i, b := range m.Bodies {
		counts[i] = len(b.Code)
	}
	return counts
}

func countChangedBodies(m *wasm.Module, before []int) int {
	changed := 0
	for i, b := range m.Bodies {
		if i < len(before) && len(b.Code) != before[i] {
			changed++
		}
	}
	return changed
}
