package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sliminality/wasm-trace/internal/wasm"
)

var functionsCmd = &cobra.Command{
	Use:   "functions [flags] module.wasm",
	Short: "List the function index space of a module",
	Long:  `Functions prints every function in the module's index space: imported functions first, then the module's own, with signatures and instruction listings`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFunctions,
}

func init() {
	functionsCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	functionsCmd.Flags().Bool("instructions", true, "include instruction listings")
}

type functionPayload struct {
	Index        uint32   `json:"index"`
	Name         string   `json:"name,omitempty"`
	Imported     bool     `json:"imported,omitempty"`
	Signature    string   `json:"signature"`
	Instructions []string `json:"instructions,omitempty"`
}

func runFunctions(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	withInstructions, err := cmd.Flags().GetBool("instructions")
	if err != nil {
		return fmt.Errorf("failed to get instructions flag: %w", err)
	}

	module, err := wasm.DecodeFile(args[0])
	if err != nil {
		return err
	}
	funcs, err := module.Functions()
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	switch format {
	case "pretty":
		return renderFunctionsPretty(cmd.OutOrStdout(), funcs, withInstructions, useColor(cmd, os.Stdout))
	case "json":
		return renderFunctionsJSON(cmd.OutOrStdout(), funcs, withInstructions)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func renderFunctionsPretty(out io.Writer, funcs []wasm.Function, withInstructions, colorize bool) error {
	nameColor := color.New(color.FgCyan, color.Bold)
	sourceColor := color.New(color.Faint)
	if !colorize {
		nameColor.DisableColor()
		sourceColor.DisableColor()
	}

	for _, f := range funcs {
		source := "func"
		if f.Imported {
			source = "import"
		}
		name := fmt.Sprintf("#%d", f.Index)
		if f.Name != "" {
			name += " " + f.Name
		}
		if _, err := fmt.Fprintf(out, "%s %s : %s\n", sourceColor.Sprint(source), nameColor.Sprint(name), f.Type); err != nil {
			return err
		}
		if withInstructions && f.Body != nil {
			for _, in := range f.Body.Code {
				if _, err := fmt.Fprintf(out, "\t%s\n", in); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func renderFunctionsJSON(out io.Writer, funcs []wasm.Function, withInstructions bool) error {
	payload := make([]functionPayload, 0, len(funcs))
	for _, f := range funcs {
		p := functionPayload{
			Index:     f.Index,
			Name:      f.Name,
			Imported:  f.Imported,
			Signature: f.Type.String(),
		}
		if withInstructions && f.Body != nil {
			p.Instructions = make([]string, 0, len(f.Body.Code))
			for _, in := range f.Body.Code {
				p.Instructions = append(p.Instructions, in.String())
			}
		}
		payload = append(payload, p)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
