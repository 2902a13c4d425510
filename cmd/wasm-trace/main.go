package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sliminality/wasm-trace/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "wasm-trace",
	Short: "WebAssembly function call tracing toolchain",
	Long:  `wasm-trace instruments WebAssembly binaries with function entry/exit tracing and replays the recorded traces`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag against the terminal attached to f.
func useColor(cmd *cobra.Command, f *os.File) bool {
	colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(f))
}
