package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sliminality/wasm-trace/internal/ui"
)

var viewCmd = &cobra.Command{
	Use:   "view [flags] log.bin",
	Short: "Browse a replayed trace interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

func init() {
	viewCmd.Flags().String("names", "", "function-name sidecar written by instrument")
}

func runView(cmd *cobra.Command, args []string) error {
	recorder, err := replayLogFile(cmd, args[0])
	if err != nil {
		return err
	}

	model := ui.NewViewerModel(filepath.Base(args[0]), recorder.Entries())
	_, err = newTeaProgram(model, tea.WithAltScreen()).Run()
	return err
}

func newTeaProgram(model tea.Model, opts ...tea.ProgramOption) *tea.Program {
	opts = append([]tea.ProgramOption{tea.WithOutput(os.Stdout)}, opts...)
	return tea.NewProgram(model, opts...)
}
