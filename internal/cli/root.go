// Package cli implements the fncopy command, a demonstration of copying
// functions at runtime.
package cli

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/pboyd/fncopy/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "fncopy",
	Short: "Copy machine code functions to new memory and check the copies",
	Long: `fncopy relocates functions of its own binary to freshly allocated
executable memory, calls the copies and compares them with the originals.`,
	Example: `
# Run every scenario
fncopy demo

# Show the original and relocated code of one scenario
fncopy disasm jump
  `,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output (or set FNCOPY_NO_COLOR)")
}

// newLogger returns the logger selected by the command's flags.
func newLogger(cmd *cobra.Command) *log.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	return logging.New(cmd.ErrOrStderr(), debug)
}

// useColor reports whether output should be colored.
func useColor(cmd *cobra.Command) bool {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || env.Bool("FNCOPY_NO_COLOR") {
		return false
	}
	return term.IsTerminal(os.Stdout.Fd())
}

// Execute runs the command and exits.
func Execute() {
	// fang's styled help and errors only make sense on a terminal.
	if !term.IsTerminal(os.Stdout.Fd()) {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
