package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pboyd/fncopy"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <scenario>",
	Short: "Show the machine code of a scenario's function and its copy",
	Long: fmt.Sprintf(`Copy one of the demo functions and print both listings.

Scenarios: %s`, strings.Join(scenarioNames(), ", ")),
	Args: cobra.ExactArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return scenarioNames(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, ok := findScenario(args[0])
		if !ok {
			return fmt.Errorf("unknown scenario %q (choose from %s)", args[0], strings.Join(scenarioNames(), ", "))
		}

		r, err := newRunner(newLogger(cmd))
		if err != nil {
			return err
		}

		fn, _, _, err := s.copy(r)
		if err != nil {
			return err
		}

		maxScan, _ := cmd.Flags().GetInt("max-scan")
		if maxScan <= 0 || maxScan > len(fn.Code) {
			maxScan = len(fn.Code)
		}

		p := painter{color: useColor(cmd)}
		w := cmd.OutOrStdout()

		original := unsafe.Slice((*byte)(unsafe.Pointer(fn.Source)), maxScan)
		if err := printListing(w, p, "Original", fn.Source, original); err != nil {
			return err
		}
		if err := printListing(w, p, "Copy", fn.Entry, fn.Code[:maxScan]); err != nil {
			return err
		}

		fmt.Fprintln(w, p.render(dimStyle, fmt.Sprintf("%s apart, %d relocations, stopped at %s",
			humanize.IBytes(distance(fn.Source, fn.Entry)), fn.Relocations, fn.Stop)))
		return nil
	},
}

func init() {
	disasmCmd.Flags().Int("max-scan", 0, "Limit the listings to this many bytes (default: the length of the copy)")
	rootCmd.AddCommand(disasmCmd)
}

func printListing(w io.Writer, p painter, title string, pc uintptr, code []byte) error {
	listing, err := fncopy.Disassemble(code, pc)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%s):\n", p.render(titleStyle, title), humanize.Bytes(uint64(len(code))))
	fmt.Fprintln(w, p.highlight(runtime.GOARCH, listing))
	return nil
}
