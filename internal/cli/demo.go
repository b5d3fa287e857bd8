package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Copy the demo functions and compare the copies with the originals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		r, err := newRunner(newLogger(cmd))
		if err != nil {
			return err
		}

		report := Report{
			Arch:   runtime.GOARCH,
			Passed: true,
		}
		for _, s := range scenarios {
			res := s.run(r)
			report.Results = append(report.Results, res)
			report.Passed = report.Passed && res.Passed
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(cmd.OutOrStdout(), painter{color: useColor(cmd)}, report)
		}

		if !report.Passed {
			return fmt.Errorf("%d of %d scenarios failed", report.failed(), len(report.Results))
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().Bool("json", false, "Print the results as JSON")
	rootCmd.AddCommand(demoCmd)
}

func (r Report) failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed {
			n++
		}
	}
	return n
}

func printReport(w io.Writer, p painter, report Report) {
	for _, res := range report.Results {
		s, _ := findScenario(res.Name)
		fmt.Fprintln(w, p.render(titleStyle, s.title))

		if res.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", res.Error)
		} else {
			fmt.Fprintf(w, "  Original: %s\n", strings.Join(res.Original, ", "))
			fmt.Fprintf(w, "  Copied:   %s\n", strings.Join(res.Copied, ", "))
			fmt.Fprintln(w, p.render(dimStyle, fmt.Sprintf("  %s -> %s, %d bytes, %d relocations, stopped at %s",
				res.Source, res.Copy, res.Size, res.Relocations, res.Stop)))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	for _, res := range report.Results {
		s, _ := findScenario(res.Name)
		fmt.Fprintf(w, "%-25s [%s]\n", s.title, p.status(res.Passed))
	}
}
