package cli

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/pboyd/fncopy"
)

//go:noinline
func testFunction(a, b int) int {
	result := a + b
	result *= 2
	result -= 3
	return result
}

//go:noinline
func functionWithJump(x int) string {
	if x > 10 {
		return "Large number"
	}
	return "Small number"
}

//go:noinline
func functionWithRipRelative() string {
	return "Hello!"
}

// Result is the outcome of one scenario.
type Result struct {
	Name        string   `json:"name" jsonschema:"title=Name,description=Scenario name"`
	Original    []string `json:"original" jsonschema:"title=Original,description=Output of the original function"`
	Copied      []string `json:"copied" jsonschema:"title=Copied,description=Output of the copy"`
	Source      string   `json:"source" jsonschema:"title=Source,description=Address of the original function"`
	Copy        string   `json:"copy" jsonschema:"title=Copy,description=Address of the copy"`
	Distance    uint64   `json:"distance" jsonschema:"title=Distance,description=Bytes between the original and the copy"`
	Size        int      `json:"size" jsonschema:"title=Size,description=Length of the copy in bytes"`
	Relocations int      `json:"relocations" jsonschema:"title=Relocations,description=Relative references rewritten"`
	Stop        string   `json:"stop" jsonschema:"title=Stop,description=Why decoding stopped"`
	Passed      bool     `json:"passed" jsonschema:"title=Passed,description=Whether the copy behaved like the original"`
	Error       string   `json:"error,omitempty" jsonschema:"title=Error,description=Why the copy could not be made"`
}

// Report is the machine-readable output of the demo command.
type Report struct {
	Arch    string   `json:"arch" jsonschema:"title=Architecture,description=GOARCH the copies were made on"`
	Results []Result `json:"results" jsonschema:"title=Results"`
	Passed  bool     `json:"passed" jsonschema:"title=Passed,description=Whether every scenario passed"`
}

type scenario struct {
	name  string
	title string

	// copy makes the copy and returns the outputs of the original and the
	// copy.
	copy func(r *runner) (*fncopy.Function, []string, []string, error)
}

var scenarios = []scenario{
	{
		name:  "simple",
		title: "Simple Function Test",
		copy: func(r *runner) (*fncopy.Function, []string, []string, error) {
			fn, err := r.copier.Copy(entryOf(testFunction), fncopy.DefaultMaxScanLength)
			if err != nil {
				return nil, nil, nil, err
			}
			copied := fncopy.FuncAt[func(int, int) int](fn.Entry)

			return fn,
				[]string{strconv.Itoa(testFunction(5, 7))},
				[]string{strconv.Itoa(copied(5, 7))},
				nil
		},
	},
	{
		name:  "jump",
		title: "Jump Function Test",
		copy: func(r *runner) (*fncopy.Function, []string, []string, error) {
			// Both branches return, so copy the whole function rather than
			// stopping at the first return.
			copied, fn, err := copyFunc(r, functionWithJump)
			if err != nil {
				return nil, nil, nil, err
			}

			var original, copies []string
			for _, x := range []int{5, 15} {
				original = append(original, fmt.Sprintf("(%d) %s", x, functionWithJump(x)))
				copies = append(copies, fmt.Sprintf("(%d) %s", x, copied(x)))
			}
			return fn, original, copies, nil
		},
	},
	{
		name:  "rip-relative",
		title: "RIP-Relative Test",
		copy: func(r *runner) (*fncopy.Function, []string, []string, error) {
			fn, err := r.copier.Copy(entryOf(functionWithRipRelative), fncopy.DefaultMaxScanLength)
			if err != nil {
				return nil, nil, nil, err
			}
			copied := fncopy.FuncAt[func() string](fn.Entry)

			return fn,
				[]string{functionWithRipRelative()},
				[]string{copied()},
				nil
		},
	},
}

func findScenario(name string) (scenario, bool) {
	i := slices.IndexFunc(scenarios, func(s scenario) bool {
		return s.name == name
	})
	if i < 0 {
		return scenario{}, false
	}
	return scenarios[i], true
}

func scenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	return names
}

// run makes the scenario's copy and compares it with the original.
func (s scenario) run(r *runner) Result {
	res := Result{Name: s.name}

	fn, original, copied, err := s.copy(r)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Original = original
	res.Copied = copied
	res.Source = fmt.Sprintf("%#x", fn.Source)
	res.Copy = fmt.Sprintf("%#x", fn.Entry)
	res.Distance = distance(fn.Source, fn.Entry)
	res.Size = len(fn.Code)
	res.Relocations = fn.Relocations
	res.Stop = fn.Stop.String()
	res.Passed = slices.Equal(original, copied)
	return res
}

func distance(a, b uintptr) uint64 {
	if a > b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
