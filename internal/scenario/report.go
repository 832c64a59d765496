package scenario

import (
	"fmt"
	"io"
	"strings"
	"time"
)

type CaseResult struct {
	Suite    string
	Name     string
	Failures []string
	Duration time.Duration
}

func (r CaseResult) Passed() bool {
	return len(r.Failures) == 0
}

type Report struct {
	Results []CaseResult
}

func (r *Report) Add(results ...CaseResult) {
	r.Results = append(r.Results, results...)
}

func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Passed() {
			n++
		}
	}
	return n
}

// Write prints one line per case, indented failure reasons, then a summary.
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder
	for _, res := range r.Results {
		status := "PASS"
		if !res.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s/%s (%s)\n", status, res.Suite, res.Name, res.Duration.Round(time.Millisecond))
		for _, f := range res.Failures {
			fmt.Fprintf(&b, "      %s\n", f)
		}
	}

	failed := r.Failed()
	fmt.Fprintf(&b, "\n%d cases, %d passed, %d failed\n", len(r.Results), len(r.Results)-failed, failed)

	_, err := io.WriteString(w, b.String())
	return err
}
