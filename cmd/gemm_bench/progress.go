package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// progress displays a progress bar over the benchmark runs.
type progress struct {
	bar *progressbar.ProgressBar
}

// newProgress creates a progress bar for numRuns runs. ANSI codes are only used if stdout is a
// terminal with color support.
func newProgress(numRuns int) *progress {
	output := termenv.NewOutput(os.Stdout)
	isTerminal := output.ColorProfile() != termenv.Ascii
	bar := progressbar.NewOptions(numRuns,
		progressbar.OptionSetDescription("Benchmarking"),
		progressbar.OptionUseANSICodes(isTerminal),
		progressbar.OptionEnableColorCodes(isTerminal),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("runs"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		progressbar.OptionSetWriter(os.Stdout),
	)
	return &progress{bar: bar}
}

// Add reports one more run finished, and what is running.
func (p *progress) Add(description string) {
	p.bar.Describe(description)
	_ = p.bar.Add(1)
}

// Done finishes the progress bar.
func (p *progress) Done() {
	_ = p.bar.Finish()
	fmt.Println()
}
