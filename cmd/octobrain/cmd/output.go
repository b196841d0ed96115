package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI codes used to highlight relevance scores in interactive terminals.
const (
	ansiGreen = "\x1b[32m"
	ansiReset = "\x1b[0m"
)

// colorize wraps s in ANSI color codes when w is an interactive terminal,
// and returns it unchanged otherwise (piped output, redirected-to-file
// output, and every non-*os.File writer used in tests).
func colorize(w io.Writer, code, s string) string {
	if !isTerminal(w) {
		return s
	}
	return code + s + ansiReset
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorScore(w io.Writer, score float64) string {
	return colorize(w, ansiGreen, fmt.Sprintf("%.3f", score))
}
