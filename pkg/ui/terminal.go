package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// Banner printed at the start of a grab
const Banner = `
  ╔═══════════════════════════════════════╗
  ║  e621dl · tag resolution & retrieval  ║
  ╚═══════════════════════════════════════╝
`

var (
	// Out receives all user-facing output
	Out io.Writer = os.Stdout

	colorEnabled atomic.Bool
	quietMode    atomic.Bool
)

func init() {
	colorEnabled.Store(detectColor(os.Stdout))
}

// detectColor enables color for terminals unless NO_COLOR is set
func detectColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// IsTerminal reports whether stdout is attached to a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// SetColorEnabled forces ANSI colors on or off
func SetColorEnabled(enabled bool) { colorEnabled.Store(enabled) }

// ColorEnabled reports whether output is colored
func ColorEnabled() bool { return colorEnabled.Load() }

// SetQuietMode suppresses everything but errors and the final summary
func SetQuietMode(quiet bool) { quietMode.Store(quiet) }

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool { return quietMode.Load() }

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
	Bold    = colorize("\033[1m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes when
// color is enabled
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the banner
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(Out, Cyan(Banner))
}

// PrintError prints an error message in red. It is shown in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprint(args...)
	}
	fmt.Fprintln(Out, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(Out, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(Out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprint(args...)
	}
	fmt.Fprintln(Out, Yellow(msg))
}
