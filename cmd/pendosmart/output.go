package main

import (
	"fmt"
	"os"
)

// ANSI escapes for terminal feedback. Everything here writes to stderr so
// stdout stays pipeable for table and JSON output.
const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

func colorize(code, s string) string {
	if noColor {
		return s
	}
	return code + s + ansiReset
}

// emit prints one glyph-prefixed feedback line.
func emit(code, glyph, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(code, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { emit(ansiGreen, "✓", format, args...) }
func printError(format string, args ...any)   { emit(ansiRed, "✗", format, args...) }
func printWarning(format string, args ...any) { emit(ansiYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { emit(ansiCyan, "→", format, args...) }

// printStatus renders an indented "Label: value" line for status displays.
func printStatus(label, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n", colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}
