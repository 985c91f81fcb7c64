// Package util provides positional diagnostics shared by every compiler
// stage: lexer, parser, semantic analyzer, and code generator.
package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/toyc-lang/toycc/pkg/token"
)

var (
	sourceName string
	sourceText string
)

// SetSource records the file name and text currently being compiled, so
// diagnostics can print the offending source line.
func SetSource(name, text string) {
	sourceName, sourceText = name, text
}

func errorLine(tok token.Token) string {
	if sourceText == "" {
		return ""
	}
	lines := strings.Split(sourceText, "\n")
	if tok.Line < 1 || tok.Line > len(lines) {
		return ""
	}
	return lines[tok.Line-1]
}

func printCaret(stream *os.File, tok token.Token) {
	line := errorLine(tok)
	if line == "" {
		return
	}
	fmt.Fprintf(stream, "  %s\n", line)
	col := tok.Column - 1
	if col < 0 {
		col = 0
	}
	fmt.Fprintf(stream, "  %s\033[32m^\033[0m\n", strings.Repeat(" ", col))
}

func filename() string {
	if sourceName == "" {
		return "<stdin>"
	}
	return sourceName
}

// Error reports a fatal diagnostic at tok's position and terminates the
// process with exit status 1. There is no error-list accumulation: the
// first diagnostic wins.
func Error(tok token.Token, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[31merror:\033[0m ", filename(), tok.Line, tok.Column)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	printCaret(os.Stderr, tok)
	os.Exit(1)
}

// Warn reports a non-fatal diagnostic. Unlike Error it never aborts
// compilation.
func Warn(wt Warning, tok token.Token, format string, args ...interface{}) {
	if !IsWarningEnabled(wt) {
		return
	}
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[33mwarning:\033[0m ", filename(), tok.Line, tok.Column)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", WarningName(wt))
	printCaret(os.Stderr, tok)
}

// InternalError reports a compiler bug — an invariant that should be
// unreachable on well-formed input — and terminates with exit status 2 so
// callers can distinguish "your program is wrong" (exit 1) from "the
// compiler is broken" (exit 2).
func InternalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "toycc: internal error: ")
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr)
	os.Exit(2)
}
