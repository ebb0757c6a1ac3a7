package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Logger writes leveled, colored messages to stderr. Workers never log
// directly while the build reporter owns the terminal; they emit events
// instead.
type Logger struct {
	Writer    io.Writer
	Color     bool
	Verbosity int
}

// NewLogger creates a logger writing to stderr with color auto-detection.
func NewLogger(verbosity int) *Logger {
	return &Logger{
		Writer:    os.Stderr,
		Color:     UseColor(),
		Verbosity: verbosity,
	}
}

var (
	infoTag    = color.New(color.FgCyan).Sprint("[INFO]")
	warnTag    = color.New(color.FgYellow).Sprint("[WARN]")
	errorTag   = color.New(color.FgRed, color.Bold).Sprint("[ERROR]")
	successTag = color.New(color.FgGreen).Sprint("[OK]")
	debugTag   = color.New(color.Faint).Sprint("[DEBUG]")
)

func (l *Logger) log(tag, plain, format string, args ...any) {
	if !l.Color {
		tag = plain
	}
	fmt.Fprintf(l.Writer, "%s %s\n", tag, fmt.Sprintf(format, args...))
}

// Info logs a normal progress message.
func (l *Logger) Info(format string, args ...any) {
	l.log(infoTag, "[INFO]", format, args...)
}

// Warn logs a recoverable problem.
func (l *Logger) Warn(format string, args ...any) {
	l.log(warnTag, "[WARN]", format, args...)
}

// Error logs a failure.
func (l *Logger) Error(format string, args ...any) {
	l.log(errorTag, "[ERROR]", format, args...)
}

// Success logs a completed step.
func (l *Logger) Success(format string, args ...any) {
	l.log(successTag, "[OK]", format, args...)
}

// Debug logs only at verbosity 2 or higher.
func (l *Logger) Debug(format string, args ...any) {
	if l.Verbosity < 2 {
		return
	}
	l.log(debugTag, "[DEBUG]", format, args...)
}

// Suggest prints a follow-up hint under an error message.
func (l *Logger) Suggest(hint string) {
	if hint == "" {
		return
	}
	fmt.Fprintf(l.Writer, "       %s\n", Dimmed("hint: "+hint, l.Color))
}

// IsCI reports whether we are running inside a CI environment.
func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("OPENSHIFT_CI") == "true"
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
