package ui

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
)

const (
	BoxWidth = 46
)

var (
	// Color/style functions
	Bold   = color.New(color.Bold).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()

	// Output destination
	Out io.Writer = os.Stderr
)

// Header prints the top border with "testbox" branding.
func Header() {
	border := strings.Repeat("─", BoxWidth-10)
	fmt.Fprintf(Out, "  %s %s %s\n", Dim("┌"), Bold("testbox"), Dim(border))
}

// Footer prints the bottom border.
func Footer() {
	fmt.Fprintf(Out, "  %s\n", Dim("└"+strings.Repeat("─", BoxWidth-1)))
}

// Info prints an informational message with a cyan arrow.
func Info(format string, args ...any) {
	fmt.Fprintf(Out, "  %s %s\n", Cyan("→"), fmt.Sprintf(format, args...))
}

// Success prints a success message with a green checkmark.
func Success(format string, args ...any) {
	fmt.Fprintf(Out, "  %s %s\n", Green("✔"), fmt.Sprintf(format, args...))
}

// Fail prints an error message with a red X.
func Fail(format string, args ...any) {
	fmt.Fprintf(Out, "  %s %s\n", Red("✘"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message with a yellow circle.
func Warn(format string, args ...any) {
	fmt.Fprintf(Out, "  %s %s\n", Yellow("○"), fmt.Sprintf(format, args...))
}

// DimMsg prints a dimmed message.
func DimMsg(format string, args ...any) {
	fmt.Fprintf(Out, "  %s\n", Dim(fmt.Sprintf(format, args...)))
}

// BlankLine prints a blank line.
func BlankLine() {
	fmt.Fprintln(Out, "")
}

// Fixture prints a ready container with one line per published port, in port order.
func Fixture(name, image string, endpoints map[int]string) {
	Success("%s %s", Bold(name), Dim(image))
	for _, port := range slices.Sorted(maps.Keys(endpoints)) {
		fmt.Fprintf(Out, "      %s %s\n", Dim(fmt.Sprintf("%d/tcp →", port)), endpoints[port])
	}
}

// Elapsed prints how long an operation took, rounded to milliseconds.
func Elapsed(what string, d time.Duration) {
	DimMsg("%s in %s", what, d.Round(time.Millisecond))
}
