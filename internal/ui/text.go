package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Formatter renders one kind of CLI text. Without color the plain prefix
// and suffix stand in for it.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f Formatter) Sprint(a ...any) string {
	return f.render(fmt.Sprint(a...))
}

func (f Formatter) Sprintf(format string, a ...any) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// noColor honors NO_COLOR (https://no-color.org/) and fatih/color's own
// terminal detection.
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Code formats commands, `backticks` without color.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path formats file paths.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight formats user values such as database identifiers and URLs,
	// 'single quotes' without color.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary details, (parentheses) without color.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)

// Done writes a "✓ message" line to w.
func Done(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", Success.Sprint("✓"), fmt.Sprintf(format, a...))
}

// Fail writes a "✗ message" line to w.
func Fail(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", Error.Sprint("✗"), fmt.Sprintf(format, a...))
}

// Hint writes a "→ message" line to w.
func Hint(w io.Writer, format string, a ...any) {
	fmt.Fprintf(w, "%s %s\n", Info.Sprint("→"), fmt.Sprintf(format, a...))
}
