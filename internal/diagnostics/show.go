package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorMode selects whether diagnostics are colored.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode accepts "auto", "always" and "never" ("" means auto).
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
}

// UseColor resolves mode against the writer diagnostics will go to.
func UseColor(w io.Writer, mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	// NO_COLOR convention: https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Show renders the error over several lines: the headline, the chain of
// importing files, the offending source line and a caret under the
// offending column.
func (e *DiagnosticError) Show(colored bool) string {
	headline := color.New(color.FgRed, color.Bold)
	caret := color.New(color.FgGreen, color.Bold)
	if colored {
		headline.EnableColor()
		caret.EnableColor()
	} else {
		headline.DisableColor()
		caret.DisableColor()
	}

	var sb strings.Builder
	sb.WriteString(headline.Sprint(e.Error()))
	sb.WriteByte('\n')
	for _, imp := range e.Imports {
		fmt.Fprintf(&sb, "\timported from %q\n", imp)
	}
	if e.SourceLine != "" && e.HasPosition() {
		sb.WriteString(e.SourceLine)
		sb.WriteByte('\n')
		sb.WriteString(caretIndent(e.SourceLine, e.Token.Column))
		sb.WriteString(caret.Sprint("^"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// caretIndent keeps tabs of the source line so the caret lines up.
func caretIndent(line string, column int) string {
	var sb strings.Builder
	i := 1
	for _, r := range line {
		if i >= column {
			break
		}
		if r == '\t' {
			sb.WriteByte('\t')
		} else {
			sb.WriteByte(' ')
		}
		i++
	}
	for ; i < column; i++ {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// Printer is the reporting sink for diagnostics.
type Printer struct {
	w       io.Writer
	colored bool
}

func NewPrinter(w io.Writer, colored bool) *Printer {
	return &Printer{w: w, colored: colored}
}

// Print writes err, rendered in full if it is a DiagnosticError.
func (p *Printer) Print(err error) {
	var de *DiagnosticError
	if errors.As(err, &de) {
		fmt.Fprint(p.w, de.Show(p.colored))
		return
	}
	fmt.Fprintf(p.w, "infact: %s\n", err)
}
