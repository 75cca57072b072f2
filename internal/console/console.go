// Package console prints operator-facing messages, coloured when the output
// is a terminal.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"golang.org/x/term"
)

type painter interface {
	Sprint(a ...any) string
}

var (
	colInfo  painter = color.Info
	colWarn  painter = color.Warn
	colError painter = color.Error
	colArrow painter = color.HEX("#FFEB3B")
	colNote  painter = color.HEX("#1976D2")
)

// Printer writes messages to W.
type Printer struct {
	W     io.Writer
	Color bool
}

// New returns a printer that colours only when w is a terminal.
func New(w io.Writer) *Printer {
	p := &Printer{W: w}
	if f, ok := w.(*os.File); ok {
		p.Color = term.IsTerminal(int(f.Fd()))
	}
	return p
}

// Discard swallows everything.
func Discard() *Printer {
	return &Printer{W: io.Discard}
}

func (p *Printer) paint(c painter, s string) string {
	if !p.Color {
		return s
	}
	return c.Sprint(s)
}

// Printf writes unstyled text.
func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.W, format, a...)
}

// Step prints an arrow-prefixed progress line.
func (p *Printer) Step(format string, a ...any) {
	fmt.Fprintf(p.W, "%s%s\n", p.paint(colArrow, "-> "), p.paint(colNote, fmt.Sprintf(format, a...)))
}

// Info prints an informational line.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintln(p.W, p.paint(colInfo, fmt.Sprintf(format, a...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, a ...any) {
	fmt.Fprintln(p.W, p.paint(colWarn, fmt.Sprintf(format, a...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, a ...any) {
	fmt.Fprintln(p.W, p.paint(colError, fmt.Sprintf(format, a...)))
}

// Command announces an external invocation before it runs.
func (p *Printer) Command(text, step string) {
	if step != "" {
		step = " (" + step + ")"
	}
	fmt.Fprintf(p.W, "\n%s%s\n", p.paint(colArrow, "> "), text+step)
}

// Block prints captured tool output, skipping empty text.
func (p *Printer) Block(text string) {
	if text == "" {
		return
	}
	fmt.Fprint(p.W, text)
	if text[len(text)-1] != '\n' {
		fmt.Fprintln(p.W)
	}
}
