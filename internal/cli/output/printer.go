// Package output provides CLI output formatting utilities.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer handles formatted output to the terminal.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func NewPrinter(useColors bool) *Printer {
	return &Printer{out: os.Stdout, err: os.Stderr, useColors: useColors}
}

// NewPrinterWithWriters is used by tests to capture output.
func NewPrinterWithWriters(out, errOut io.Writer, useColors bool) *Printer {
	return &Printer{out: out, err: errOut, useColors: useColors}
}

// Header prints a bold section heading.
func (p *Printer) Header(text string) {
	if p.useColors {
		color.New(color.Bold).Fprintln(p.out, text)
		return
	}
	fmt.Fprintln(p.out, text)
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// Success prints a confirmation line.
func (p *Printer) Success(format string, a ...any) {
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, format+"\n", a...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", a...)
}

// Error prints an error line to stderr.
func (p *Printer) Error(format string, a ...any) {
	if p.useColors {
		color.New(color.FgRed, color.Bold).Fprintf(p.err, "Error: "+format+"\n", a...)
		return
	}
	fmt.Fprintf(p.err, "[ERROR] "+format+"\n", a...)
}

// Bold returns text wrapped in bold escape codes when colors are enabled.
func (p *Printer) Bold(text string) string {
	if p.useColors {
		return color.New(color.Bold).Sprint(text)
	}
	return text
}
