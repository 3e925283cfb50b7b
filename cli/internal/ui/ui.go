// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/pterm/pterm"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// DisableColor turns off colors in every renderer.
func DisableColor() {
	color.NoColor = true
	pterm.DisableColor()
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Printer writes styled output to Out and diagnostics to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New creates a Printer.
func New(out, err io.Writer) *Printer {
	return &Printer{Out: out, Err: err}
}

// Header prints a title with a subtitle under it.
func (p *Printer) Header(title, subtitle string) {
	header := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			TitleStyle.Render(title),
			SecondaryStyle.Render(subtitle),
		))
	fmt.Fprintln(p.Out, header)
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(p.Out, out)
	return nil
}

// Markdown renders markdown content
func (p *Printer) Markdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(p.Out, out)
	return nil
}

// CodeBlock prints code under a dim language label.
func (p *Printer) CodeBlock(code, language string) {
	if language != "" {
		fmt.Fprintln(p.Out, SecondaryStyle.Render("-- "+language))
	}
	fmt.Fprintln(p.Out, code)
}

// Diff prints old and new line by line, marking lines that differ.
func (p *Printer) Diff(old, new string) {
	oldLines := strings.Split(old, "\n")
	newLines := strings.Split(new, "\n")

	for i := 0; i < len(oldLines) || i < len(newLines); i++ {
		switch {
		case i < len(oldLines) && i < len(newLines):
			if oldLines[i] != newLines[i] {
				fmt.Fprintln(p.Out, ErrorStyle.Render("- "+oldLines[i]))
				fmt.Fprintln(p.Out, SuccessStyle.Render("+ "+newLines[i]))
			} else {
				fmt.Fprintln(p.Out, "  "+oldLines[i])
			}
		case i < len(oldLines):
			fmt.Fprintln(p.Out, ErrorStyle.Render("- "+oldLines[i]))
		default:
			fmt.Fprintln(p.Out, SuccessStyle.Render("+ "+newLines[i]))
		}
	}
}

// Status prints label in the color registered under kind by ColorPrinters,
// followed by message.
func (p *Printer) Status(kind, label, message string) {
	c, ok := ColorPrinters()[kind]
	if !ok {
		c = color.New()
	}
	c.Fprint(p.Out, label)
	fmt.Fprintln(p.Out, " "+message)
}

// ColorPrinters returns color printers for common use cases
func ColorPrinters() map[string]*color.Color {
	return map[string]*color.Color{
		"success": color.New(color.FgGreen, color.Bold),
		"error":   color.New(color.FgRed, color.Bold),
		"warning": color.New(color.FgYellow, color.Bold),
		"info":    color.New(color.FgCyan),
		"primary": color.New(color.FgCyan, color.Bold),
	}
}
