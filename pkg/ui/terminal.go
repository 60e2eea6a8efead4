// Package ui holds the terminal output helpers used by the CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// ASCIILogo is printed by the CLI banner
const ASCIILogo = `
    ╔═══════════════════════════════════════════════════════════╗
    ║ ██████╗ ███████╗███████╗██╗      ██████╗ ██████╗  █████╗ ██████╗  ║
    ║ ██╔══██╗██╔════╝██╔════╝██║     ██╔════╝ ██╔══██╗██╔══██╗██╔══██╗ ║
    ║ ██████╔╝█████╗  █████╗  ██║     ██║  ███╗██████╔╝███████║██████╔╝ ║
    ║ ██╔══██╗██╔══╝  ██╔══╝  ██║     ██║   ██║██╔══██╗██╔══██║██╔══██╗ ║
    ║ ██║  ██║███████╗███████╗███████╗╚██████╔╝██║  ██║██║  ██║██████╔╝ ║
    ║ ╚═╝  ╚═╝╚══════╝╚══════╝╚══════╝ ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝  ║
    ║             INSTAGRAM REEL EXTRACTION UTILITY                    ║
    ╚═══════════════════════════════════════════════════════════╝
`

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonRed     = lipgloss.Color("#FF3131")
	dimWhite    = lipgloss.Color("#B0B0B0")

	logoStyle    = lipgloss.NewStyle().Foreground(neonCyan).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(neonCyan)
	valueStyle   = lipgloss.NewStyle().Foreground(neonYellow)
	errorStyle   = lipgloss.NewStyle().Foreground(neonRed).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(neonGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(neonYellow)
	accentStyle  = lipgloss.NewStyle().Foreground(neonMagenta).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(dimWhite).Faint(true)
)

// Output is where the Print helpers write
var Output io.Writer = os.Stdout

// Color helpers for inline use
var (
	Cyan    = labelStyle.Render
	Yellow  = valueStyle.Render
	Red     = errorStyle.Render
	Green   = successStyle.Render
	Magenta = accentStyle.Render
	Dim     = dimStyle.Render
)

// PrintLogo prints the ASCII logo
func PrintLogo() {
	fmt.Fprint(Output, logoStyle.Render(ASCIILogo))
	fmt.Fprintln(Output)
}

// PrintError prints an error message, with an optional cause
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, errorStyle.Render(msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, successStyle.Render(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintWarning prints a warning message, with an optional cause
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, warnStyle.Render(msg))
}

// PrintHighlight prints a highlighted message
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, accentStyle.Render(msg))
}
