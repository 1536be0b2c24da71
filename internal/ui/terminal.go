package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 - fd fits in int
}

// ShouldUseColor applies the NO_COLOR / CLICOLOR / CLICOLOR_FORCE conventions,
// falling back to whether stdout is a terminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ApplyColorProfile switches lipgloss to plain ASCII when color is unwanted,
// so piped output and JSON logs never carry escape sequences.
func ApplyColorProfile() {
	if ShouldUseColor() {
		if os.Getenv("CLICOLOR_FORCE") != "" && lipgloss.ColorProfile() == termenv.Ascii {
			lipgloss.SetColorProfile(termenv.ANSI256)
		}
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}
