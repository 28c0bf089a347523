// Package ui renders slip's terminal output: status icons, muted detail lines
// and small formatting helpers.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Icons used as line prefixes.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
)

// Color palette
var (
	colorPass   = lipgloss.AdaptiveColor{Light: "28", Dark: "76"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "130", Dark: "214"}
	colorFail   = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	colorAccent = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}
	colorMuted  = lipgloss.Color("242")
)

// Styles
var (
	PassStyle   = lipgloss.NewStyle().Foreground(colorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	AccentStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
)

func init() {
	if !ShouldUseColor() {
		DisableColor()
	}
}

// DisableColor forces plain output for every style.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// RenderPassIcon renders the success icon.
func RenderPassIcon() string { return PassStyle.Render(IconPass) }

// RenderWarnIcon renders the warning icon.
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }

// RenderFailIcon renders the failure icon.
func RenderFailIcon() string { return FailStyle.Render(IconFail) }

// RenderAccent renders s highlighted.
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderMuted renders s de-emphasized.
func RenderMuted(s string) string { return MutedStyle.Render(s) }
