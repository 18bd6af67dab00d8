package utils

import "github.com/pterm/pterm"

func Cyan(text string) string        { return pterm.Cyan(text) }
func Green(text string) string       { return pterm.Green(text) }
func Yellow(text string) string      { return pterm.Yellow(text) }
func BrightWhite(text string) string { return pterm.LightWhite(text) }
func Bold(text string) string        { return pterm.Bold.Sprint(text) }
func Dim(text string) string         { return pterm.Gray(text) }

// DisableColor strips styling from everything printed afterwards, for
// non-terminal output and tests.
func DisableColor() {
	pterm.DisableStyling()
}
