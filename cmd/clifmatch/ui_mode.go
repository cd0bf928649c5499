package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode, out io.Writer) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(out)
	}
}

// useColor resolves --color against the manifest and the terminal. It
// also sets the global fatih/color switch so every colored string agrees.
func (a *app) useColor(cmd *cobra.Command) (bool, error) {
	value, err := stringSetting(cmd, "color", a.cfg.UI.Color)
	if err != nil {
		return false, err
	}
	var enabled bool
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		enabled = isTerminal(cmd.ErrOrStderr())
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
	color.NoColor = !enabled
	return enabled, nil
}
