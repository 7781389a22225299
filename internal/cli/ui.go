package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/pmux/pkg/command"
	"github.com/matzehuels/pmux/pkg/manager"
	"github.com/matzehuels/pmux/pkg/manifest"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleNumber for numeric values.
	StyleNumber = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleLayer = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// =============================================================================
// Key-Value Output
// =============================================================================

// printDescriptor prints a detected package manager and where it came from.
func printDescriptor(d manager.Descriptor, layer, dir string) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + StyleTitle.Render(d.String()))
	if d.HasVersion() {
		printKeyValue("version", d.Version)
	}
	if d.BuildMeta != "" {
		printKeyValue("integrity", d.BuildMeta)
	}
	if d.Name == manager.Yarn {
		printKeyValue("dialect", d.Dialect().String())
	}
	if layer != "" {
		printKeyValue("evidence", styleLayer.Render(layer))
	}
	if dir != "" {
		printKeyValue("directory", dir)
	}
	for _, w := range d.Warnings {
		printWarning("%s", w)
	}
}

// printWorkspaces lists the workspace packages of the project rooted at dir.
func printWorkspaces(dir string) {
	pkgs, source := manifest.WorkspacePackages(dir)
	if source == "" {
		return
	}
	printKeyValue("workspaces", source+" "+StyleDim.Render(fmt.Sprintf("(%d packages)", len(pkgs))))
	for _, p := range pkgs {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		printDetail("%-24s %s", name, p.Dir)
	}
}

// printCommands shows what install and dlx expand to for d.
func printCommands(d manager.Descriptor) {
	if line, err := command.Format(d, command.Install, command.Options{}); err == nil {
		printKeyValue("install", line)
	}
	if line, err := command.Format(d, command.Dlx, command.Options{Script: "<package>", Short: true}); err == nil {
		printKeyValue("dlx", line)
	}
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Utilities
// =============================================================================

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}
