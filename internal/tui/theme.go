package tui

import (
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// Theme is the small palette the progress view and markdown renderer share.
type Theme struct {
	Primary   colorful.Color
	Secondary colorful.Color
	Accent    colorful.Color
	FgBase    colorful.Color
	FgMuted   colorful.Color
	Success   colorful.Color
	Error     colorful.Color
	Warning   colorful.Color
	CodeBg    colorful.Color
}

// DefaultTheme is a dark palette.
var DefaultTheme = Theme{
	Primary:   mustHex("#60a5fa"), // Sky blue
	Secondary: mustHex("#a78bfa"), // Violet
	Accent:    mustHex("#34d399"), // Emerald
	FgBase:    mustHex("#f8fafc"),
	FgMuted:   mustHex("#94a3b8"),
	Success:   mustHex("#34d399"),
	Error:     mustHex("#f87171"),
	Warning:   mustHex("#fbbf24"),
	CodeBg:    mustHex("#1e293b"),
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (t Theme) style(c colorful.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Gradient renders text with a horizontal HCL blend from c1 to c2, one
// color per grapheme cluster.
func Gradient(text string, c1, c2 colorful.Color) string {
	var clusters []string
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		clusters = append(clusters, gr.Str())
	}
	if len(clusters) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, cluster := range clusters {
		t := 0.0
		if len(clusters) > 1 {
			t = float64(i) / float64(len(clusters)-1)
		}
		var fg color.Color = c1.BlendHcl(c2, t).Clamped()
		sb.WriteString(lipgloss.NewStyle().Foreground(fg).Bold(true).Render(cluster))
	}
	return sb.String()
}
