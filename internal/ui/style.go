package ui

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
)

// Logical pixels per terminal cell
const (
	cellWidth  = 8
	cellHeight = 16
)

// AuthorColor highlights the "[author]" label
var AuthorColor = lipgloss.Color("#ff907f")

// surface is the dark backdrop the overlay background is blended over
var surface = [3]float64{0x1E, 0x1E, 0x2E}

// Appearance is the immutable window configuration passed once at construction
type Appearance struct {
	Width       int // logical px
	Height      int // logical px
	Decorations bool
	Opacity     float64 // 0 keeps the terminal background
	FontSize    int
}

// Cells converts the logical window size into terminal columns and rows
func (a Appearance) Cells() (int, int) {
	return max(a.Width/cellWidth, 10), max(a.Height/cellHeight, 3)
}

// backgroundColor blends black at the configured opacity over the surface colour
func backgroundColor(opacity float64) (lipgloss.Color, bool) {
	if opacity <= 0 {
		return "", false
	}
	opacity = math.Min(opacity, 1)

	var rgb [3]int
	for i, c := range surface {
		rgb[i] = int(math.Round(c * (1 - opacity)))
	}
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", rgb[0], rgb[1], rgb[2])), true
}

type styles struct {
	author lipgloss.Style
	body   lipgloss.Style
	frame  lipgloss.Style
	title  lipgloss.Style
}

func newStyles(a Appearance) styles {
	s := styles{
		author: lipgloss.NewStyle().Foreground(AuthorColor).Bold(true),
		body:   lipgloss.NewStyle(),
		frame:  lipgloss.NewStyle(),
		title:  lipgloss.NewStyle().Foreground(AuthorColor).Bold(true),
	}

	if bg, ok := backgroundColor(a.Opacity); ok {
		s.frame = s.frame.Background(bg)
	}
	if a.Decorations {
		s.frame = s.frame.Border(lipgloss.RoundedBorder()).BorderForeground(AuthorColor)
	}
	return s
}
