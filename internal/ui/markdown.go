package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// MarkdownRenderer renders model answers for the terminal.
type MarkdownRenderer struct {
	r *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer wrapping at width columns. With
// colors disabled the renderer passes text through unchanged.
func NewMarkdownRenderer(width int, colors bool) *MarkdownRenderer {
	if !colors {
		return &MarkdownRenderer{}
	}
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(nordStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{r: r}
}

// Render renders markdown text, falling back to plain text on error
func (m *MarkdownRenderer) Render(content string) string {
	if m == nil || m.r == nil {
		return content
	}
	rendered, err := m.r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// nordStyle is a compact dark style in the Nord palette.
func nordStyle() ansi.StyleConfig {
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#d8dee9")},
			Margin:         uintPtr(0),
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#88c0d0"), Bold: boolPtr(true)},
		},
		H1: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#88c0d0"), Bold: boolPtr(true)},
			Margin:         uintPtr(1),
		},
		H2: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#81a1c1"), Bold: boolPtr(true)},
		},
		H3: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#5e81ac"), Bold: boolPtr(true)},
		},
		Strong:   ansi.StylePrimitive{Bold: boolPtr(true)},
		Emph:     ansi.StylePrimitive{Italic: boolPtr(true)},
		Link:     ansi.StylePrimitive{Color: stringPtr("#88c0d0"), Underline: boolPtr(true)},
		LinkText: ansi.StylePrimitive{Color: stringPtr("#8fbcbb")},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#a3be8c")},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#d8dee9")},
				Margin:         uintPtr(1),
			},
			Theme: "nord",
		},
		List: ansi.StyleList{
			LevelIndent: 2,
		},
		Item:        ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{Color: stringPtr("#88c0d0"), Format: "%d. "},
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: stringPtr("#4c566a"), Italic: boolPtr(true)},
			Indent:         uintPtr(1),
			IndentToken:    stringPtr("│ "),
		},
	}
}

func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }
func uintPtr(u uint) *uint       { return &u }
