package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/abdul-hamid-achik/codeagent/internal/tools"
	"github.com/abdul-hamid-achik/codeagent/internal/ui/highlight"
)

// Limits for tool result previews.
const (
	previewMaxBytes = 500
	previewMaxLines = 10
)

// OutputHandler handles console output with colors
type OutputHandler struct {
	out         io.Writer
	errOut      io.Writer
	useColors   bool
	highlighter *highlight.Highlighter
	markdown    *MarkdownRenderer
}

// NewOutputHandler writes to stdout and stderr. Colors are used only when
// stdout is a terminal and NO_COLOR is unset.
func NewOutputHandler() *OutputHandler {
	useColors := term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	width := 100
	if useColors {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
			width = min(w-2, 120)
		}
	}
	return newOutputHandler(os.Stdout, os.Stderr, useColors, width)
}

// NewOutputHandlerTo writes to the given writers without colors.
func NewOutputHandlerTo(out, errOut io.Writer) *OutputHandler {
	return newOutputHandler(out, errOut, false, 0)
}

func newOutputHandler(out, errOut io.Writer, useColors bool, width int) *OutputHandler {
	return &OutputHandler{
		out:         out,
		errOut:      errOut,
		useColors:   useColors,
		highlighter: highlight.New(useColors),
		markdown:    NewMarkdownRenderer(width, useColors),
	}
}

// style applies a style if colors are enabled
func (o *OutputHandler) style(s lipgloss.Style, text string) string {
	if !o.useColors {
		return text
	}
	return s.Render(text)
}

// IsTTY returns true if the output is a terminal (not piped/redirected)
func (o *OutputHandler) IsTTY() bool {
	return o.useColors
}

// Text outputs regular text
func (o *OutputHandler) Text(text string) {
	fmt.Fprint(o.out, text)
}

// TextLn outputs regular text with newline
func (o *OutputHandler) TextLn(text string) {
	fmt.Fprintln(o.out, text)
}

// Answer prints a final model answer, rendered as markdown on a terminal.
func (o *OutputHandler) Answer(markdown string) {
	fmt.Fprintln(o.out, o.markdown.Render(markdown))
}

// ToolCall outputs a tool call notification
func (o *OutputHandler) ToolCall(name, summary string) {
	line := o.style(toolCallStyle, "⚡ ") + o.style(toolNameStyle, name)
	if summary != "" {
		line += o.style(dimStyle, " - "+summary)
	}
	fmt.Fprintln(o.out, line)
}

// ToolResult outputs a tool result preview. Markdown code fences in the
// result are highlighted.
func (o *OutputHandler) ToolResult(name, result string, isError bool) {
	if isError {
		fmt.Fprintln(o.out, o.style(toolErrorStyle, "✗ ")+o.style(toolErrorStyle, name+": ")+result)
		return
	}
	o.preview(name, o.highlighter.HighlightMarkdownCodeBlocks(truncatePreview(result)))
}

// FilePreview outputs a successful read_file result highlighted by the
// file's language.
func (o *OutputHandler) FilePreview(name, path, content string) {
	o.preview(name, o.highlighter.HighlightFile(path, truncatePreview(content)))
}

// MatchesPreview outputs search_code hits, each colored by its file's
// language.
func (o *OutputHandler) MatchesPreview(name, output string) {
	o.preview(name, o.highlighter.HighlightMatches(truncatePreview(output)))
}

func (o *OutputHandler) preview(name, display string) {
	fmt.Fprintln(o.out, o.style(toolOKStyle, "✓ "+name))
	if display == "" || display == "(no output)" {
		return
	}
	lines := strings.Split(display, "\n")
	if len(lines) > previewMaxLines {
		lines = append(lines[:previewMaxLines], "... (truncated)")
	}
	for _, line := range lines {
		fmt.Fprintln(o.out, o.style(dimStyle, "  │ ")+line)
	}
}

func truncatePreview(s string) string {
	if len(s) <= previewMaxBytes {
		return s
	}
	return s[:previewMaxBytes] + "..."
}

// Error outputs an error message
func (o *OutputHandler) Error(err error) {
	o.ErrorStr(err.Error())
}

// ErrorStr outputs an error string
func (o *OutputHandler) ErrorStr(msg string) {
	fmt.Fprintln(o.errOut, o.style(errorStyle, "Error: ")+msg)
}

// Warning outputs a warning message
func (o *OutputHandler) Warning(msg string) {
	fmt.Fprintln(o.errOut, o.style(warningStyle, "Warning: ")+msg)
}

// Success outputs a success message
func (o *OutputHandler) Success(msg string) {
	fmt.Fprintln(o.out, o.style(successStyle, "✓ ")+msg)
}

// Info outputs an info message
func (o *OutputHandler) Info(msg string) {
	fmt.Fprintln(o.out, o.style(infoStyle, "ℹ ")+msg)
}

// Done outputs a completion message
func (o *OutputHandler) Done() {
	fmt.Fprintln(o.out)
}

// Prompt outputs a prompt
func (o *OutputHandler) Prompt(prompt string) {
	fmt.Fprint(o.out, o.style(promptStyle, prompt))
}

// PermissionPrompt outputs a permission prompt
func (o *OutputHandler) PermissionPrompt(toolName string, level tools.PermissionLevel, description string) {
	levelStyle := infoStyle
	icon := "👁"
	switch level {
	case tools.PermissionWrite:
		levelStyle, icon = warningStyle, "✏️"
	case tools.PermissionExecute:
		levelStyle, icon = errorStyle, "⚠️"
	}

	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.style(levelStyle.Bold(true), fmt.Sprintf("%s Permission Required: %s", icon, toolName)))
	fmt.Fprintln(o.out, o.style(dimStyle, "   Level: ")+o.style(levelStyle, level.String()))
	if description != "" {
		fmt.Fprintln(o.out, o.style(dimStyle, "   Action: ")+description)
	}
	fmt.Fprintln(o.out)
}

// Header outputs a header
func (o *OutputHandler) Header(text string) {
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, o.style(headerStyle, text))
	fmt.Fprintln(o.out)
}

// Separator outputs a horizontal line
func (o *OutputHandler) Separator() {
	fmt.Fprintln(o.out, o.style(dimStyle, strings.Repeat("─", 40)))
}

// ModelInfo outputs the current model info
func (o *OutputHandler) ModelInfo(model string) {
	fmt.Fprintln(o.out, o.style(dimStyle, "Using model: ")+o.style(toolNameStyle, model))
}
