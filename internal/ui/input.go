package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// continuationPrompt is shown while a line ending in a backslash is being
// continued.
const continuationPrompt = "... "

// InputHandler reads tasks and permission answers from the user.
type InputHandler struct {
	reader *bufio.Reader
	prompt io.Writer
}

// NewInputHandler reads from stdin and prompts on stdout.
func NewInputHandler() *InputHandler {
	return NewInputHandlerFrom(os.Stdin, os.Stdout)
}

// NewInputHandlerFrom reads from r and writes prompts to w.
func NewInputHandlerFrom(r io.Reader, w io.Writer) *InputHandler {
	return &InputHandler{
		reader: bufio.NewReader(r),
		prompt: w,
	}
}

// ReadLine reads one logical line. A physical line ending in a backslash
// is joined with the next one by a newline, so a multi-line task can be
// typed or pasted. A final line without a newline is returned before
// io.EOF.
func (h *InputHandler) ReadLine(prompt string) (string, error) {
	var parts []string
	for {
		fmt.Fprint(h.prompt, prompt)
		line, err := h.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if len(parts) > 0 {
				return strings.TrimSpace(strings.Join(parts, "\n")), nil
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.HasSuffix(line, `\`) && err == nil {
			parts = append(parts, strings.TrimSuffix(line, `\`))
			prompt = continuationPrompt
			continue
		}
		parts = append(parts, strings.TrimSuffix(line, `\`))
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	}
}
