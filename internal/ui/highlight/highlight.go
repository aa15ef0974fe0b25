// Package highlight colors code snippets for terminal previews.
package highlight

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter colors tool output. A disabled one returns input unchanged.
type Highlighter struct {
	enabled   bool
	formatter chroma.Formatter
	style     *chroma.Style

	mu     sync.Mutex
	byExt  map[string]chroma.Lexer
	byLang map[string]chroma.Lexer
}

func New(enabled bool) *Highlighter {
	return &Highlighter{
		enabled:   enabled,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("monokai"),
		byExt:     make(map[string]chroma.Lexer),
		byLang:    make(map[string]chroma.Lexer),
	}
}

// HighlightFile highlights content using the lexer matching path's name.
func (h *Highlighter) HighlightFile(path, content string) string {
	if !h.enabled {
		return content
	}
	return h.format(h.lexerForPath(path), content)
}

// HighlightMatches highlights grep-style "path:line:text" output. Each
// hit's text is colored by the language of its own file; lines that do not
// parse as hits are left alone.
func (h *Highlighter) HighlightMatches(output string) string {
	if !h.enabled {
		return output
	}
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		if _, err := strconv.Atoi(parts[1]); err != nil {
			continue
		}
		text := strings.TrimRight(h.format(h.lexerForPath(parts[0]), parts[2]), "\n")
		lines[i] = parts[0] + ":" + parts[1] + ":" + text
	}
	return strings.Join(lines, "\n")
}

// fencePattern matches a markdown code fence with an optional language.
var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")

// HighlightMarkdownCodeBlocks replaces fenced code blocks with their
// highlighted bodies.
func (h *Highlighter) HighlightMarkdownCodeBlocks(text string) string {
	if !h.enabled {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:m[0]])
		lang, body := text[m[2]:m[3]], strings.TrimSuffix(text[m[4]:m[5]], "\n")
		b.WriteString(h.format(h.lexerForLanguage(lang, body), body))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func (h *Highlighter) lexerForPath(path string) chroma.Lexer {
	base := filepath.Base(path)
	key := filepath.Ext(base)
	if key == "" {
		key = base
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.byExt[key]; ok {
		return l
	}
	l := lexers.Match(base)
	h.byExt[key] = l
	return l
}

func (h *Highlighter) lexerForLanguage(lang, body string) chroma.Lexer {
	if lang == "" {
		return lexers.Analyse(body)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.byLang[lang]; ok {
		return l
	}
	l := lexers.Get(lang)
	h.byLang[lang] = l
	return l
}

func (h *Highlighter) format(lexer chroma.Lexer, code string) string {
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		return code
	}
	return buf.String()
}
