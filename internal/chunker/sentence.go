package chunker

import "strings"

// Token is one tokenizer output with byte offsets into the source text.
type Token struct {
	ID      int
	Text    string
	Start   int
	End     int
	Special bool // [CLS], [SEP] and similar markers
}

// Span is a half-open token range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of tokens in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

type boundary struct {
	token int // index of the sentence-terminal token
	char  int // byte offset just past it
}

// SplitSentences cuts text at sentence-terminal "." tokens that are
// followed by whitespace or by a document-boundary marker. It returns the
// chunk texts and their token spans, index-aligned. Spans are contiguous:
// each starts at the previous boundary token. Text after the last boundary
// becomes a final chunk, so the chunks always concatenate back to text.
func SplitSentences(text string, tokens []Token) ([]string, []Span) {
	if strings.TrimSpace(text) == "" || len(tokens) == 0 {
		return nil, nil
	}

	first := 0
	if tokens[0].Special {
		first = 1
	}
	last := len(tokens)
	for last > first && tokens[last-1].Special {
		last--
	}

	bounds := []boundary{{token: first, char: 0}}
	for i := first; i < len(tokens)-1; i++ {
		tok := tokens[i]
		if tok.Special || tok.Text != "." {
			continue
		}
		next := tokens[i+1]
		if i > bounds[len(bounds)-1].token && (next.Start > tok.End || next.Special) {
			bounds = append(bounds, boundary{token: i, char: tok.End})
		}
	}

	var chunks []string
	var spans []Span
	for i := 1; i < len(bounds); i++ {
		prev, cur := bounds[i-1], bounds[i]
		chunks = append(chunks, text[prev.char:cur.char])
		spans = append(spans, Span{Start: prev.token, End: cur.token})
	}

	tail := bounds[len(bounds)-1]
	rest := text[tail.char:]
	switch {
	case strings.TrimSpace(rest) != "" && last > tail.token:
		chunks = append(chunks, rest)
		spans = append(spans, Span{Start: tail.token, End: last})
	case len(chunks) > 0:
		chunks[len(chunks)-1] += rest
	}

	return chunks, spans
}
