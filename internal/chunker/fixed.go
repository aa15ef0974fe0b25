// Package chunker splits documents into chunks for indexing.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Range is a half-open byte range [Start, End) into the source text.
type Range struct {
	Start int
	End   int
}

// breakSeparators in order of preference.
var breakSeparators = []string{"\n\n", "\n", " "}

// Fixed splits text into chunks of at most Size bytes, repeating Overlap
// bytes of the previous chunk at the start of the next one.
type Fixed struct {
	Size    int
	Overlap int
}

// NewFixed creates a fixed-size chunker. Overlap is clamped to [0, size).
func NewFixed(size, overlap int) Fixed {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Fixed{Size: size, Overlap: overlap}
}

// Split returns the chunk texts in order.
func (f Fixed) Split(text string) []string {
	ranges := f.Ranges(text)
	chunks := make([]string, len(ranges))
	for i, r := range ranges {
		chunks[i] = text[r.Start:r.End]
	}
	return chunks
}

// Ranges returns the byte ranges of each chunk. Consecutive ranges overlap
// by at most Overlap bytes and every range ends on a rune boundary.
func (f Fixed) Ranges(text string) []Range {
	if text == "" {
		return nil
	}

	var out []Range
	start := 0
	for start < len(text) {
		end := start + f.Size
		if end >= len(text) {
			out = append(out, Range{start, len(text)})
			break
		}

		end = start + breakPoint(text[start:end])
		for end > start+1 && !utf8.RuneStart(text[end]) {
			end--
		}
		out = append(out, Range{start, end})

		next := end - f.Overlap
		for next > start && next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint picks the cut position inside window: the last paragraph,
// line or word break in the second half of the window, else the full width.
func breakPoint(window string) int {
	half := len(window) / 2
	for _, sep := range breakSeparators {
		if i := strings.LastIndex(window, sep); i >= half {
			return i + len(sep)
		}
	}
	return len(window)
}
