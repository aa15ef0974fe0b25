package chunker

import (
	"strings"
	"testing"
	"unicode"
)

// wordTokenizer mimics a BERT-style tokenizer closely enough for boundary
// detection: [CLS], words, standalone ".", [SEP], with byte offsets.
func wordTokenizer(text string) []Token {
	tokens := []Token{{Text: "[CLS]", Special: true}}
	i := 0
	for i < len(text) {
		r := rune(text[i])
		switch {
		case unicode.IsSpace(r):
			i++
		case text[i] == '.':
			tokens = append(tokens, Token{Text: ".", Start: i, End: i + 1})
			i++
		default:
			j := i
			for j < len(text) && text[j] != '.' && !unicode.IsSpace(rune(text[j])) {
				j++
			}
			tokens = append(tokens, Token{Text: text[i:j], Start: i, End: j})
			i = j
		}
	}
	return append(tokens, Token{Text: "[SEP]", Special: true})
}

func TestFixed_ShortTextSingleChunk(t *testing.T) {
	got := NewFixed(100, 10).Split("short text")
	if len(got) != 1 || got[0] != "short text" {
		t.Errorf("got %q", got)
	}
	if NewFixed(100, 10).Split("") != nil {
		t.Error("empty text should give no chunks")
	}
}

func TestFixed_PrefersParagraphThenLineThenWord(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		first string
	}{
		{"paragraph", "aaaaaaa\nbb\n\ncccccccccccccccccc", "aaaaaaa\nbb\n\n"},
		{"line", "aaaaaaa bb\ncccccccccccccccccc", "aaaaaaa bb\n"},
		{"word", "aaaaaaa bbbbcccccccccccccccccc", "aaaaaaa "},
		{"raw cut", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "aaaaaaaaaaaaaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFixed(15, 0).Split(tt.text)
			if got[0] != tt.first {
				t.Errorf("first chunk = %q, want %q", got[0], tt.first)
			}
		})
	}
}

func TestFixed_OverlapReconstructs(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog.\n", 40)
	f := NewFixed(120, 30)

	ranges := f.Ranges(text)
	if len(ranges) < 2 {
		t.Fatalf("expected several chunks, got %d", len(ranges))
	}

	var sb strings.Builder
	sb.WriteString(text[ranges[0].Start:ranges[0].End])
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if cur.Start > prev.End {
			t.Fatalf("gap between chunk %d and %d", i-1, i)
		}
		if prev.End-cur.Start > f.Overlap {
			t.Fatalf("overlap %d exceeds %d", prev.End-cur.Start, f.Overlap)
		}
		if cur.End-cur.Start > f.Size {
			t.Fatalf("chunk %d is %d bytes", i, cur.End-cur.Start)
		}
		sb.WriteString(text[prev.End:cur.End])
	}
	if sb.String() != text {
		t.Error("chunks minus overlap do not reconstruct the text")
	}
}

func TestFixed_Deterministic(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	a := NewFixed(64, 16).Split(text)
	b := NewFixed(64, 16).Split(text)
	if len(a) != len(b) {
		t.Fatal("chunk counts differ")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestFixed_RuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 50)
	for _, c := range NewFixed(7, 3).Split(text) {
		if !strings.HasPrefix(c, "é") || !strings.HasSuffix(c, "é") {
			t.Fatalf("chunk %q split a rune", c)
		}
	}
}

func TestNewFixed_ClampsOverlap(t *testing.T) {
	if f := NewFixed(10, 10); f.Overlap != 0 {
		t.Errorf("overlap should be clamped, got %d", f.Overlap)
	}
	if f := NewFixed(0, 0); f.Size != 1000 {
		t.Errorf("size should default, got %d", f.Size)
	}
}

func TestSplitSentences(t *testing.T) {
	text := "Hello world. Second one.\nThird"
	chunks, spans := SplitSentences(text, wordTokenizer(text))

	wantChunks := []string{"Hello world.", " Second one.", "\nThird"}
	wantSpans := []Span{{1, 3}, {3, 6}, {6, 8}}
	if len(chunks) != len(wantChunks) {
		t.Fatalf("chunks = %q", chunks)
	}
	for i := range wantChunks {
		if chunks[i] != wantChunks[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], wantChunks[i])
		}
		if spans[i] != wantSpans[i] {
			t.Errorf("span %d = %v, want %v", i, spans[i], wantSpans[i])
		}
	}
}

func TestSplitSentences_Properties(t *testing.T) {
	texts := []string{
		"One. Two. Three.",
		"Version 1.2 is out. Upgrade now.  ",
		"No terminal punctuation here",
		"Trailing period before sep.",
		". Leading period. Then text.",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			tokens := wordTokenizer(text)
			chunks, spans := SplitSentences(text, tokens)
			if len(chunks) != len(spans) {
				t.Fatalf("%d chunks but %d spans", len(chunks), len(spans))
			}
			if strings.Join(chunks, "") != text {
				t.Errorf("chunks %q do not reconstruct %q", chunks, text)
			}
			for i, s := range spans {
				if s.Len() < 1 {
					t.Errorf("span %d is empty: %v", i, s)
				}
				if i > 0 && s.Start != spans[i-1].End {
					t.Errorf("span %d not contiguous with previous: %v after %v", i, s, spans[i-1])
				}
				if s.End > len(tokens) {
					t.Errorf("span %d past token count", i)
				}
			}
		})
	}
}

func TestSplitSentences_DecimalIsNotBoundary(t *testing.T) {
	text := "Pi is 3.14 roughly. Yes."
	chunks, _ := SplitSentences(text, wordTokenizer(text))
	if len(chunks) != 2 || chunks[0] != "Pi is 3.14 roughly." {
		t.Errorf("got %q", chunks)
	}
}

func TestSplitSentences_Empty(t *testing.T) {
	chunks, spans := SplitSentences("   ", wordTokenizer("   "))
	if chunks != nil || spans != nil {
		t.Errorf("expected nothing for blank text, got %q %v", chunks, spans)
	}
}
