// Package chunker splits document text into overlapping, sentence-aligned
// chunks bounded by a character budget.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Chunker produces chunks of at most maxChars characters (a soft limit: a
// single sentence longer than the budget is emitted whole). Lengths are
// counted in runes.
type Chunker struct {
	maxChars int
	overlap  int
}

// New creates a chunker. A non-positive overlap disables overlap.
func New(maxChars, overlap int) *Chunker {
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// Normalize converts line endings to LF, collapses three or more consecutive
// newlines to two and trims the result.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Span is a piece of normalized text and the byte offset in Normalize(text)
// where its own content starts. For an overlapped chunk Start points past the
// carried-over prefix.
type Span struct {
	Text  string
	Start int
}

// Segments splits text after every '.', '!' or '?' that is followed by
// whitespace. The whitespace run at each boundary is dropped.
func Segments(text string) []string {
	spans := segmentSpans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

func segmentSpans(text string) []Span {
	if text == "" {
		return nil
	}
	var parts []Span
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(text) {
			ws, n := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(ws) {
				break
			}
			j += n
		}
		if j == i {
			continue
		}
		parts = append(parts, Span{Text: text[start:i], Start: start})
		start = j
		i = j
	}
	return append(parts, Span{Text: text[start:], Start: start})
}

// Chunk normalizes text and returns its chunks in document order.
func (c *Chunker) Chunk(text string) []string {
	spans := c.Spans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.Text
	}
	return out
}

// Spans is Chunk with the start offset of every chunk.
func (c *Chunker) Spans(text string) []Span {
	chunks := pack(segmentSpans(Normalize(text)), c.maxChars)
	if c.overlap == 0 || len(chunks) == 0 {
		return chunks
	}
	return withOverlap(chunks, c.overlap)
}

// pack greedily joins segments with single spaces while the result stays
// within maxChars.
func pack(segments []Span, maxChars int) []Span {
	var chunks []Span
	var buf Span
	for _, seg := range segments {
		if runeLen(buf.Text)+runeLen(seg.Text)+1 <= maxChars {
			if buf.Text == "" {
				buf.Start = seg.Start
			}
			buf.Text = strings.TrimSpace(buf.Text + " " + seg.Text)
			continue
		}
		if buf.Text != "" {
			chunks = append(chunks, buf)
		}
		buf = seg
	}
	if buf.Text != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// withOverlap prefixes every chunk after the first with the trailing overlap
// runes of its predecessor as it was before any prefix was added.
func withOverlap(chunks []Span, overlap int) []Span {
	out := make([]Span, 0, len(chunks))
	tail := ""
	for _, ch := range chunks {
		out = append(out, Span{Text: strings.TrimSpace(tail + ch.Text), Start: ch.Start})
		tail = lastRunes(ch.Text, overlap)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}
