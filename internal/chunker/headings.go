package chunker

import (
	"strings"
	"unicode"
)

// Heading is a heading and the byte offset where it starts in the raw,
// unnormalized text. The offset must be at the start of a line.
type Heading struct {
	Text   string
	Offset int
}

// AssignHeadings returns, for each span produced from text, the last heading
// that starts at or before the span's own content. Headings must be given in
// document order.
func AssignHeadings(text string, spans []Span, headings []Heading) []string {
	out := make([]string, len(spans))
	if len(headings) == 0 {
		return out
	}

	offsets := make([]int, len(headings))
	for i, h := range headings {
		offsets[i] = normalizedOffset(text, h.Offset)
	}

	current := ""
	next := 0
	for i, sp := range spans {
		for next < len(headings) && offsets[next] <= sp.Start {
			current = headings[next].Text
			next++
		}
		out[i] = current
	}
	return out
}

// normalizedOffset maps a line-start offset in raw text to the matching
// offset in Normalize(raw).
func normalizedOffset(raw string, off int) int {
	off = max(0, min(off, len(raw)))
	prefix := strings.ReplaceAll(raw[:off], "\r\n", "\n")
	prefix = strings.ReplaceAll(prefix, "\r", "\n")
	prefix = blankRuns.ReplaceAllString(prefix, "\n\n")
	return len(strings.TrimLeftFunc(prefix, unicode.IsSpace))
}
