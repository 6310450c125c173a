// Package source tracks input texts and byte positions within them, so that
// diagnostics can point back at the exact construct that caused them.
package source

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Span is a half open byte range [Start, End) into a single source text.
// The zero Span means the position is unknown.
type Span struct {
	Start int
	End   int
}

// NewSpan returns a span covering [start, end). Callers are expected to keep
// start <= end, the type does not police it.
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// IsZero reports whether the span carries no position information.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Position is a 1-based line and column location. Column counts runes, not
// bytes, since that is what editors display.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Source is an immutable named input text with precomputed line starts.
type Source struct {
	name       string
	text       string
	lineStarts []int
}

// New wraps text as a source named name. Line starts are computed once so
// that PositionFor stays cheap no matter how many diagnostics are rendered.
func New(name, text string) *Source {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Source{name: name, text: text, lineStarts: starts}
}

// Name returns the name the source was registered under, normally a file path.
func (s *Source) Name() string {
	return s.name
}

// Text returns the full source text.
func (s *Source) Text() string {
	return s.text
}

// Len returns the source length in bytes.
func (s *Source) Len() int {
	return len(s.text)
}

// Slice returns the text covered by span, clamped to the source bounds.
func (s *Source) Slice(span Span) string {
	start, end := span.Start, span.End
	if start < 0 {
		start = 0
	}
	if end > len(s.text) {
		end = len(s.text)
	}
	if start >= end {
		return ""
	}
	return s.text[start:end]
}

// PositionFor resolves a byte offset to a line and column. Offsets past the
// end of the text resolve to the last valid position.
func (s *Source) PositionFor(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.text) {
		offset = len(s.text)
	}
	line := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	})
	start := s.lineStarts[line-1]
	col := utf8.RuneCountInString(s.text[start:offset]) + 1
	return Position{Line: line, Column: col}
}

// Line returns the text of the 1-based line number without the trailing
// newline, or an empty string when the line does not exist.
func (s *Source) Line(number int) string {
	if number < 1 || number > len(s.lineStarts) {
		return ""
	}
	start := s.lineStarts[number-1]
	end := len(s.text)
	if number < len(s.lineStarts) {
		end = s.lineStarts[number] - 1
	}
	return strings.TrimSuffix(s.text[start:end], "\r")
}

// LineCount returns the number of lines in the source. An empty source still
// has one line.
func (s *Source) LineCount() int {
	return len(s.lineStarts)
}
