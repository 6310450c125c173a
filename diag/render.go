package diag

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"quire/source"
)

// Render writes diagnostics in compiler style, one per block:
//
//	sample.qm:3:5: error: cannot modify page from here
//	    #pagebreak()
//	    ^^^^^^^^^^^^
//
// Diagnostics with zero spans render without the excerpt.
func Render(w io.Writer, src *source.Source, diags []Diagnostic) {
	for _, d := range diags {
		if src == nil || d.Span.IsZero() {
			fmt.Fprintf(w, "%s: %s: %s\n", nameOf(src), d.Severity, d.Message)
			continue
		}
		pos := src.PositionFor(d.Span.Start)
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", src.Name(), pos.Line, pos.Column, d.Severity, d.Message)

		line := src.Line(pos.Line)
		if line == "" {
			continue
		}
		fmt.Fprintf(w, "    %s\n", line)
		fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", pos.Column-1), carets(src, d.Span, line, pos.Column))
	}
}

// RenderString renders diagnostics into a string.
func RenderString(src *source.Source, diags []Diagnostic) string {
	var sb strings.Builder
	Render(&sb, src, diags)
	return sb.String()
}

func nameOf(src *source.Source) string {
	if src == nil {
		return "<unknown>"
	}
	return src.Name()
}

// carets underlines the spanned part of the line, at least one caret, never
// past the end of the line.
func carets(src *source.Source, span source.Span, line string, column int) string {
	width := utf8.RuneCountInString(src.Slice(span))
	remaining := utf8.RuneCountInString(line) - (column - 1)
	if width > remaining {
		width = remaining
	}
	if width < 1 {
		width = 1
	}
	return strings.Repeat("^", width)
}
