package layout

import (
	"strings"

	"quire/content"
)

// Page is a finalized page. Once produced it is never mutated: the engine
// appends pages and moves on.
type Page struct {
	Number int
	Setup  Setup
	Blocks []*content.Node
}

// IsEmpty reports whether the page carries no content blocks.
func (p *Page) IsEmpty() bool {
	return len(p.Blocks) == 0
}

// PlainText flattens the readable text of all blocks on the page.
func (p *Page) PlainText() string {
	var buf strings.Builder
	for _, b := range p.Blocks {
		text := b.PlainText()
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(text)
	}
	return buf.String()
}
