package layout

import "quire/content"

// flow accumulates the blocks of the page currently being laid out, together
// with a running text size estimate for the optional automatic flow. take
// hands the blocks over to a finalized page and resets the accumulator.
type flow struct {
	blocks []*content.Node
	chars  int
}

func (f *flow) add(n *content.Node, chars int) {
	f.blocks = append(f.blocks, n)
	f.chars += chars
}

func (f *flow) empty() bool {
	return len(f.blocks) == 0
}

func (f *flow) take() []*content.Node {
	blocks := f.blocks
	f.blocks = nil
	f.chars = 0
	return blocks
}

// Crude text metrics for estimating how much plain text fits on a page. Real
// line breaking is out of scope, the estimate only drives the optional
// automatic flow.
const (
	estLineHeightPt = 14.0
	estCharWidthPt  = 6.5
)

// capacity estimates how many characters of plain text fit inside the
// content area of a page with this setup. Zero means the estimate is
// unusable and splitting should be skipped.
func capacity(s Setup) int {
	width, height := s.ContentSize()
	lines := int(height / estLineHeightPt)
	perLine := int(width / estCharWidthPt)
	if lines < 1 || perLine < 1 {
		return 0
	}
	return lines * perLine
}
