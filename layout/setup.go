package layout

import (
	"quire/content"
	"quire/diag"
	"quire/geom"
)

// Setup is the page configuration active while a page accumulates content.
// It is copied by value into each finalized Page.
type Setup struct {
	Size      geom.Size
	Margins   geom.Margins
	Flipped   bool
	Fill      string
	Columns   int
	Numbering string
}

// DefaultSetup returns the configuration used when the document does not
// override anything: a4 portrait with 2.5cm margins, single column.
func DefaultSetup() Setup {
	size, _ := geom.Paper("a4")
	return Setup{
		Size:    size,
		Margins: geom.UniformMargins(geom.Cm(2.5)),
		Columns: 1,
	}
}

// EffectiveSize returns the page size with Flipped applied.
func (s Setup) EffectiveSize() geom.Size {
	if s.Flipped {
		return s.Size.Flip()
	}
	return s.Size
}

// ContentSize returns the size of the area inside the margins, in points.
// Negative extents are clamped to zero.
func (s Setup) ContentSize() (width, height float64) {
	size := s.EffectiveSize()
	width = size.Width.Pt() - s.Margins.Left.Pt() - s.Margins.Right.Pt()
	height = size.Height.Pt() - s.Margins.Top.Pt() - s.Margins.Bottom.Pt()
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return width, height
}

// Apply merges one property override into the setup. Later overrides replace
// earlier ones for the same property. Bad property names or values are
// recorded into c as warnings and skipped, they never abort the pass.
func (s *Setup) Apply(p content.Prop, c *diag.Collector) {
	switch p.Name {
	case "paper":
		size, err := geom.Paper(p.Value.Text())
		if err != nil {
			c.Record(diag.Warningf(p.Span, "unknown paper %q", p.Value.Text()))
			return
		}
		s.Size = size
	case "width":
		if l, ok := lengthOf(p, c); ok {
			s.Size.Width = l
		}
	case "height":
		if l, ok := lengthOf(p, c); ok {
			s.Size.Height = l
		}
	case "margin":
		if l, ok := lengthOf(p, c); ok {
			s.Margins = geom.UniformMargins(l)
		}
	case "margin-top":
		if l, ok := lengthOf(p, c); ok {
			s.Margins.Top = l
		}
	case "margin-right":
		if l, ok := lengthOf(p, c); ok {
			s.Margins.Right = l
		}
	case "margin-bottom":
		if l, ok := lengthOf(p, c); ok {
			s.Margins.Bottom = l
		}
	case "margin-left":
		if l, ok := lengthOf(p, c); ok {
			s.Margins.Left = l
		}
	case "flipped":
		if p.Value.Kind != content.ValueBool {
			c.Record(diag.Warningf(p.Span, "page property %q expects a boolean, got %s", p.Name, p.Value.Raw))
			return
		}
		s.Flipped = p.Value.Bool
	case "fill":
		s.Fill = p.Value.Text()
	case "columns":
		if p.Value.Kind != content.ValueInt || p.Value.Int < 1 {
			c.Record(diag.Warningf(p.Span, "page property %q expects a positive integer, got %s", p.Name, p.Value.Raw))
			return
		}
		s.Columns = p.Value.Int
	case "numbering":
		s.Numbering = p.Value.Text()
	default:
		c.Record(diag.Warningf(p.Span, "unknown page property %q", p.Name))
	}
}

func lengthOf(p content.Prop, c *diag.Collector) (geom.Length, bool) {
	if p.Value.Kind != content.ValueLength {
		c.Record(diag.Warningf(p.Span, "page property %q expects a length, got %s", p.Name, p.Value.Raw))
		return geom.Length{}, false
	}
	return p.Value.Length, true
}
