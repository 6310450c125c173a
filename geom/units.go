// Package geom provides the measurement types used by page layout: typed
// lengths with units, page sizes, margins and the paper preset table.
package geom

import (
	"fmt"
	"math"
	"strconv"
)

// Unit is a supported absolute length unit.
type Unit int

const (
	UnitPt Unit = iota // typographic point, 1/72 inch
	UnitMm
	UnitCm
	UnitIn
)

const (
	ptPerInch = 72.0
	ptPerCm   = ptPerInch / 2.54
	ptPerMm   = ptPerCm / 10.0
)

// String returns the CSS spelling of the unit.
func (u Unit) String() string {
	switch u {
	case UnitPt:
		return "pt"
	case UnitMm:
		return "mm"
	case UnitCm:
		return "cm"
	case UnitIn:
		return "in"
	default:
		return "pt"
	}
}

// ParseUnit maps a unit suffix to a Unit.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "pt":
		return UnitPt, nil
	case "mm":
		return UnitMm, nil
	case "cm":
		return UnitCm, nil
	case "in":
		return UnitIn, nil
	default:
		return UnitPt, fmt.Errorf("unknown length unit %q", s)
	}
}

// UnitNames lists the supported unit suffixes.
func UnitNames() []string {
	return []string{"pt", "mm", "cm", "in"}
}

// Length is a physical length with an explicit unit. The zero Length is zero
// points.
type Length struct {
	Value float64
	Unit  Unit
}

// Pt returns the length converted to points.
func (l Length) Pt() float64 {
	switch l.Unit {
	case UnitMm:
		return l.Value * ptPerMm
	case UnitCm:
		return l.Value * ptPerCm
	case UnitIn:
		return l.Value * ptPerInch
	default:
		return l.Value
	}
}

// IsZero reports whether the length is exactly zero in any unit.
func (l Length) IsZero() bool {
	return l.Value == 0
}

// Eq compares two lengths by their point value, tolerating float rounding.
func (l Length) Eq(other Length) bool {
	return math.Abs(l.Pt()-other.Pt()) < 1e-6
}

// String renders the length the way it was specified, e.g. "2.5cm".
func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + l.Unit.String()
}

// Pt returns a length of v points.
func Pt(v float64) Length {
	return Length{Value: v, Unit: UnitPt}
}

// Mm returns a length of v millimeters.
func Mm(v float64) Length {
	return Length{Value: v, Unit: UnitMm}
}

// Cm returns a length of v centimeters.
func Cm(v float64) Length {
	return Length{Value: v, Unit: UnitCm}
}

// In returns a length of v inches.
func In(v float64) Length {
	return Length{Value: v, Unit: UnitIn}
}

// Size is a page extent. Width and height are independent lengths so presets
// keep their natural units.
type Size struct {
	Width  Length
	Height Length
}

// Flip swaps width and height, turning portrait into landscape.
func (s Size) Flip() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Eq compares two sizes by point values.
func (s Size) Eq(other Size) bool {
	return s.Width.Eq(other.Width) && s.Height.Eq(other.Height)
}

func (s Size) String() string {
	return s.Width.String() + " x " + s.Height.String()
}

// Margins are the four page margins.
type Margins struct {
	Top    Length
	Right  Length
	Bottom Length
	Left   Length
}

// UniformMargins returns margins with the same length on all sides.
func UniformMargins(l Length) Margins {
	return Margins{Top: l, Right: l, Bottom: l, Left: l}
}

// Eq compares margins by point values.
func (m Margins) Eq(other Margins) bool {
	return m.Top.Eq(other.Top) && m.Right.Eq(other.Right) &&
		m.Bottom.Eq(other.Bottom) && m.Left.Eq(other.Left)
}

func (m Margins) String() string {
	return fmt.Sprintf("top %s right %s bottom %s left %s", m.Top, m.Right, m.Bottom, m.Left)
}
