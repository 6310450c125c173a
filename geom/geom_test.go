package geom

import (
	"math"
	"testing"
)

func TestLengthPt(t *testing.T) {
	cases := []struct {
		length Length
		pt     float64
	}{
		{Pt(40), 40},
		{In(1), 72},
		{Cm(2.54), 72},
		{Mm(25.4), 72},
		{Cm(1), 28.346456692913385},
		{Length{}, 0},
	}
	for _, c := range cases {
		if got := c.length.Pt(); math.Abs(got-c.pt) > 1e-9 {
			t.Errorf("%s: got %g pt, want %g", c.length, got, c.pt)
		}
	}
}

func TestLengthEq(t *testing.T) {
	if !In(1).Eq(Pt(72)) {
		t.Error("1in != 72pt")
	}
	if !Cm(2.54).Eq(In(1)) {
		t.Error("2.54cm != 1in")
	}
	if Pt(40).Eq(Pt(41)) {
		t.Error("40pt == 41pt")
	}
}

func TestLengthString(t *testing.T) {
	cases := []struct {
		length Length
		want   string
	}{
		{Pt(40), "40pt"},
		{Cm(2.5), "2.5cm"},
		{Mm(210), "210mm"},
		{In(8.5), "8.5in"},
	}
	for _, c := range cases {
		if got := c.length.String(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want Length
	}{
		{"40pt", Pt(40)},
		{"2.5cm", Cm(2.5)},
		{"210mm", Mm(210)},
		{"8.5in", In(8.5)},
		{"-3pt", Pt(-3)},
		{"12", Pt(12)},
		{" 40pt ", Pt(40)},
		{"40PT", Pt(40)},
	}
	for _, c := range cases {
		got, err := ParseLength(c.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseLengthErrors(t *testing.T) {
	for _, in := range []string{"", "abc", "40xx", "50%", "12em"} {
		if _, err := ParseLength(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}

func TestPaper(t *testing.T) {
	a4, err := Paper("a4")
	if err != nil {
		t.Fatalf("a4 lookup failed: %v", err)
	}
	if !a4.Eq(Size{Width: Mm(210), Height: Mm(297)}) {
		t.Errorf("a4: got %s", a4)
	}

	letter, err := Paper(" US-Letter ")
	if err != nil {
		t.Fatalf("case insensitive lookup failed: %v", err)
	}
	if !letter.Width.Eq(In(8.5)) {
		t.Errorf("us-letter width: got %s", letter.Width)
	}

	if _, err := Paper("c4"); err == nil {
		t.Error("expected error for unknown paper")
	}
}

func TestPaperNamesOrdered(t *testing.T) {
	names := PaperNames()
	if len(names) != 13 {
		t.Fatalf("got %d presets, want 13", len(names))
	}
	// a* presets come first and in numeric order.
	for i, want := range []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6"} {
		if names[i] != want {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestPaperName(t *testing.T) {
	if got := PaperName(Size{Width: Mm(210), Height: Mm(297)}); got != "a4" {
		t.Errorf("got %q, want a4", got)
	}
	if got := PaperName(Size{Width: Pt(100), Height: Pt(100)}); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSizeFlip(t *testing.T) {
	a4, _ := Paper("a4")
	flipped := a4.Flip()
	if !flipped.Width.Eq(Mm(297)) || !flipped.Height.Eq(Mm(210)) {
		t.Errorf("got %s", flipped)
	}
}

func TestUniformMargins(t *testing.T) {
	m := UniformMargins(Cm(2.5))
	if !m.Top.Eq(Cm(2.5)) || !m.Right.Eq(Cm(2.5)) || !m.Bottom.Eq(Cm(2.5)) || !m.Left.Eq(Cm(2.5)) {
		t.Errorf("got %s", m)
	}
}

func TestParseUnit(t *testing.T) {
	for _, name := range UnitNames() {
		u, err := ParseUnit(name)
		if err != nil {
			t.Errorf("%q: %v", name, err)
		}
		if u.String() != name {
			t.Errorf("round trip %q: got %q", name, u.String())
		}
	}
	if _, err := ParseUnit("px"); err == nil {
		t.Error("expected error for px")
	}
}
