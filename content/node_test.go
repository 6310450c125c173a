package content

import (
	"strings"
	"testing"

	"quire/geom"
	"quire/source"
)

func TestPlainText(t *testing.T) {
	doc := NewDocument(
		NewText("First.", source.NewSpan(0, 6)),
		NewContainer("box", source.NewSpan(7, 30),
			NewText("Second.", source.NewSpan(12, 19)),
			NewImage("fig.png", source.NewSpan(20, 29)),
		),
		NewPageBreak(false, source.NewSpan(31, 43)),
		NewText("Third.", source.NewSpan(44, 50)),
	)

	if got := doc.PlainText(); got != "First. Second. Third." {
		t.Errorf("got %q", got)
	}
}

func TestPlainTextIncludesOther(t *testing.T) {
	doc := NewDocument(&Node{Kind: KindOther, Other: &Other{Label: "code", Raw: "x := 1"}})
	if got := doc.PlainText(); got != "x := 1" {
		t.Errorf("got %q", got)
	}
}

func TestWalkPrunes(t *testing.T) {
	doc := NewDocument(
		NewContainer("box", source.Span{},
			NewText("inside", source.Span{}),
		),
		NewText("outside", source.Span{}),
	)

	var visited []Kind
	doc.Walk(func(n *Node) bool {
		visited = append(visited, n.Kind)
		return n.Kind != KindContainer
	})

	want := []Kind{KindDocument, KindContainer, KindText}
	if len(visited) != len(want) {
		t.Fatalf("visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited %v, want %v", visited, want)
		}
	}
}

func TestCountKind(t *testing.T) {
	doc := NewDocument(
		NewPageBreak(false, source.Span{}),
		NewContainer("box", source.Span{},
			NewPageBreak(true, source.Span{}),
		),
	)
	if got := doc.CountKind(KindPageBreak); got != 2 {
		t.Errorf("got %d page breaks, want 2", got)
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range KindNames() {
		k, ok := ParseKind(name)
		if !ok {
			t.Errorf("ParseKind(%q) not recognized", name)
		}
		if string(k) != name {
			t.Errorf("ParseKind(%q) = %q", name, k)
		}
	}
	if _, ok := ParseKind("paragraph"); ok {
		t.Error("ParseKind accepted an unknown name")
	}
	if _, ok := ParseKind("Text"); ok {
		t.Error("ParseKind should be case sensitive")
	}
}

func TestValues(t *testing.T) {
	if v := LengthValue(geom.Pt(40)); v.Kind != ValueLength || v.Raw != "40pt" {
		t.Errorf("length value: %+v", v)
	}
	if v := KeywordValue("a4"); v.Text() != "a4" || v.Raw != "a4" {
		t.Errorf("keyword value: %+v", v)
	}
	if v := StringValue("a4"); v.Text() != "a4" || v.Raw != `"a4"` {
		t.Errorf("string value: %+v", v)
	}
	if v := BoolValue(true); !v.Bool || v.Raw != "true" {
		t.Errorf("bool value: %+v", v)
	}
	if v := IntValue(2); v.Int != 2 || v.Float != 2 {
		t.Errorf("int value: %+v", v)
	}
}

func TestDump(t *testing.T) {
	doc := NewDocument(
		NewHeading("Title", 1, source.NewSpan(0, 7)),
		NewScopedPageConfig(source.NewSpan(8, 40),
			[]Prop{{Name: "height", Value: LengthValue(geom.Pt(40)), Span: source.NewSpan(14, 26)}},
			NewText("body", source.NewSpan(28, 32)),
		),
	)

	out := Dump(doc)
	for _, want := range []string{
		"document",
		`heading(1) [0..7]: "Title"`,
		"pageconfig(scoped) [8..40]: height: 40pt",
		`text [28..32]: "body"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
	// Nesting is reflected by indentation.
	if !strings.Contains(out, "\n    text") {
		t.Errorf("scoped body not indented:\n%s", out)
	}
}
