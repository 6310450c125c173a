package text

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSplit(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("unable to initialize splitter")
	}

	in := "Mr. Smith went to Washington. He arrived on Tuesday! Did anyone notice? Hardly."
	parts := s.Split(in)

	if len(parts) != 4 {
		t.Fatalf("got %d sentences, want 4: %q", len(parts), parts)
	}
	if !strings.HasPrefix(parts[0], "Mr. Smith") {
		t.Errorf("abbreviation split wrongly: %q", parts[0])
	}
	if strings.TrimSpace(parts[3]) != "Hardly." {
		t.Errorf("last sentence: %q", parts[3])
	}
}

func TestSplitPreservesText(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("unable to initialize splitter")
	}

	in := "First sentence.  Second one. Third?"
	parts := s.Split(in)
	if got := strings.Join(parts, ""); got != in {
		t.Errorf("concatenation does not reproduce input:\n got %q\nwant %q", got, in)
	}
	// Trailing spaces stay with the sentence they follow.
	if !strings.HasSuffix(parts[0], ".  ") {
		t.Errorf("trailing spaces not moved back: %q", parts[0])
	}
}

func TestSplitNilSplitter(t *testing.T) {
	var s *Splitter
	parts := s.Split("One. Two.")
	if len(parts) != 1 || parts[0] != "One. Two." {
		t.Errorf("nil splitter must pass text through, got %q", parts)
	}
}

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(zaptest.NewLogger(t))
	if s == nil {
		t.Fatal("unable to initialize splitter")
	}
	if parts := s.Split(""); len(parts) != 0 {
		t.Errorf("empty input: got %q", parts)
	}
}
