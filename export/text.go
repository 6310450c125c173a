package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"quire/content"
	"quire/geom"
	"quire/layout"
)

const textRuleWidth = 72

// generateText writes plain paginated text: every page opens with a ruled
// header naming the page number and its setup.
func generateText(doc *Document, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	RenderText(w, doc)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("unable to write output file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	return nil
}

// RenderText writes the plain text rendition to w. Shared by the file
// exporter and the HTTP service.
func RenderText(w io.Writer, doc *Document) {
	for _, page := range doc.Pages {
		writeTextPage(w, page)
	}
}

func writeTextPage(w io.Writer, page *layout.Page) {
	header := fmt.Sprintf(" page %d: %s ", page.Number, describeSetup(page.Setup))
	pad := textRuleWidth - len(header)
	if pad < 8 {
		pad = 8
	}
	left := pad / 2
	fmt.Fprintf(w, "%s%s%s\n\n", strings.Repeat("=", left), header, strings.Repeat("=", pad-left))

	for _, block := range page.Blocks {
		writeTextBlock(w, block, "")
	}
}

// describeSetup renders a one-line human readable setup summary.
func describeSetup(s layout.Setup) string {
	size := s.EffectiveSize()
	var b strings.Builder
	if name := geom.PaperName(s.Size); name != "" {
		b.WriteString(name)
		b.WriteString(" ")
	}
	b.WriteString(size.String())
	if s.Flipped {
		b.WriteString(" flipped")
	}
	if s.Columns > 1 {
		fmt.Fprintf(&b, " %d columns", s.Columns)
	}
	return b.String()
}

func writeTextBlock(w io.Writer, n *content.Node, indent string) {
	switch n.Kind {
	case content.KindText:
		t := n.Text
		if t.Heading {
			fmt.Fprintf(w, "%s%s\n", indent, t.Body)
			rule := len(t.Body)
			if rule > textRuleWidth {
				rule = textRuleWidth
			}
			mark := "="
			if t.Level > 1 {
				mark = "-"
			}
			fmt.Fprintf(w, "%s%s\n\n", indent, strings.Repeat(mark, rule))
			return
		}
		fmt.Fprintf(w, "%s%s\n\n", indent, t.Body)
	case content.KindImage:
		img := n.Image
		if img.Width.IsZero() && img.Height.IsZero() {
			fmt.Fprintf(w, "%s[image %s]\n\n", indent, img.Path)
			return
		}
		fmt.Fprintf(w, "%s[image %s %s x %s]\n\n", indent, img.Path, img.Width, img.Height)
	case content.KindContainer:
		fmt.Fprintf(w, "%s[%s]\n", indent, n.Container.Style)
		for _, child := range n.Children {
			writeTextBlock(w, child, indent+"  ")
		}
		fmt.Fprintln(w)
	case content.KindSpace:
		fmt.Fprintln(w)
	case content.KindOther:
		if n.Other.Label != "" {
			fmt.Fprintf(w, "%s[%s]\n", indent, n.Other.Label)
		}
		for _, line := range strings.Split(strings.TrimRight(n.Other.Raw, "\n"), "\n") {
			fmt.Fprintf(w, "%s%s\n", indent, line)
		}
		fmt.Fprintln(w)
	}
}
