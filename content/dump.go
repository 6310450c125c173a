package content

import (
	"fmt"
	"strconv"
	"strings"
)

// treeWriter renders indented tree lines for debug dumps.
type treeWriter struct {
	w *strings.Builder
}

func newTreeWriter() *treeWriter {
	return &treeWriter{w: &strings.Builder{}}
}

func (tw treeWriter) String() string {
	return tw.w.String()
}

func (tw treeWriter) Line(depth int, format string, args ...any) {
	for range depth {
		tw.w.WriteString("  ")
	}
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Dump renders the tree as indented text for debug reports.
func Dump(root *Node) string {
	tw := newTreeWriter()
	dumpNode(tw, root, 0)
	return tw.String()
}

func dumpNode(tw *treeWriter, n *Node, depth int) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindDocument:
		tw.Line(depth, "document")
	case KindText:
		label := "text"
		if n.Text.Heading {
			label = fmt.Sprintf("heading(%d)", n.Text.Level)
		}
		tw.Line(depth, "%s [%s]: %s", label, n.Span, strconv.Quote(n.Text.Body))
	case KindContainer:
		tw.Line(depth, "container(%s) [%s]", n.Container.Style, n.Span)
	case KindPageBreak:
		if n.PageBreak.Weak {
			tw.Line(depth, "pagebreak(weak) [%s]", n.Span)
		} else {
			tw.Line(depth, "pagebreak [%s]", n.Span)
		}
	case KindPageConfig:
		props := make([]string, 0, len(n.PageConfig.Props))
		for _, p := range n.PageConfig.Props {
			props = append(props, p.Name+": "+p.Value.Raw)
		}
		form := "set"
		if n.PageConfig.Scoped {
			form = "scoped"
		}
		tw.Line(depth, "pageconfig(%s) [%s]: %s", form, n.Span, strings.Join(props, ", "))
	case KindImage:
		tw.Line(depth, "image [%s]: %s", n.Span, strconv.Quote(n.Image.Path))
	case KindSpace:
		tw.Line(depth, "space [%s]: %s", n.Span, n.Space.Amount)
	case KindOther:
		tw.Line(depth, "other(%s) [%s]", n.Other.Label, n.Span)
	}
	for _, child := range n.Children {
		dumpNode(tw, child, depth+1)
	}
}
