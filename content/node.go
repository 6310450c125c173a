// Package content defines the document tree the layout engine consumes.
// Front end parsers produce it, the layout engine walks it, exporters render
// the finalized pages that reference back into it.
package content

import (
	"strings"

	"quire/geom"
	"quire/source"
)

// Kind distinguishes the different kinds of tree nodes.
type Kind string

const (
	KindDocument   Kind = "document"
	KindContainer  Kind = "container"
	KindPageBreak  Kind = "pagebreak"
	KindPageConfig Kind = "pageconfig"
	KindText       Kind = "text"
	KindImage      Kind = "image"
	KindSpace      Kind = "space"
	KindOther      Kind = "other"
)

// KindNames lists all node kinds.
func KindNames() []string {
	return []string{
		string(KindDocument), string(KindContainer), string(KindPageBreak),
		string(KindPageConfig), string(KindText), string(KindImage),
		string(KindSpace), string(KindOther),
	}
}

// ParseKind maps a name back to its Kind, reporting whether the name is
// one the package knows.
func ParseKind(name string) (Kind, bool) {
	for _, known := range KindNames() {
		if name == known {
			return Kind(name), true
		}
	}
	return "", false
}

// Node is a single tree node. Kind selects which payload pointer is set,
// the others stay nil. Children is used by documents, containers and scoped
// page configurations (the configured body).
type Node struct {
	Kind     Kind
	Span     source.Span
	Children []*Node

	Text       *Text
	Image      *Image
	Container  *Container
	PageBreak  *PageBreak
	PageConfig *PageConfig
	Space      *Space
	Other      *Other
}

// Text is a paragraph or heading.
type Text struct {
	Body    string
	Heading bool
	Level   int // heading level, 0 for plain paragraphs
}

// Image references an external graphic, optionally with explicit extents.
type Image struct {
	Path   string
	Width  geom.Length
	Height geom.Length
}

// Container is a grouping construct. Content inside it cannot alter pages.
type Container struct {
	Style string // box, block, quote, figure
}

// PageBreak forces the current page to finish. Weak breaks are dropped when
// the current page has no content yet.
type PageBreak struct {
	Weak bool
}

// PageConfig changes the page setup. A standalone config persists until
// changed again; a scoped config applies only to its body (held in Children)
// and forces that body onto its own page run.
type PageConfig struct {
	Props  []Prop
	Scoped bool
}

// Prop is a single named page property with its own span so diagnostics can
// point at the exact property.
type Prop struct {
	Name  string
	Value Value
	Span  source.Span
}

// Space is explicit vertical space.
type Space struct {
	Amount geom.Length
}

// Other is content the layout engine carries through without interpreting,
// such as code blocks.
type Other struct {
	Label string
	Raw   string
}

// NewDocument returns a document root with the given children.
func NewDocument(children ...*Node) *Node {
	return &Node{Kind: KindDocument, Children: children}
}

// NewText returns a paragraph node.
func NewText(body string, span source.Span) *Node {
	return &Node{Kind: KindText, Span: span, Text: &Text{Body: body}}
}

// NewHeading returns a heading node of the given level.
func NewHeading(body string, level int, span source.Span) *Node {
	return &Node{Kind: KindText, Span: span, Text: &Text{Body: body, Heading: true, Level: level}}
}

// NewContainer returns a container of the given style wrapping children.
func NewContainer(style string, span source.Span, children ...*Node) *Node {
	return &Node{Kind: KindContainer, Span: span, Container: &Container{Style: style}, Children: children}
}

// NewPageBreak returns a page break node.
func NewPageBreak(weak bool, span source.Span) *Node {
	return &Node{Kind: KindPageBreak, Span: span, PageBreak: &PageBreak{Weak: weak}}
}

// NewPageConfig returns a standalone page configuration node.
func NewPageConfig(span source.Span, props ...Prop) *Node {
	return &Node{Kind: KindPageConfig, Span: span, PageConfig: &PageConfig{Props: props}}
}

// NewScopedPageConfig returns a page configuration applying only to body.
func NewScopedPageConfig(span source.Span, props []Prop, body ...*Node) *Node {
	return &Node{
		Kind:       KindPageConfig,
		Span:       span,
		PageConfig: &PageConfig{Props: props, Scoped: true},
		Children:   body,
	}
}

// NewImage returns an image node.
func NewImage(path string, span source.Span) *Node {
	return &Node{Kind: KindImage, Span: span, Image: &Image{Path: path}}
}

// NewSpace returns a vertical space node.
func NewSpace(amount geom.Length, span source.Span) *Node {
	return &Node{Kind: KindSpace, Span: span, Space: &Space{Amount: amount}}
}

// NewOther returns a node carrying raw content the layout engine passes
// through without interpreting.
func NewOther(label, raw string, span source.Span) *Node {
	return &Node{Kind: KindOther, Span: span, Other: &Other{Label: label, Raw: raw}}
}

// PlainText extracts the readable text of the node and everything below it,
// excluding image paths and configuration.
func (n *Node) PlainText() string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	n.appendPlainText(&buf)
	return strings.TrimSpace(buf.String())
}

func (n *Node) appendPlainText(buf *strings.Builder) {
	switch n.Kind {
	case KindText:
		if n.Text != nil && n.Text.Body != "" {
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(n.Text.Body)
		}
	case KindOther:
		if n.Other != nil && n.Other.Raw != "" {
			if buf.Len() > 0 {
				buf.WriteString(" ")
			}
			buf.WriteString(n.Other.Raw)
		}
	}
	for _, child := range n.Children {
		child.appendPlainText(buf)
	}
}

// Walk calls fn for n and every node below it in depth first order. fn
// returning false prunes the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// CountKind returns how many nodes of the given kind the subtree holds.
func (n *Node) CountKind(kind Kind) int {
	count := 0
	n.Walk(func(node *Node) bool {
		if node.Kind == kind {
			count++
		}
		return true
	})
	return count
}
