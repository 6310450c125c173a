package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"

	"quire/content"
	"quire/geom"
	"quire/layout"
)

// generateXML writes the whole document as a single XML file.
func generateXML(doc *Document, outputPath string) error {
	x := buildDocumentXML(doc)
	x.Indent(2)
	if err := x.WriteToFile(outputPath); err != nil {
		return fmt.Errorf("unable to write output file: %w", err)
	}
	return nil
}

// RenderXML writes the indented XML rendition to w. Shared by the file
// exporter and the HTTP service.
func RenderXML(w io.Writer, doc *Document) error {
	x := buildDocumentXML(doc)
	x.Indent(2)
	if _, err := x.WriteTo(w); err != nil {
		return fmt.Errorf("unable to render document: %w", err)
	}
	return nil
}

func buildDocumentXML(doc *Document) *etree.Document {
	x := etree.NewDocument()
	x.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := x.CreateElement("document")
	root.CreateAttr("id", doc.ID.String())
	if doc.Title != "" {
		root.CreateAttr("title", doc.Title)
	}
	if doc.SourceName != "" {
		root.CreateAttr("source", doc.SourceName)
	}
	root.CreateAttr("pages", strconv.Itoa(len(doc.Pages)))

	for _, page := range doc.Pages {
		pageElement(root, page)
	}

	if len(doc.Diags) > 0 {
		de := root.CreateElement("diagnostics")
		for _, d := range doc.Diags {
			e := de.CreateElement("diagnostic")
			e.CreateAttr("severity", d.Severity.String())
			e.CreateAttr("start", strconv.Itoa(d.Span.Start))
			e.CreateAttr("end", strconv.Itoa(d.Span.End))
			e.SetText(d.Message)
		}
	}
	return x
}

func pageElement(parent *etree.Element, page *layout.Page) {
	pe := parent.CreateElement("page")
	pe.CreateAttr("number", strconv.Itoa(page.Number))

	setup := page.Setup
	se := pe.CreateElement("setup")
	size := setup.EffectiveSize()
	if name := geom.PaperName(setup.Size); name != "" {
		se.CreateAttr("paper", name)
	}
	se.CreateAttr("width", size.Width.String())
	se.CreateAttr("height", size.Height.String())
	if setup.Flipped {
		se.CreateAttr("flipped", "true")
	}
	se.CreateAttr("columns", strconv.Itoa(setup.Columns))
	if setup.Fill != "" {
		se.CreateAttr("fill", setup.Fill)
	}
	if setup.Numbering != "" {
		se.CreateAttr("numbering", setup.Numbering)
	}

	me := se.CreateElement("margins")
	me.CreateAttr("top", setup.Margins.Top.String())
	me.CreateAttr("right", setup.Margins.Right.String())
	me.CreateAttr("bottom", setup.Margins.Bottom.String())
	me.CreateAttr("left", setup.Margins.Left.String())

	for _, block := range page.Blocks {
		blockElement(pe, block)
	}
}

func blockElement(parent *etree.Element, n *content.Node) {
	switch n.Kind {
	case content.KindText:
		t := n.Text
		if t.Heading {
			he := parent.CreateElement("heading")
			he.CreateAttr("level", strconv.Itoa(t.Level))
			he.SetText(t.Body)
			return
		}
		te := parent.CreateElement("text")
		te.SetText(t.Body)
	case content.KindImage:
		img := n.Image
		ie := parent.CreateElement("image")
		ie.CreateAttr("path", img.Path)
		if !img.Width.IsZero() {
			ie.CreateAttr("width", img.Width.String())
		}
		if !img.Height.IsZero() {
			ie.CreateAttr("height", img.Height.String())
		}
	case content.KindContainer:
		ce := parent.CreateElement("container")
		ce.CreateAttr("style", n.Container.Style)
		for _, child := range n.Children {
			blockElement(ce, child)
		}
	case content.KindSpace:
		sp := parent.CreateElement("space")
		if !n.Space.Amount.IsZero() {
			sp.CreateAttr("amount", n.Space.Amount.String())
		}
	case content.KindOther:
		oe := parent.CreateElement("raw")
		if n.Other.Label != "" {
			oe.CreateAttr("label", n.Other.Label)
		}
		oe.SetText(n.Other.Raw)
	}
}
