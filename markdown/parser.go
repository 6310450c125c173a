// Package markdown parses Markdown sources into the content tree using
// goldmark. Thematic breaks become strong page breaks, block quotes become
// quote containers, and a leading YAML front matter block with a "page"
// mapping becomes a standalone page configuration.
package markdown

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"quire/content"
	"quire/diag"
	"quire/geom"
	"quire/source"
)

// Parse turns a Markdown source into a document tree, recording problems
// into diags.
func Parse(src *source.Source, diags *diag.Collector, log *zap.Logger) *content.Node {
	if log == nil {
		log = zap.NewNop()
	}
	if diags == nil {
		diags = diag.NewCollector()
	}
	c := &converter{
		src:   src,
		diags: diags,
		log:   log.Named("markdown"),
	}

	var children []*content.Node
	if cfg, off := c.frontMatter(); off > 0 {
		if cfg != nil {
			children = append(children, cfg)
		}
		c.base = off
	}
	c.cursor = c.base
	c.text = []byte(src.Text())[c.base:]

	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(c.text))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		converted := c.convertBlock(n)
		for _, node := range converted {
			if node.Span.End > c.cursor {
				c.cursor = node.Span.End
			}
		}
		children = append(children, converted...)
	}

	root := content.NewDocument(children...)
	root.Span = source.NewSpan(0, src.Len())

	c.log.Debug("Parsed document",
		zap.String("source", src.Name()),
		zap.Int("blocks", len(children)),
		zap.Int("diagnostics", diags.Len()))
	return root
}

type converter struct {
	src    *source.Source
	text   []byte // the region goldmark parses, src text after front matter
	base   int    // offset of text within the source
	cursor int    // scan position for locating break markers
	diags  *diag.Collector
	log    *zap.Logger
}

func (c *converter) errorf(span source.Span, format string, args ...any) {
	c.diags.Record(diag.Errorf(span, format, args...))
}

func (c *converter) convertBlock(n ast.Node) []*content.Node {
	switch node := n.(type) {
	case *ast.Heading:
		span := c.blockSpan(node)
		if span.End > c.cursor {
			c.cursor = span.End
		}
		c.skipSetextUnderline(span)
		return []*content.Node{content.NewHeading(c.textOf(node), node.Level, span)}

	case *ast.Paragraph:
		return c.convertParagraph(node)

	case *ast.TextBlock:
		span := c.blockSpan(node)
		if txt := c.textOf(node); txt != "" {
			return []*content.Node{content.NewText(txt, span)}
		}
		return nil

	case *ast.ThematicBreak:
		return []*content.Node{content.NewPageBreak(false, c.markerSpan())}

	case *ast.Blockquote:
		var kids []*content.Node
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			kids = append(kids, c.convertBlock(child)...)
		}
		return []*content.Node{content.NewContainer("quote", c.nodeSpan(kids, node), kids...)}

	case *ast.List:
		var items []*content.Node
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if txt := c.textOf(item); txt != "" {
				items = append(items, content.NewText(txt, c.blockSpan(item)))
			}
		}
		return []*content.Node{content.NewContainer("block", c.nodeSpan(items, node), items...)}

	case *ast.FencedCodeBlock:
		lang := string(node.Language(c.text))
		return []*content.Node{content.NewOther(lang, c.rawLines(node), c.blockSpan(node))}

	case *ast.CodeBlock:
		return []*content.Node{content.NewOther("", c.rawLines(node), c.blockSpan(node))}

	case *ast.HTMLBlock:
		return nil

	default:
		if txt := c.textOf(n); txt != "" {
			return []*content.Node{content.NewText(txt, c.blockSpan(n))}
		}
		return nil
	}
}

func (c *converter) convertParagraph(n *ast.Paragraph) []*content.Node {
	span := c.blockSpan(n)
	var out []*content.Node
	if txt := c.textOf(n); txt != "" {
		out = append(out, content.NewText(txt, span))
	}
	c.collectImages(n, span, &out)
	return out
}

// collectImages lifts inline images out as standalone image nodes. Inline
// nodes carry no source segments of their own, so they share the enclosing
// block's span.
func (c *converter) collectImages(n ast.Node, span source.Span, out *[]*content.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if img, ok := child.(*ast.Image); ok {
			*out = append(*out, content.NewImage(string(img.Destination), span))
			continue
		}
		c.collectImages(child, span, out)
	}
}

// textOf flattens the inline text of a block, joining line breaks with
// spaces. Images are left out, collectImages lifts them separately.
func (c *converter) textOf(n ast.Node) string {
	var buf bytes.Buffer
	c.appendText(n, &buf)
	return strings.TrimSpace(buf.String())
}

func (c *converter) appendText(n ast.Node, buf *bytes.Buffer) {
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(c.text))
		}
		return
	}
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Value(c.text))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.Image:
		default:
			c.appendText(child, buf)
		}
	}
}

// rawLines returns the verbatim lines of a code block.
func (c *converter) rawLines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(c.text))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// blockSpan maps a block node's source lines to a span in the original
// source. Blocks without own lines derive the span from their children.
func (c *converter) blockSpan(n ast.Node) source.Span {
	if lines := n.Lines(); lines.Len() > 0 {
		return source.NewSpan(c.base+lines.At(0).Start, c.base+lines.At(lines.Len()-1).Stop)
	}
	start, end := -1, -1
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		s := c.blockSpan(child)
		if s.IsZero() {
			continue
		}
		if start < 0 || s.Start < start {
			start = s.Start
		}
		if s.End > end {
			end = s.End
		}
	}
	if start < 0 {
		return source.Span{}
	}
	return source.NewSpan(start, end)
}

// nodeSpan covers the converted children, falling back to the goldmark
// block when there are none.
func (c *converter) nodeSpan(kids []*content.Node, n ast.Node) source.Span {
	if len(kids) == 0 {
		return c.blockSpan(n)
	}
	return source.NewSpan(kids[0].Span.Start, kids[len(kids)-1].Span.End)
}

// markerSpan locates the thematic break marker line at or after the scan
// cursor. goldmark keeps no source lines for thematic breaks, the marker has
// to be found in the source itself.
func (c *converter) markerSpan() source.Span {
	full := c.src.Text()
	i := c.cursor
	for i <= len(full) {
		rel := strings.IndexByte(full[i:], '\n')
		lineEnd := len(full)
		if rel >= 0 {
			lineEnd = i + rel
		}
		line := full[i:lineEnd]
		if m := breakMarker(line); m != "" {
			start := i + strings.Index(line, m)
			c.cursor = lineEnd
			return source.NewSpan(start, start+len(m))
		}
		if rel < 0 {
			break
		}
		i = lineEnd + 1
	}
	return source.NewSpan(c.cursor, c.cursor)
}

// breakMarker returns the marker run when the line is a thematic break,
// allowing block quote prefixes, or "" otherwise.
func breakMarker(line string) string {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, ">") {
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return ""
	}
	marker := s[0]
	if marker != '-' && marker != '*' && marker != '_' {
		return ""
	}
	count := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case marker:
			count++
		case ' ', '\t':
		default:
			return ""
		}
	}
	if count < 3 {
		return ""
	}
	return s
}

// skipSetextUnderline moves the cursor past the underline of a setext
// heading so markerSpan cannot mistake it for a page break marker. ATX
// headings are left alone, a dash line after one is a real break.
func (c *converter) skipSetextUnderline(headingSpan source.Span) {
	full := c.src.Text()
	ls := headingSpan.Start
	for ls > 0 && full[ls-1] != '\n' {
		ls--
	}
	if strings.HasPrefix(strings.TrimLeft(full[ls:], " "), "#") {
		return
	}

	i := headingSpan.End
	if i < len(full) && full[i] == '\r' {
		i++
	}
	if i >= len(full) || full[i] != '\n' {
		return
	}
	i++
	j := i
	for j < len(full) && full[j] != '\n' {
		j++
	}
	line := strings.TrimSpace(full[i:j])
	if line == "" {
		return
	}
	for k := 0; k < len(line); k++ {
		if line[k] != '-' && line[k] != '=' {
			return
		}
	}
	if j > c.cursor {
		c.cursor = j
	}
}

// frontMatter parses a leading YAML block delimited by --- lines. Page
// properties live under the "page" key, other keys are ignored. The returned
// offset is where the Markdown content starts, 0 when the source has no
// front matter.
func (c *converter) frontMatter() (*content.Node, int) {
	full := c.src.Text()
	rest, ok := strings.CutPrefix(full, "---")
	if !ok {
		return nil, 0
	}
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(rest[:nl]) != "" {
		return nil, 0
	}
	bodyStart := 3 + nl + 1

	bodyEnd, closeEnd, contentStart := -1, -1, -1
	i := bodyStart
	for i <= len(full) {
		rel := strings.IndexByte(full[i:], '\n')
		lineEnd := len(full)
		if rel >= 0 {
			lineEnd = i + rel
		}
		switch strings.TrimSpace(full[i:lineEnd]) {
		case "---", "...":
			bodyEnd = i
			closeEnd = lineEnd
			contentStart = lineEnd
			if rel >= 0 {
				contentStart++
			}
		}
		if bodyEnd >= 0 || rel < 0 {
			break
		}
		i = lineEnd + 1
	}
	if bodyEnd < 0 {
		return nil, 0
	}
	span := source.NewSpan(0, closeEnd)

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(full[bodyStart:bodyEnd]), &root); err != nil {
		c.errorf(span, "unable to parse front matter: %v", err)
		return nil, contentStart
	}
	mapping := &root
	if mapping.Kind == yaml.DocumentNode && len(mapping.Content) > 0 {
		mapping = mapping.Content[0]
	}
	if mapping.Kind != yaml.MappingNode {
		return nil, contentStart
	}

	var props []content.Prop
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, val := mapping.Content[i], mapping.Content[i+1]
		if key.Value != "page" || val.Kind != yaml.MappingNode {
			continue
		}
		for k := 0; k+1 < len(val.Content); k += 2 {
			pk, pv := val.Content[k], val.Content[k+1]
			props = append(props, content.Prop{
				Name:  pk.Value,
				Value: yamlValue(pv),
				Span:  c.lineSpan(bodyStart, pv.Line),
			})
		}
	}
	if len(props) == 0 {
		return nil, contentStart
	}
	return content.NewPageConfig(span, props...), contentStart
}

// yamlValue converts a YAML scalar to a directive value. Strings that parse
// as lengths become lengths, so "margin: 2cm" works as expected.
func yamlValue(n *yaml.Node) content.Value {
	switch n.Tag {
	case "!!bool":
		return content.BoolValue(n.Value == "true")
	case "!!int":
		i, err := strconv.Atoi(n.Value)
		if err == nil {
			return content.IntValue(i)
		}
	case "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err == nil {
			return content.FloatValue(f)
		}
	}
	if l, err := geom.ParseLength(n.Value); err == nil {
		return content.LengthValue(l)
	}
	return content.StringValue(n.Value)
}

// lineSpan covers the trimmed content of the given 1-based line within the
// front matter body.
func (c *converter) lineSpan(bodyStart, line int) source.Span {
	full := c.src.Text()
	i := bodyStart
	for n := 1; n < line && i < len(full); i++ {
		if full[i] == '\n' {
			n++
		}
	}
	j := i
	for j < len(full) && full[j] != '\n' {
		j++
	}
	for i < j && (full[i] == ' ' || full[i] == '\t') {
		i++
	}
	k := j
	for k > i && (full[k-1] == ' ' || full[k-1] == '\t' || full[k-1] == '\r') {
		k--
	}
	return source.NewSpan(i, k)
}
