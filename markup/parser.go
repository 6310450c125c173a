// Package markup parses the native document language into a content tree.
//
// The language is block structured: paragraphs separated by blank lines,
// headings introduced by "=", and directives starting with "#" at block
// position. Directives are block level, a "#" inside paragraph text stays
// text. Comments occupy whole lines starting with "//". A backslash escapes
// "#", "=", "]" and itself in text.
//
// Parse errors never abort: each one is recorded as an error diagnostic, the
// offending construct is dropped and parsing resumes at the next safe point.
package markup

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"quire/content"
	"quire/diag"
	"quire/geom"
	"quire/source"
)

// Parse turns src into a document tree, recording problems into diags.
func Parse(src *source.Source, diags *diag.Collector, log *zap.Logger) *content.Node {
	if log == nil {
		log = zap.NewNop()
	}
	if diags == nil {
		diags = diag.NewCollector()
	}
	p := &parser{
		src:   src,
		text:  src.Text(),
		diags: diags,
		log:   log.Named("markup"),
	}

	children := p.parseBlocks(false)
	doc := content.NewDocument(children...)
	doc.Span = source.NewSpan(0, len(p.text))

	p.log.Debug("Parsed document",
		zap.String("source", src.Name()),
		zap.Int("blocks", len(children)),
		zap.Int("diagnostics", diags.Len()))
	return doc
}

type parser struct {
	src   *source.Source
	text  string
	pos   int
	diags *diag.Collector
	log   *zap.Logger
}

// arg is one parsed directive argument, positional when name is empty.
type arg struct {
	name  string
	value content.Value
	span  source.Span
}

func (p *parser) errorf(span source.Span, format string, args ...any) {
	p.diags.Record(diag.Errorf(span, format, args...))
}

func (p *parser) warnf(span source.Span, format string, args ...any) {
	p.diags.Record(diag.Warningf(span, format, args...))
}

func (p *parser) eof() bool {
	return p.pos >= len(p.text)
}

func (p *parser) ch() byte {
	if p.eof() {
		return 0
	}
	return p.text[p.pos]
}

func (p *parser) peek() byte {
	if p.pos+1 >= len(p.text) {
		return 0
	}
	return p.text[p.pos+1]
}

// parseBlocks parses block constructs until end of input, or until an
// unescaped "]" when parsing a directive body. The closing bracket is left
// for the caller to consume.
func (p *parser) parseBlocks(inBody bool) []*content.Node {
	var nodes []*content.Node
	for {
		p.skipBlank()
		if p.eof() {
			return nodes
		}
		c := p.ch()
		if inBody && c == ']' {
			return nodes
		}
		switch {
		case c == '#':
			if n := p.parseDirective(); n != nil {
				nodes = append(nodes, n)
			}
		case c == '=' && p.atHeading():
			nodes = append(nodes, p.parseHeading())
		default:
			if n := p.parseParagraph(inBody); n != nil {
				nodes = append(nodes, n)
			}
		}
	}
}

// skipBlank advances past whitespace and comment lines.
func (p *parser) skipBlank() {
	for !p.eof() {
		switch c := p.ch(); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '/' && p.peek() == '/':
			p.skipToLineEnd()
		default:
			return
		}
	}
}

func (p *parser) skipToLineEnd() {
	for !p.eof() && p.ch() != '\n' {
		p.pos++
	}
}

// skipInlineSpace advances past spaces and tabs on the current line.
func (p *parser) skipInlineSpace() {
	for !p.eof() && (p.ch() == ' ' || p.ch() == '\t') {
		p.pos++
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.ch()
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '-' || (p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.text[start:p.pos]
}

func (p *parser) atHeading() bool {
	i := p.pos
	for i < len(p.text) && p.text[i] == '=' {
		i++
	}
	return i > p.pos && i < len(p.text) && (p.text[i] == ' ' || p.text[i] == '\t')
}

func (p *parser) parseHeading() *content.Node {
	start := p.pos
	level := 0
	for !p.eof() && p.ch() == '=' {
		level++
		p.pos++
	}
	p.skipInlineSpace()

	lineEnd := strings.IndexByte(p.text[p.pos:], '\n')
	if lineEnd < 0 {
		lineEnd = len(p.text) - p.pos
	}
	raw := strings.TrimRight(p.text[p.pos:p.pos+lineEnd], " \t\r")
	end := p.pos + len(raw)
	p.pos += lineEnd

	return content.NewHeading(unescape(raw), level, source.NewSpan(start, end))
}

// parseParagraph collects text until a blank line, a block construct at line
// start, the body terminator, or end of input. Lines are joined with single
// spaces.
func (p *parser) parseParagraph(inBody bool) *content.Node {
	start := p.pos
	end := p.pos
	var b strings.Builder

scan:
	for !p.eof() {
		c := p.ch()
		switch {
		case inBody && c == ']':
			break scan
		case c == '\\' && isEscapable(p.peek()):
			b.WriteByte(p.peek())
			p.pos += 2
			end = p.pos
		case c == '\r':
			p.pos++
		case c == '\n':
			if !p.continuesParagraph(inBody) {
				break scan
			}
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
			p.pos++
			if c != ' ' && c != '\t' {
				end = p.pos
			}
		}
	}

	body := strings.TrimSpace(b.String())
	if body == "" {
		// Make progress even on degenerate input.
		if p.pos == start && !p.eof() {
			p.pos++
		}
		return nil
	}
	return content.NewText(body, source.NewSpan(start, end))
}

// continuesParagraph is called with the position at a newline. It decides
// whether the following line continues the current paragraph, skipping
// comment lines, and leaves the position at the first content to continue
// from (or at the boundary when the paragraph ends).
func (p *parser) continuesParagraph(inBody bool) bool {
	for {
		p.pos++ // consume the newline
		for !p.eof() && (p.ch() == ' ' || p.ch() == '\t' || p.ch() == '\r') {
			p.pos++
		}
		if p.eof() {
			return false
		}
		switch c := p.ch(); {
		case c == '\n': // blank line
			return false
		case c == '#' || (c == '=' && p.atHeading()):
			return false
		case inBody && c == ']':
			return false
		case c == '/' && p.peek() == '/':
			p.skipToLineEnd()
			if p.eof() {
				return false
			}
			continue // the comment's newline starts the next round
		default:
			return true
		}
	}
}

func isEscapable(c byte) bool {
	return c == '#' || c == '=' || c == ']' || c == '\\'
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isEscapable(s[i+1]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (p *parser) parseDirective() *content.Node {
	start := p.pos
	p.pos++ // consume '#'
	name := p.ident()

	switch name {
	case "pagebreak":
		return p.parsePageBreak(start)
	case "set":
		return p.parseSetRule(start)
	case "page":
		return p.parsePage(start)
	case "box", "block", "quote", "figure":
		return p.parseContainer(start, name)
	case "image":
		return p.parseImage(start)
	case "v":
		return p.parseSpace(start)
	case "":
		p.errorf(source.NewSpan(start, p.pos), "stray # in block position")
		return nil
	default:
		p.errorf(source.NewSpan(start, p.pos), "unknown directive #%s", name)
		p.skipToLineEnd()
		return nil
	}
}

func (p *parser) parsePageBreak(start int) *content.Node {
	args, ok := p.parseArgs(start)
	if !ok {
		return nil
	}
	weak := false
	for _, a := range args {
		switch {
		case a.name == "weak" && a.value.Kind == content.ValueBool:
			weak = a.value.Bool
		case a.name == "weak":
			p.warnf(a.span, "argument weak expects a boolean, got %s", a.value.Raw)
		default:
			p.warnf(a.span, "unknown argument %q to #pagebreak", a.name)
		}
	}
	return content.NewPageBreak(weak, source.NewSpan(start, p.pos))
}

func (p *parser) parseSetRule(start int) *content.Node {
	p.skipInlineSpace()
	target := p.ident()
	if target != "page" {
		p.errorf(source.NewSpan(start, p.pos), "only page rules can be set, got %q", target)
		p.skipToLineEnd()
		return nil
	}
	args, ok := p.parseArgs(start)
	if !ok {
		return nil
	}
	return content.NewPageConfig(source.NewSpan(start, p.pos), p.argsToProps(args)...)
}

func (p *parser) parsePage(start int) *content.Node {
	args, ok := p.parseArgs(start)
	if !ok {
		return nil
	}
	props := p.argsToProps(args)

	// A body directly after the argument list scopes the configuration to
	// it. Without one the configuration scopes an empty body.
	var body []*content.Node
	p.skipInlineSpace()
	if p.ch() == '[' {
		body = p.parseBody()
	}
	return content.NewScopedPageConfig(source.NewSpan(start, p.pos), props, body...)
}

func (p *parser) parseContainer(start int, style string) *content.Node {
	if p.ch() == '(' {
		p.errorf(source.NewSpan(start, p.pos+1), "#%s takes no arguments", style)
		p.recoverArgs()
	}
	p.skipInlineSpace()
	if p.ch() != '[' {
		p.errorf(source.NewSpan(start, p.pos), "expected [ body ] after #%s", style)
		return nil
	}
	children := p.parseBody()
	return content.NewContainer(style, source.NewSpan(start, p.pos), children...)
}

func (p *parser) parseImage(start int) *content.Node {
	args, ok := p.parseArgs(start)
	if !ok {
		return nil
	}
	span := source.NewSpan(start, p.pos)

	img := &content.Image{}
	for _, a := range args {
		switch {
		case a.name == "" && a.value.Kind == content.ValueString:
			img.Path = a.value.Str
		case a.name == "width" && a.value.Kind == content.ValueLength:
			img.Width = a.value.Length
		case a.name == "height" && a.value.Kind == content.ValueLength:
			img.Height = a.value.Length
		case a.name == "width" || a.name == "height":
			p.warnf(a.span, "argument %s expects a length, got %s", a.name, a.value.Raw)
		default:
			p.warnf(a.span, "unknown argument to #image")
		}
	}
	if img.Path == "" {
		p.errorf(span, "#image needs a file path")
		return nil
	}
	return &content.Node{Kind: content.KindImage, Span: span, Image: img}
}

func (p *parser) parseSpace(start int) *content.Node {
	args, ok := p.parseArgs(start)
	if !ok {
		return nil
	}
	span := source.NewSpan(start, p.pos)
	var amount geom.Length
	found := false
	for _, a := range args {
		if a.name == "" && a.value.Kind == content.ValueLength && !found {
			amount = a.value.Length
			found = true
			continue
		}
		p.warnf(a.span, "unknown argument to #v")
	}
	if !found {
		p.errorf(span, "#v needs a length")
		return nil
	}
	return content.NewSpace(amount, span)
}

// parseBody parses "[ blocks ]" with the position at the opening bracket.
func (p *parser) parseBody() []*content.Node {
	open := p.pos
	p.pos++
	children := p.parseBlocks(true)
	if p.eof() {
		p.errorf(source.NewSpan(open, open+1), "unclosed body, expected ]")
		return children
	}
	p.pos++ // consume ']'
	return children
}

// parseArgs parses "( arg, arg, ... )" with the position at the opening
// parenthesis. On a parse error it records a diagnostic, skips to the end of
// the list and reports failure.
func (p *parser) parseArgs(dirStart int) ([]arg, bool) {
	if p.ch() != '(' {
		p.errorf(source.NewSpan(dirStart, p.pos), "expected ( after directive")
		p.skipToLineEnd()
		return nil, false
	}
	p.pos++

	var args []arg
	for {
		p.skipArgSpace()
		if p.eof() {
			p.errorf(source.NewSpan(dirStart, p.pos), "unterminated argument list")
			return nil, false
		}
		if p.ch() == ')' {
			p.pos++
			return args, true
		}
		if len(args) > 0 {
			if p.ch() != ',' {
				p.errorf(source.NewSpan(p.pos, p.pos+1), "expected , between arguments")
				p.recoverArgs()
				return nil, false
			}
			p.pos++
			p.skipArgSpace()
			if p.ch() == ')' { // trailing comma
				p.pos++
				return args, true
			}
		}

		a, ok := p.parseArg()
		if !ok {
			p.recoverArgs()
			return nil, false
		}
		args = append(args, a)
	}
}

// skipArgSpace advances past whitespace inside an argument list, newlines
// included.
func (p *parser) skipArgSpace() {
	for !p.eof() {
		c := p.ch()
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.pos++
			continue
		}
		return
	}
}

// recoverArgs skips to the closing parenthesis on the current line, or to
// the end of the line when there is none.
func (p *parser) recoverArgs() {
	for !p.eof() && p.ch() != ')' && p.ch() != '\n' {
		p.pos++
	}
	if !p.eof() && p.ch() == ')' {
		p.pos++
	}
}

func (p *parser) parseArg() (arg, bool) {
	start := p.pos

	if isIdentStart(p.ch()) {
		name := p.ident()
		p.skipArgSpace()
		if p.ch() == ':' {
			p.pos++
			p.skipArgSpace()
			value, ok := p.parseValue()
			if !ok {
				return arg{}, false
			}
			return arg{name: name, value: value, span: source.NewSpan(start, p.pos)}, true
		}
		// A bare identifier is a positional keyword or boolean.
		value := content.KeywordValue(name)
		if name == "true" || name == "false" {
			value = content.BoolValue(name == "true")
		}
		return arg{value: value, span: source.NewSpan(start, p.pos)}, true
	}

	value, ok := p.parseValue()
	if !ok {
		return arg{}, false
	}
	return arg{value: value, span: source.NewSpan(start, p.pos)}, true
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func (p *parser) parseValue() (content.Value, bool) {
	start := p.pos
	c := p.ch()
	switch {
	case c == '"':
		s, ok := p.parseString()
		if !ok {
			return content.Value{}, false
		}
		return content.StringValue(s), true

	case c == '-' || c == '+' || c == '.' || c >= '0' && c <= '9':
		return p.parseNumber(start)

	case isIdentStart(c):
		name := p.ident()
		if name == "true" || name == "false" {
			return content.BoolValue(name == "true"), true
		}
		return content.KeywordValue(name), true

	default:
		p.errorf(source.NewSpan(start, start+1), "expected a value")
		return content.Value{}, false
	}
}

func (p *parser) parseString() (string, bool) {
	start := p.pos
	p.pos++ // opening quote
	var b strings.Builder
	for !p.eof() {
		c := p.ch()
		switch c {
		case '"':
			p.pos++
			return b.String(), true
		case '\\':
			if p.peek() == '"' || p.peek() == '\\' {
				b.WriteByte(p.peek())
				p.pos += 2
				continue
			}
			b.WriteByte(c)
			p.pos++
		case '\n':
			p.errorf(source.NewSpan(start, p.pos), "unterminated string")
			return "", false
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	p.errorf(source.NewSpan(start, p.pos), "unterminated string")
	return "", false
}

func (p *parser) parseNumber(start int) (content.Value, bool) {
	p.pos++ // sign or first digit
	dots := strings.HasPrefix(p.text[start:], ".")
	for !p.eof() {
		c := p.ch()
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !dots {
			dots = true
			p.pos++
			continue
		}
		break
	}
	numEnd := p.pos

	// A trailing identifier is the unit.
	unit := p.ident()
	raw := p.text[start:p.pos]
	if unit != "" {
		length, err := geom.ParseLength(raw)
		if err != nil {
			p.errorf(source.NewSpan(start, p.pos), "unknown length unit %q", unit)
			return content.Value{}, false
		}
		return content.LengthValue(length), true
	}

	num := p.text[start:numEnd]
	if !dots {
		i, err := strconv.Atoi(num)
		if err != nil {
			p.errorf(source.NewSpan(start, numEnd), "bad number %q", num)
			return content.Value{}, false
		}
		return content.IntValue(i), true
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		p.errorf(source.NewSpan(start, numEnd), "bad number %q", num)
		return content.Value{}, false
	}
	return content.FloatValue(f), true
}

// argsToProps converts directive arguments to page properties. Positional
// string or keyword arguments select the paper preset.
func (p *parser) argsToProps(args []arg) []content.Prop {
	props := make([]content.Prop, 0, len(args))
	for _, a := range args {
		name := a.name
		if name == "" {
			if a.value.Kind != content.ValueString && a.value.Kind != content.ValueKeyword {
				p.warnf(a.span, "unnamed page argument %s is not a paper name", a.value.Raw)
				continue
			}
			name = "paper"
		}
		props = append(props, content.Prop{Name: name, Value: a.value, Span: a.span})
	}
	return props
}
