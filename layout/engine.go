// Package layout turns a content tree into a sequence of finalized pages.
// Page breaks and page configuration overrides are honored only at the top
// level document flow; inside containers they are rejected with diagnostics
// and ignored, the rest of the document is unaffected.
package layout

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quire/content"
	"quire/content/text"
	"quire/diag"
)

// scopeViolation is the message attached to every rejected page directive.
const scopeViolation = "cannot modify page from here"

// Options configure an engine.
type Options struct {
	// Setup is the initial page configuration. The zero value means
	// DefaultSetup.
	Setup Setup
	// AutoFlow splits overlong text blocks across pages at sentence
	// boundaries using a rough capacity estimate. Off by default, pagination
	// is directive driven.
	AutoFlow bool
	// CharsPerPage overrides the geometric capacity estimate for AutoFlow.
	// Zero derives the estimate from the page setup.
	CharsPerPage int
	// Splitter provides sentence boundaries for AutoFlow. Unset means a
	// built-in English tokenizer.
	Splitter *text.Splitter
}

// Engine lays out one document per Paginate call. It owns all intermediate
// state and resets it on every pass, so a single engine may be reused
// sequentially; concurrent passes need separate engines.
type Engine struct {
	opts  Options
	log   *zap.Logger
	diags *diag.Collector

	scopes *scopeStack
	active Setup
	flow   *flow
	pages  []*Page
}

// NewEngine creates an engine. A nil collector gets replaced with a fresh
// one, retrievable via Diagnostics.
func NewEngine(opts Options, diags *diag.Collector, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if diags == nil {
		diags = diag.NewCollector()
	}
	if opts.Setup == (Setup{}) {
		opts.Setup = DefaultSetup()
	}
	if opts.AutoFlow && opts.Splitter == nil {
		opts.Splitter = text.NewSplitter(log)
	}
	return &Engine{
		opts:  opts,
		log:   log.Named("layout"),
		diags: diags,
	}
}

// Diagnostics returns the collector the engine records into.
func (e *Engine) Diagnostics() *diag.Collector {
	return e.diags
}

// Paginate walks the document tree depth first and returns the finalized
// pages in order. The tree is read only, repeated passes over the same tree
// yield identical results. The context is checked once at entry, there is no
// cancellation mid pass.
func (e *Engine) Paginate(ctx context.Context, doc *content.Node) ([]*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || doc.Kind != content.KindDocument {
		return nil, fmt.Errorf("unable to paginate: root must be a %s node", content.KindDocument)
	}

	// Fresh state per pass keeps repeated runs idempotent.
	e.scopes = newScopeStack()
	e.active = e.opts.Setup
	e.flow = &flow{}
	e.pages = nil

	for _, child := range doc.Children {
		e.walk(child)
	}
	// End of input finalizes the trailing page, every document yields at
	// least one page.
	e.finalizePage()

	if e.scopes.depth() != 1 {
		panic("layout: scope stack unbalanced after traversal")
	}

	e.log.Debug("Pagination done",
		zap.Int("pages", len(e.pages)),
		zap.Int("diagnostics", e.diags.Len()))
	return e.pages, nil
}

func (e *Engine) walk(n *content.Node) {
	switch n.Kind {
	case content.KindContainer:
		// The container lays out as a single block of the enclosing flow.
		// Nested containers are already part of their parent's subtree.
		if !e.scopes.restricted() {
			e.appendBlock(n)
		}
		e.scopes.push(pageRestricted)
		for _, child := range n.Children {
			e.walk(child)
		}
		// Popped unconditionally, diagnostics inside the subtree must never
		// leave the stack corrupted for the traversal that follows.
		e.scopes.pop()

	case content.KindPageBreak:
		if e.scopes.restricted() {
			e.diags.Record(diag.Error(n.Span, scopeViolation))
			return
		}
		if n.PageBreak != nil && n.PageBreak.Weak && e.flow.empty() {
			return
		}
		e.finalizePage()

	case content.KindPageConfig:
		e.walkPageConfig(n)

	case content.KindDocument:
		// Parsers produce exactly one document node at the root. Walk
		// through a stray nested one.
		for _, child := range n.Children {
			e.walk(child)
		}

	default:
		if !e.scopes.restricted() {
			e.appendBlock(n)
		}
	}
}

func (e *Engine) walkPageConfig(n *content.Node) {
	if e.scopes.restricted() {
		e.diags.Record(diag.Error(n.Span, scopeViolation))
		// The configuration is dropped but its body is still ordinary
		// content: walk it like a container so nested directives are
		// detected and rejected on their own.
		if len(n.Children) > 0 {
			e.scopes.push(pageRestricted)
			for _, child := range n.Children {
				e.walk(child)
			}
			e.scopes.pop()
		}
		return
	}

	if n.PageConfig == nil {
		return
	}

	if !n.PageConfig.Scoped {
		// Standalone override, persists until the next override.
		for _, p := range n.PageConfig.Props {
			e.active.Apply(p, e.diags)
		}
		return
	}

	// Scoped override: the body gets its own page run under the merged
	// configuration, then the previous configuration is restored. Content
	// accumulated before the run stays on its own page.
	if !e.flow.empty() {
		e.finalizePage()
	}
	saved := e.active
	for _, p := range n.PageConfig.Props {
		e.active.Apply(p, e.diags)
	}
	for _, child := range n.Children {
		e.walk(child)
	}
	// Even an empty body produces one page under the scoped configuration.
	e.finalizePage()
	e.active = saved
}

// finalizePage snapshots the active setup and the accumulated blocks into an
// immutable page and starts collecting the next one.
func (e *Engine) finalizePage() {
	e.pages = append(e.pages, &Page{
		Number: len(e.pages) + 1,
		Setup:  e.active,
		Blocks: e.flow.take(),
	})
}

// appendBlock adds a node to the current flow. With AutoFlow enabled,
// overlong text blocks are split at sentence boundaries across page
// boundaries; everything else is unbreakable.
func (e *Engine) appendBlock(n *content.Node) {
	if !e.opts.AutoFlow {
		e.flow.add(n, 0)
		return
	}

	limit := e.opts.CharsPerPage
	if limit <= 0 {
		limit = capacity(e.active)
	}
	if limit <= 0 {
		e.flow.add(n, 0)
		return
	}

	if n.Kind != content.KindText || n.Text == nil || n.Text.Heading {
		size := len(n.PlainText())
		if !e.flow.empty() && e.flow.chars+size > limit {
			e.finalizePage()
		}
		e.flow.add(n, size)
		return
	}

	body := n.Text.Body
	for {
		room := limit - e.flow.chars
		if len(body) <= room {
			e.flow.add(content.NewText(body, n.Span), len(body))
			return
		}
		head, tail := e.splitText(body, room)
		if head == "" {
			if e.flow.empty() {
				// Not even one sentence fits an empty page, give up on
				// splitting this block.
				e.flow.add(content.NewText(body, n.Span), len(body))
				return
			}
			e.finalizePage()
			continue
		}
		e.flow.add(content.NewText(head, n.Span), len(head))
		e.finalizePage()
		body = tail
	}
}

// splitText packs whole sentences into at most room characters. An empty
// head means not even the first sentence fits.
func (e *Engine) splitText(body string, room int) (head, tail string) {
	parts := e.opts.Splitter.Split(body)
	taken := 0
	for _, s := range parts {
		if taken+len(s) > room {
			break
		}
		taken += len(s)
	}
	if taken == 0 {
		return "", body
	}
	return strings.TrimRight(body[:taken], " "), strings.TrimLeft(body[taken:], " ")
}
