// Package dom wraps a parsed HTML tree behind the small surface the
// extraction tiers need: selector queries with per-selector error capture,
// visibility checks, and provenance paths. The document is always injected,
// never pulled from a global, so every consumer can run against synthetic
// markup in tests.
package dom

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// WidgetAttr marks elements injected by our own overlay UI. Anything carrying
// it (or inside something carrying it) is invisible to extraction.
const WidgetAttr = "data-price-sentry"

// xpathPrefix routes a selector to the XPath engine instead of CSS.
const xpathPrefix = "xpath:"

// StyleResolver answers computed-style questions for a node. The default
// implementation reads inline style attributes; an embedder driving a real
// browser can inject one backed by actual computed styles.
type StyleResolver interface {
	Style(n *html.Node, property string) string
}

// Document is an injected, immutable view of one page.
type Document struct {
	doc     *goquery.Document
	root    *html.Node
	pageURL *url.URL
	styles  StyleResolver
}

// Parse reads HTML from r. pageURL is kept for evidence; a bad URL is not an
// error, it just leaves the hostname empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "dom: parse document")
	}
	d := &Document{doc: doc, root: doc.Get(0), styles: inlineStyles{}}
	if u, err := url.Parse(pageURL); err == nil {
		d.pageURL = u
	}
	return d, nil
}

// ParseString parses HTML held in a string.
func ParseString(markup, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(markup), pageURL)
}

// WithStyleResolver overrides the style source used for visibility and
// prominence checks.
func (d *Document) WithStyleResolver(sr StyleResolver) *Document {
	if sr != nil {
		d.styles = sr
	}
	return d
}

// URL returns the page URL the document was parsed under.
func (d *Document) URL() string {
	if d.pageURL == nil {
		return ""
	}
	return d.pageURL.String()
}

// Hostname returns the page hostname, or "" when unknown.
func (d *Document) Hostname() string {
	if d.pageURL == nil {
		return ""
	}
	return d.pageURL.Hostname()
}

// Query resolves a CSS selector (or an XPath expression prefixed with
// "xpath:" or starting with "/") to matching nodes. Invalid selectors return
// an error instead of panicking so callers can skip to the next candidate.
func (d *Document) Query(selector string) ([]*Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, eris.New("dom: empty selector")
	}

	var matches []*html.Node
	if expr, ok := strings.CutPrefix(selector, xpathPrefix); ok || strings.HasPrefix(selector, "/") {
		if !ok {
			expr = selector
		}
		nodes, err := htmlquery.QueryAll(d.root, expr)
		if err != nil {
			return nil, eris.Wrapf(err, "dom: compile xpath %q", selector)
		}
		matches = nodes
	} else {
		sel, err := cascadia.Compile(selector)
		if err != nil {
			return nil, eris.Wrapf(err, "dom: compile selector %q", selector)
		}
		matches = sel.MatchAll(d.root)
	}

	nodes := make([]*Node, 0, len(matches))
	for _, m := range matches {
		nodes = append(nodes, &Node{n: m, doc: d})
	}
	return nodes, nil
}

// maxCandidateNodes bounds the heuristic scan on pathological pages.
const maxCandidateNodes = 2000

// VisibleCandidates walks the whole tree and returns visible, non-widget
// elements that carry their own text — the raw material for heuristic scoring.
func (d *Document) VisibleCandidates() []*Node {
	var out []*Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(out) >= maxCandidateNodes {
			return
		}
		if n.Type == html.ElementNode {
			if skippedElement(n.Data) || hasAttr(n, WidgetAttr) {
				return
			}
		}
		if n.Type == html.ElementNode {
			node := &Node{n: n, doc: d}
			if strings.TrimSpace(node.OwnText()) != "" && node.Visible() {
				out = append(out, node)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return out
}

func skippedElement(tag string) bool {
	switch tag {
	case "script", "style", "template", "noscript", "head", "meta", "link", "title":
		return true
	}
	return false
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// inlineStyles resolves style properties from inline style attributes only.
type inlineStyles struct{}

func (inlineStyles) Style(n *html.Node, property string) string {
	raw := attrVal(n, "style")
	if raw == "" {
		return ""
	}
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), property) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
