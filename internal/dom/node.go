package dom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// opacityThreshold is the minimum opacity below which an element is treated
// as hidden (template placeholders frequently sit at opacity 0).
const opacityThreshold = 0.1

// Node is one element in the document, with the style and provenance
// accessors extraction needs.
type Node struct {
	n   *html.Node
	doc *Document
}

var collapseWS = regexp.MustCompile(`[\s\x{00a0}]+`)

// Text returns the full normalized text under the node, skipping script and
// style subtrees.
func (nd *Node) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElement(n.Data) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(nd.n)
	return strings.TrimSpace(collapseWS.ReplaceAllString(b.String(), " "))
}

// OwnText returns only the node's direct text children.
func (nd *Node) OwnText() string {
	var b strings.Builder
	for c := nd.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(collapseWS.ReplaceAllString(b.String(), " "))
}

// Attr returns the value of an attribute, or "".
func (nd *Node) Attr(name string) string {
	return attrVal(nd.n, name)
}

// Tag returns the element tag name.
func (nd *Node) Tag() string {
	return nd.n.Data
}

// InOwnWidget reports whether the node sits inside our injected overlay UI.
func (nd *Node) InOwnWidget() bool {
	for n := nd.n; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && hasAttr(n, WidgetAttr) {
			return true
		}
	}
	return false
}

// Visible applies the shared visibility rule: rendered box, not
// display:none/visibility:hidden, opacity above threshold, no hidden
// attribute, not inside a <template>. Checked on the node and every ancestor.
func (nd *Node) Visible() bool {
	for n := nd.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if n.Data == "template" {
			return false
		}
		if hasAttr(n, "hidden") {
			return false
		}
		if !nd.styleVisible(n) {
			return false
		}
	}
	return true
}

func (nd *Node) styleVisible(n *html.Node) bool {
	style := nd.doc.styles
	if strings.EqualFold(style.Style(n, "display"), "none") {
		return false
	}
	if strings.EqualFold(style.Style(n, "visibility"), "hidden") {
		return false
	}
	if v := style.Style(n, "opacity"); v != "" {
		if op, err := strconv.ParseFloat(v, 64); err == nil && op < opacityThreshold {
			return false
		}
	}
	for _, dim := range []string{"width", "height"} {
		v := strings.TrimSuffix(style.Style(n, dim), "px")
		if v == "0" {
			return false
		}
	}
	return true
}

// Strikethrough reports whether the node renders with a line through it —
// crossed-out original prices must never win.
func (nd *Node) Strikethrough() bool {
	for n := nd.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "s", "del", "strike":
			return true
		}
		if strings.Contains(nd.doc.styles.Style(n, "text-decoration"), "line-through") {
			return true
		}
	}
	return false
}

// tagFontDefaults approximates browser default sizes for heading prominence
// when no explicit font-size is present.
var tagFontDefaults = map[string]float64{
	"h1": 32, "h2": 24, "h3": 19, "h4": 16, "h5": 13, "h6": 11,
}

// FontSizePx returns the effective font size in pixels, looking at the node
// and its ancestors for an explicit px value before falling back to tag
// defaults.
func (nd *Node) FontSizePx() float64 {
	for n := nd.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if v := nd.doc.styles.Style(n, "font-size"); strings.HasSuffix(v, "px") {
			if px, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64); err == nil {
				return px
			}
		}
		if px, ok := tagFontDefaults[n.Data]; ok {
			return px
		}
	}
	return 16
}

// Bold reports whether the node renders bold.
func (nd *Node) Bold() bool {
	for n := nd.n; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "b", "strong":
			return true
		}
		switch w := nd.doc.styles.Style(n, "font-weight"); {
		case strings.EqualFold(w, "bold"), strings.EqualFold(w, "bolder"):
			return true
		case w != "":
			if num, err := strconv.Atoi(w); err == nil && num >= 600 {
				return true
			}
		}
	}
	return false
}

// LabelText finds the text most likely labeling this value: an aria-label,
// a preceding sibling, or the parent's own text around it.
func (nd *Node) LabelText() string {
	if v := nd.Attr("aria-label"); v != "" {
		return truncateLabel(v)
	}

	// Preceding element siblings, nearest first.
	seen := 0
	for s := nd.n.PrevSibling; s != nil && seen < 3; s = s.PrevSibling {
		if s.Type != html.ElementNode {
			continue
		}
		seen++
		sib := &Node{n: s, doc: nd.doc}
		if t := sib.Text(); t != "" {
			return truncateLabel(t)
		}
	}

	// Parent (then grandparent) text with this node's own text removed.
	own := nd.Text()
	depth := 0
	for p := nd.n.Parent; p != nil && depth < 2; p = p.Parent {
		if p.Type != html.ElementNode || skippedElement(p.Data) {
			break
		}
		depth++
		parent := &Node{n: p, doc: nd.doc}
		t := strings.TrimSpace(strings.Replace(parent.Text(), own, "", 1))
		if t != "" {
			return truncateLabel(t)
		}
	}
	return ""
}

func truncateLabel(s string) string {
	s = strings.TrimSpace(collapseWS.ReplaceAllString(s, " "))
	if len(s) > 120 {
		return s[:120]
	}
	return s
}

// Path builds a CSS-ish provenance path from the document root to the node.
// It stops early at an id since ids anchor the path on their own.
func (nd *Node) Path() string {
	var segments []string
	for n := nd.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		seg := n.Data
		if id := attrVal(n, "id"); id != "" {
			segments = append(segments, seg+"#"+id)
			break
		}
		if classes := strings.Fields(attrVal(n, "class")); len(classes) > 0 {
			limit := len(classes)
			if limit > 2 {
				limit = 2
			}
			seg += "." + strings.Join(classes[:limit], ".")
		}
		if idx := nthOfType(n); idx > 1 {
			seg += fmt.Sprintf(":nth-of-type(%d)", idx)
		}
		segments = append(segments, seg)
		if n.Data == "body" || n.Data == "html" {
			break
		}
	}
	// Reverse into document order.
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}

func nthOfType(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			idx++
		}
	}
	return idx
}
