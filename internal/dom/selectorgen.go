package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxSelectorCandidates bounds how many alternatives a confirmation stores.
const maxSelectorCandidates = 5

// Attributes preferred for stable selectors, best first. Test hooks and ARIA
// labels survive redesigns far better than class names.
var stableAttrs = []string{"data-testid", "data-test", "aria-label", "itemprop", "name"}

// SelectorCandidates derives ranked selectors that re-locate this node on a
// future render of the same page. Each candidate is verified against the
// current document: it must resolve, and resolve to this node first. The
// last candidate is a positional XPath, the least stable but always present.
func (nd *Node) SelectorCandidates() []string {
	var out []string
	add := func(sel string) {
		if len(out) >= maxSelectorCandidates || sel == "" {
			return
		}
		nodes, err := nd.doc.Query(sel)
		if err != nil || len(nodes) == 0 || nodes[0].n != nd.n {
			return
		}
		out = append(out, sel)
	}

	if id := nd.Attr("id"); id != "" && !strings.ContainsAny(id, " \"'") {
		add("#" + id)
	}
	for _, attr := range stableAttrs {
		if v := nd.Attr(attr); v != "" && !strings.ContainsAny(v, "\"\\") {
			add(fmt.Sprintf(`%s[%s="%s"]`, nd.Tag(), attr, v))
		}
	}
	if classes := strings.Fields(nd.Attr("class")); len(classes) > 0 {
		limit := len(classes)
		if limit > 2 {
			limit = 2
		}
		add(nd.Tag() + "." + strings.Join(classes[:limit], "."))
	}
	add(nd.Path())

	if len(out) < maxSelectorCandidates {
		out = append(out, nd.xpath())
	}
	return out
}

// xpath builds an absolute positional XPath for the node, in the prefixed
// form Query understands.
func (nd *Node) xpath() string {
	var segs []string
	for n := nd.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		segs = append(segs, fmt.Sprintf("%s[%d]", n.Data, nthOfType(n)))
	}
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return xpathPrefix + "/" + strings.Join(segs, "/")
}
