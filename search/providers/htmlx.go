package providers

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Traversal helpers over x/net/html parse trees. The sites here change
// markup often, so extraction stays close to "find by class, read attr or
// text" and drops anything that does not match.

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && (tag == "" || n.Data == tag)
}

// findAll collects every element matching tag (empty matches any) and class
// (empty matches any) under root, in document order.
func findAll(root *html.Node, tag, class string) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if isElement(n, tag) && (class == "" || hasClass(n, class)) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// findFirst returns the first element matching tag and class, or nil.
func findFirst(root *html.Node, tag, class string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if isElement(n, tag) && (class == "" || hasClass(n, class)) {
			found = n
			return false
		}
		return true
	})
	return found
}

// findFirstWithAttr returns the first element under root carrying the
// attribute, or nil.
func findFirstWithAttr(root *html.Node, name string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && attr(n, name) != "" {
			found = n
			return false
		}
		return true
	})
	return found
}

// text returns the concatenated, trimmed text content of n.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

// parseDurationMMSS parses "MM:SS" into whole seconds, returning 0 for
// anything malformed.
func parseDurationMMSS(s string) int {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0
	}
	mins, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0
	}
	return mins*60 + secs
}
