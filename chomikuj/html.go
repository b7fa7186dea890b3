package chomikuj

import (
	"strings"

	"golang.org/x/net/html"
)

// walk calls fn for n and every node below it, depth first. Returning
// false from fn skips the children of that node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findAll returns every element below n (n included) matching match.
func findAll(n *html.Node, match func(*html.Node) bool) (found []*html.Node) {
	walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && match(c) {
			found = append(found, c)
		}
		return true
	})
	return found
}

// findFirst returns the first element below n (n excluded) matching match.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	classes, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(classes) {
		if c == class {
			return true
		}
	}
	return false
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Data == tag
	}
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
