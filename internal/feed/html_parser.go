package feed

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser walks the parsed document tree instead of matching raw markup,
// so it survives attribute reordering and whitespace changes.
type HTMLParser struct{}

// Parse implements Parser.
func (HTMLParser) Parse(doc, dateLabel string) (*Menu, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, ErrTitleNotFound
	}

	pattern := titlePattern(dateLabel)
	var (
		titleNode *html.Node
		match     []string
	)
	walk(root, func(n *html.Node) bool {
		if n.Type != html.TextNode {
			return true
		}
		if m := pattern.FindStringSubmatch(n.Data); m != nil {
			titleNode, match = n, m
			return false
		}
		return true
	})
	if titleNode == nil {
		return nil, ErrTitleNotFound
	}

	wrapper := nextElement(titleNode.Parent)
	if wrapper == nil || wrapper.Data != "div" || !hasClass(wrapper, contentWrapperClass) {
		return nil, ErrContentNotFound
	}
	var anchor *html.Node
	walk(wrapper, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "a" {
			anchor = n
			return false
		}
		return true
	})
	if anchor == nil {
		return nil, ErrContentNotFound
	}
	content := textOf(anchor)
	if content == "" {
		return nil, ErrContentNotFound
	}

	return &Menu{
		Title:     match[0],
		DateLabel: match[1],
		Content:   content,
	}, nil
}

// walk visits n and its descendants depth first until visit returns false.
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

func nextElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// textOf concatenates the direct text children of n.
func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
