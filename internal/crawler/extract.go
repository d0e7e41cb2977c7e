package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Page is what the crawler keeps from one listing page.
type Page struct {
	Title       string
	Description string
	// Hrefs holds every anchor href in document order, unresolved.
	Hrefs []string
}

// Extractor pulls the title and description out of a listing page by CSS
// class.
type Extractor struct {
	TitleClass       string
	DescriptionClass string
}

// Extract parses body. The title comes from the first element carrying
// TitleClass, falling back to the first <h1> and then <title>. The
// description comes from the first element carrying DescriptionClass,
// falling back to <meta name="description"> and then all visible body text.
// Text under <script> and <style> is never collected.
func (e Extractor) Extract(body []byte) (Page, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parsing html: %w", err)
	}

	var page Page
	var titleNode, descNode, h1Node, titleTag, bodyNode *html.Node
	var metaDescription string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isSkipped(n) {
				return
			}
			switch {
			case titleNode == nil && e.TitleClass != "" && hasClass(n, e.TitleClass):
				titleNode = n
			case descNode == nil && e.DescriptionClass != "" && hasClass(n, e.DescriptionClass):
				descNode = n
			}
			switch strings.ToLower(n.Data) {
			case "a":
				if href := strings.TrimSpace(attr(n, "href")); href != "" {
					page.Hrefs = append(page.Hrefs, href)
				}
			case "h1":
				if h1Node == nil {
					h1Node = n
				}
			case "title":
				if titleTag == nil {
					titleTag = n
				}
			case "body":
				bodyNode = n
			case "meta":
				if strings.EqualFold(attr(n, "name"), "description") && metaDescription == "" {
					metaDescription = collapse(attr(n, "content"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, n := range []*html.Node{titleNode, h1Node, titleTag} {
		if t := text(n); t != "" {
			page.Title = t
			break
		}
	}
	page.Description = text(descNode)
	if page.Description == "" {
		page.Description = metaDescription
	}
	if page.Description == "" {
		page.Description = text(bodyNode)
	}
	return page, nil
}

// text returns the visible text under n with whitespace collapsed.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if isSkipped(n) {
				return
			}
			if strings.EqualFold(n.Data, "br") || strings.EqualFold(n.Data, "p") {
				sb.WriteByte(' ')
			}
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return collapse(sb.String())
}

func isSkipped(n *html.Node) bool {
	return strings.EqualFold(n.Data, "script") || strings.EqualFold(n.Data, "style") ||
		strings.EqualFold(n.Data, "noscript") || strings.EqualFold(n.Data, "template")
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
