package scraper

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements that never carry article text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Header:   true,
	atom.Noscript: true,
	atom.Iframe:   true,
}

// Elements whose text is collected as content paragraphs.
var contentElements = map[atom.Atom]bool{
	atom.P:  true,
	atom.H1: true,
	atom.H2: true,
	atom.H3: true,
	atom.H4: true,
	atom.Li: true,
}

// Class or id tokens marking ads, navigation, and other boilerplate.
var boilerplateMarkers = []string{
	"ad", "ads", "advert", "advertisement", "sidebar", "menu",
	"navigation", "cookie", "popup", "modal", "banner",
}

var multiSpace = regexp.MustCompile(` {2,}`)

// extractContent walks the document and joins the texts of paragraph-level
// elements with blank lines, preferring an article/main subtree when one
// exists. Texts shorter than minLen runes are dropped as noise.
func extractContent(root *html.Node, minLen int) string {
	scope := findMainContent(root)
	if scope == nil {
		scope = findElement(root, atom.Body)
	}
	if scope == nil {
		return ""
	}

	var paragraphs []string
	collectParagraphs(scope, minLen, &paragraphs)

	content := strings.Join(paragraphs, "\n\n")
	content = multiSpace.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

func collectParagraphs(n *html.Node, minLen int, out *[]string) {
	if n.Type == html.ElementNode {
		if skippedElements[n.DataAtom] || isBoilerplate(n) {
			return
		}
		if contentElements[n.DataAtom] {
			text := strings.TrimSpace(collapseWhitespace(nodeText(n)))
			if len([]rune(text)) > minLen {
				*out = append(*out, text)
			}
			// Nested content elements were folded into this text.
			return
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectParagraphs(child, minLen, out)
	}
}

// findMainContent returns the first article, main, or role="main" element.
func findMainContent(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		if n.DataAtom == atom.Article || n.DataAtom == atom.Main {
			return n
		}
		if attrValue(n, "role") == "main" {
			return n
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findMainContent(child); found != nil {
			return found
		}
	}
	return nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

func isBoilerplate(n *html.Node) bool {
	tokens := strings.Fields(strings.ToLower(attrValue(n, "class") + " " + attrValue(n, "id")))
	for _, token := range tokens {
		for _, marker := range boilerplateMarkers {
			if token == marker || strings.HasPrefix(token, marker+"-") || strings.HasPrefix(token, marker+"_") {
				return true
			}
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
		return ""
	}

	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(nodeText(child))
		sb.WriteString(" ")
	}
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type pageMetadata struct {
	title       string
	description string
	author      string
}

func extractMetadata(root *html.Node) pageMetadata {
	var meta pageMetadata

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if meta.title == "" {
					meta.title = strings.TrimSpace(nodeText(n))
				}
			case atom.Meta:
				name := strings.ToLower(attrValue(n, "name"))
				property := strings.ToLower(attrValue(n, "property"))
				content := strings.TrimSpace(attrValue(n, "content"))
				if content == "" {
					break
				}
				switch {
				case name == "description" && meta.description == "":
					meta.description = content
				case name == "author" && meta.author == "":
					meta.author = content
				case property == "og:title" && meta.title == "":
					meta.title = content
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return meta
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
