// Package capture turns a fetched HTML document into a page record.
package capture

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/entrhq/pagetrail/pkg/types"
	"golang.org/x/net/html"
)

// DefaultMaxBodyChars bounds the body text kept per page.
const DefaultMaxBodyChars = 100_000

// Page holds the text extracted from one HTML document.
type Page struct {
	Title       string
	Description string
	Text        string
	Truncated   bool
}

// Extract parses r and returns its title, meta description and visible
// text. Text from script, style and similar elements is dropped, and block
// elements are separated by newlines.
func Extract(r io.Reader, maxChars int) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxBodyChars
	}

	page := &Page{
		Title:       extractTitle(doc),
		Description: extractMetaDescription(doc),
	}

	body := findElement(doc, "body")
	if body == nil {
		body = doc
	}

	w := &textWriter{max: maxChars}
	w.walk(body)
	page.Text = w.String()
	page.Truncated = w.truncated
	return page, nil
}

// FromHTML extracts a page record for url. capturedAt becomes the record
// timestamp.
func FromHTML(url string, r io.Reader, capturedAt time.Time) (types.PageRecord, error) {
	page, err := Extract(r, DefaultMaxBodyChars)
	if err != nil {
		return types.PageRecord{}, err
	}
	body := page.Text
	if body == "" {
		body = page.Description
	}
	return types.PageRecord{
		Title:     page.Title,
		URL:       url,
		BodyText:  body,
		Timestamp: capturedAt,
	}, nil
}

type textWriter struct {
	b         strings.Builder
	max       int
	truncated bool
	pendingNL bool
}

func (w *textWriter) String() string {
	return strings.TrimSpace(w.b.String())
}

func (w *textWriter) walk(n *html.Node) {
	if w.truncated {
		return
	}
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if isSkippedElement(tag) {
			return
		}
		if isBlockElement(tag) || tag == "br" {
			w.pendingNL = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if n.Type == html.ElementNode && isBlockElement(strings.ToLower(n.Data)) {
		w.pendingNL = true
	}
}

func (w *textWriter) text(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return
	}
	chunk := strings.Join(words, " ")

	if w.b.Len() > 0 {
		if w.pendingNL {
			chunk = "\n" + chunk
		} else {
			chunk = " " + chunk
		}
	}
	w.pendingNL = false

	if w.b.Len()+len(chunk) > w.max {
		remaining := w.max - w.b.Len()
		if remaining > 0 {
			w.b.WriteString(chunk[:remaining])
		}
		w.truncated = true
		return
	}
	w.b.WriteString(chunk)
}

// isSkippedElement returns true for elements whose text is never visible
func isSkippedElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "template", "head":
		return true
	}
	return false
}

// isBlockElement returns true for elements that break lines
func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main", "aside",
		"h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "table", "tr",
		"form", "fieldset", "blockquote", "pre", "hr":
		return true
	}
	return false
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// extractTitle extracts the page title from the document
func extractTitle(doc *html.Node) string {
	t := findElement(doc, "title")
	if t == nil || t.FirstChild == nil || t.FirstChild.Type != html.TextNode {
		return ""
	}
	return strings.Join(strings.Fields(t.FirstChild.Data), " ")
}

// extractMetaDescription extracts the meta description from the document
func extractMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if description != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && strings.EqualFold(attr.Val, "description") {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription {
				description = strings.TrimSpace(content)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return description
}
