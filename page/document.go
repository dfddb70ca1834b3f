package page

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Document is a parsed HTML document queried with CSS selectors.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses an HTML string.
func ParseDocument(html string) (*Document, error) {
	return NewDocument(strings.NewReader(html))
}

// NewDocument parses HTML from r.
func NewDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("page: parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Title returns the trimmed text of the first <title>.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// QuerySelectorAll returns every element matching selector.
func (d *Document) QuerySelectorAll(_ context.Context, selector string) ([]Element, error) {
	return query(d.doc.Selection, selector)
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// query compiles selector with cascadia so syntax errors are reported instead
// of silently matching nothing.
func query(s *goquery.Selection, selector string) ([]Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("page: invalid selector %q: %w", selector, err)
	}
	found := s.FindMatcher(m)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &node{sel: sel})
	})
	return out, nil
}

type node struct {
	sel *goquery.Selection
}

func (n *node) Text() (string, error) {
	return n.sel.Text(), nil
}

func (n *node) Attribute(name string) (string, bool, error) {
	v, ok := n.sel.Attr(name)
	return v, ok, nil
}

func (n *node) Children(_ context.Context, selector string) ([]Element, error) {
	return query(n.sel, selector)
}

func (n *node) HTML() (string, error) {
	return goquery.OuterHtml(n.sel)
}
