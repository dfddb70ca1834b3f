// Package page defines the rendered-page capability the extraction pipeline
// runs against, plus a goquery-backed static implementation.
//
// Extraction code only sees Client, Element and Scope. Any backend that can
// navigate, query by CSS selector, read text and attributes, and wait can
// drive the pipeline: the go-rod session in package scraper, or Static fed
// by a plain HTTP fetcher.
package page

import (
	"context"
	"strings"
	"time"
)

// Element is an opaque handle to one node on the current page.
type Element interface {
	// Text returns the rendered text of the element.
	Text() (string, error)

	// Attribute returns the named attribute and whether it is present.
	Attribute(name string) (string, bool, error)

	// Children returns descendants matching selector, in document order.
	Children(ctx context.Context, selector string) ([]Element, error)

	// HTML returns the outer HTML of the element.
	HTML() (string, error)
}

// Client is a single page session. It is not safe for concurrent use: the
// pipeline never has two navigations in flight on one session.
type Client interface {
	// Navigate loads url, failing if it does not complete within timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Title returns the document title of the current page.
	Title(ctx context.Context) (string, error)

	// URL returns the address of the current page after redirects. It is the
	// base for resolving relative links.
	URL() string

	// QuerySelector returns the first match, or nil when nothing matches.
	QuerySelector(ctx context.Context, selector string) (Element, error)

	// QuerySelectorAll returns every match in document order.
	QuerySelectorAll(ctx context.Context, selector string) ([]Element, error)

	// InnerText returns the text of the first match, or "" when nothing matches.
	InnerText(ctx context.Context, selector string) (string, error)

	// HTML returns the serialized current document.
	HTML(ctx context.Context) (string, error)

	// Wait blocks for d or until ctx is done.
	Wait(ctx context.Context, d time.Duration) error

	Close() error
}

// Scope is anything selectors can be evaluated under: a whole page
// (client.QuerySelectorAll) or one element (element.Children).
type Scope func(ctx context.Context, selector string) ([]Element, error)

// First returns the first element matching selector under scope, or nil.
func First(ctx context.Context, scope Scope, selector string) (Element, error) {
	els, err := scope(ctx, selector)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// TextOf returns the trimmed text of el, or "" when it cannot be read.
func TextOf(el Element) string {
	if el == nil {
		return ""
	}
	s, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// HasClass reports whether el's class attribute contains the class token.
func HasClass(el Element, class string) bool {
	v, ok, err := el.Attribute("class")
	if err != nil || !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Sleep waits for d or until ctx is done. Backends use it to implement Wait.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
