package page

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Fetched is one HTTP response as seen by Static.
type Fetched struct {
	HTML string
	// Title is the document title when the fetcher already parsed it.
	Title string

	StatusCode int
	FinalURL   string
}

// FetchFunc retrieves a page. It should return a result, not an error, for
// HTTP error statuses so Static can tell denials from transport failures.
type FetchFunc func(ctx context.Context, url string) (*Fetched, error)

// Static is a Client over pre-rendered HTML. It executes no JavaScript.
type Static struct {
	fetch FetchFunc
	doc   *Document
	url   string
	title string
}

// NewStatic returns a Static client that loads pages through fetch.
func NewStatic(fetch FetchFunc) *Static {
	return &Static{fetch: fetch}
}

func (s *Static) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}

	switch {
	case res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests:
		// Denials render as a page whose title carries the status, the same
		// thing a browser shows.
	case res.StatusCode >= 400:
		return fmt.Errorf("page: %s returned status %d", url, res.StatusCode)
	}

	doc, err := ParseDocument(res.HTML)
	if err != nil {
		return err
	}
	s.doc = doc
	s.url = res.FinalURL
	if s.url == "" {
		s.url = url
	}
	s.title = res.Title
	if s.title == "" {
		s.title = doc.Title()
	}
	if res.StatusCode == http.StatusForbidden && !strings.Contains(s.title, "403") {
		s.title = "403 Forbidden"
	}
	if res.StatusCode == http.StatusTooManyRequests && s.title == "" {
		s.title = "429 Too Many Requests"
	}
	return nil
}

func (s *Static) Title(context.Context) (string, error) { return s.title, nil }

func (s *Static) URL() string { return s.url }

func (s *Static) QuerySelector(ctx context.Context, selector string) (Element, error) {
	return First(ctx, s.QuerySelectorAll, selector)
}

func (s *Static) QuerySelectorAll(ctx context.Context, selector string) ([]Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	return s.doc.QuerySelectorAll(ctx, selector)
}

func (s *Static) InnerText(ctx context.Context, selector string) (string, error) {
	el, err := s.QuerySelector(ctx, selector)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text()
}

func (s *Static) HTML(context.Context) (string, error) {
	if s.doc == nil {
		return "", nil
	}
	return s.doc.HTML()
}

func (s *Static) Wait(ctx context.Context, d time.Duration) error { return Sleep(ctx, d) }

func (s *Static) Close() error { return nil }
