package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/qaharvest/config"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

// Session is a page.Client backed by one browser tab.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	cfg     config.BrowserConfig
	url     string
}

var _ page.Client = (*Session)(nil)

// Navigate loads target and waits for the DOM to settle.
//
//  1. Referer header  – a search-engine referer, set per navigation
//  2. Navigate        – bounded by timeout
//  3. Load + stable   – wait for load, then best-effort DOM stability
//  4. Final URL       – becomes the base for relative links
func (s *Session) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ── 1. Referer ───────────────────────────────────────────────────
	if u, err := url.Parse(target); err == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(s.page)
	}

	// ── 2. Navigate ──────────────────────────────────────────────────
	p := s.page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return s.categorizeError(err, "navigation to target URL failed")
	}

	// ── 3. Wait ──────────────────────────────────────────────────────
	if err := p.WaitLoad(); err != nil {
		return s.categorizeError(err, "page did not finish loading")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	// ── 4. Final URL ─────────────────────────────────────────────────
	s.url = evalStringOrEmpty(p, `() => window.location.href`)
	if s.url == "" {
		s.url = target
	}
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", s.categorizeError(err, "failed to read title")
	}
	return res.Value.Str(), nil
}

func (s *Session) URL() string { return s.url }

func (s *Session) QuerySelector(ctx context.Context, selector string) (page.Element, error) {
	return page.First(ctx, s.QuerySelectorAll, selector)
}

// QuerySelectorAll does not wait for matches to appear; the settle delay
// after navigation covers rendering.
func (s *Session) QuerySelectorAll(ctx context.Context, selector string) ([]page.Element, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (s *Session) InnerText(ctx context.Context, selector string) (string, error) {
	el, err := s.QuerySelector(ctx, selector)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text()
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	return page.Sleep(ctx, d)
}

// categorizeError wraps raw errors into typed ScrapeErrors. A browser that no
// longer answers is reported as a crash so the run stops instead of retrying.
func (s *Session) categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	case !s.alive():
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "browser stopped responding", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

type element struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []page.Element {
	out := make([]page.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out
}

func (e *element) Text() (string, error) { return e.el.Text() }

func (e *element) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Children(ctx context.Context, selector string) ([]page.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *element) HTML() (string, error) { return e.el.HTML() }
