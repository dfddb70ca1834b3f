// Package engine fetches pages and assets over plain HTTP with a Chrome-like
// TLS fingerprint. It backs the static page client and the image downloader.
package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/qaharvest/page"
)

// FetchResult is the output of a completed fetch, including error statuses.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
}

// HTTPEngine performs GET requests that look like a desktop browser.
type HTTPEngine struct {
	client    *http.Client
	userAgent string
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewTransport returns an http.Transport that dials TLS with the Chrome
// fingerprint. proxy may be empty.
func NewTransport(proxy string) *http.Transport {
	transport := &http.Transport{
		DialTLSContext:      dialTLSChrome,
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return transport
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// NewHTTPClient returns a client on the Chrome TLS transport with a ten
// redirect limit.
func NewHTTPClient(proxy string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewTransport(proxy),
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// NewHTTPEngine creates an HTTPEngine. An empty userAgent uses a Chrome one.
func NewHTTPEngine(client *http.Client, userAgent string) *HTTPEngine {
	if client == nil {
		client = NewHTTPClient("", 0)
	}
	if userAgent == "" {
		userAgent = chromeUA
	}
	return &HTTPEngine{client: client, userAgent: userAgent}
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetch retrieves url. HTTP error statuses are returned as results; only
// transport failures and non-HTML bodies are errors.
func (e *HTTPEngine) Fetch(ctx context.Context, targetURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}
	e.setBrowserHeaders(req, "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	// Read body with a 10 MB limit to prevent unbounded memory use.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 400 && ct != "" && !isHTMLContentType(ct) {
		return nil, fmt.Errorf("http_engine: non-html content-type %q", ct)
	}

	bodyStr := string(body)
	return &FetchResult{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// Download streams url into w and returns the byte count. Non-2xx statuses
// are reported as *StatusError.
func (e *HTTPEngine) Download(ctx context.Context, targetURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return 0, fmt.Errorf("http_engine: build request: %w", err)
	}
	e.setBrowserHeaders(req, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{URL: targetURL, StatusCode: resp.StatusCode}
	}
	return io.Copy(w, resp.Body)
}

// PageFetcher adapts Fetch to page.FetchFunc for the static page client.
func (e *HTTPEngine) PageFetcher() page.FetchFunc {
	return func(ctx context.Context, url string) (*page.Fetched, error) {
		res, err := e.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return &page.Fetched{HTML: res.HTML, Title: res.Title, StatusCode: res.StatusCode, FinalURL: res.FinalURL}, nil
	}
}

func (e *HTTPEngine) setBrowserHeaders(req *http.Request, accept string) {
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")
}

// StatusError is a completed request with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http_engine: %s returned status %d", e.URL, e.StatusCode)
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
