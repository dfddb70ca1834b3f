// Package images downloads the pictures embedded in questions and answers.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/qaharvest/engine"
	"github.com/use-agent/qaharvest/metrics"
	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
	"github.com/use-agent/qaharvest/store"
)

const imageSelector = "img"

// Downloader streams a URL into w. *engine.HTTPEngine implements it.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Harvester resolves, names and downloads images. Names are reserved per
// output directory for the Harvester's lifetime, so one Harvester should
// serve a whole run.
type Harvester struct {
	dl      Downloader
	timeout time.Duration

	mu       sync.Mutex
	reserved map[string]map[string]struct{}
}

// NewHarvester returns a Harvester. timeout bounds each single download; zero
// means no per-image limit beyond ctx.
func NewHarvester(dl Downloader, timeout time.Duration) *Harvester {
	return &Harvester{
		dl:       dl,
		timeout:  timeout,
		reserved: make(map[string]map[string]struct{}),
	}
}

type job struct {
	ref models.ImageRef
	ok  bool
}

// Harvest downloads every image inside scope into outputDir. Images that
// fail to download are logged and left out; the rest keep document order.
func (h *Harvester) Harvest(ctx context.Context, scope page.Element, baseURL, outputDir string) []models.ImageRef {
	if scope == nil || outputDir == "" {
		return []models.ImageRef{}
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		slog.Warn("image base url invalid", "base", baseURL, "error", err)
		return []models.ImageRef{}
	}
	els, err := scope.Children(ctx, imageSelector)
	if err != nil {
		slog.Debug("image lookup failed", "error", err)
		return []models.ImageRef{}
	}

	// Names are reserved in document order before any download starts, so
	// collision suffixes do not depend on download timing.
	jobs := make([]job, 0, len(els))
	for i, el := range els {
		src := source(el)
		abs, ok := resolve(base, src)
		if !ok {
			continue
		}
		alt, _, _ := el.Attribute("alt")
		name := h.reserve(outputDir, fileName(abs, i+1))
		jobs = append(jobs, job{ref: models.ImageRef{
			OriginalURL: abs,
			LocalPath:   filepath.Join(outputDir, name),
			AltText:     strings.TrimSpace(alt),
			Filename:    name,
		}})
	}

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			j.ok = h.download(ctx, j.ref)
		}(&jobs[i])
	}
	wg.Wait()

	out := make([]models.ImageRef, 0, len(jobs))
	for _, j := range jobs {
		if j.ok {
			out = append(out, j.ref)
		}
	}
	return out
}

func (h *Harvester) download(ctx context.Context, ref models.ImageRef) bool {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	err := store.WriteFileAtomic(ref.LocalPath, func(w io.Writer) error {
		_, err := h.dl.Download(ctx, ref.OriginalURL, w)
		return err
	})
	if err == nil {
		metrics.Images.WithLabelValues("downloaded").Inc()
		return true
	}

	code := models.ErrCodeImageDownload
	outcome := "failed"
	var se *engine.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		code = models.ErrCodeImageNotFound
		outcome = "not_found"
	}
	metrics.Images.WithLabelValues(outcome).Inc()
	serr := models.NewScrapeError(code, "image download failed", err)
	slog.Warn("image skipped", "url", ref.OriginalURL, "code", serr.Code, "error", serr)
	return false
}

// reserve claims name in dir, appending _1, _2, ... before the extension
// when it is already taken.
func (h *Harvester) reserve(dir, name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	taken, ok := h.reserved[dir]
	if !ok {
		taken = make(map[string]struct{})
		h.reserved[dir] = taken
	}
	candidate := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, dup := taken[candidate]; !dup {
			break
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	taken[candidate] = struct{}{}
	return candidate
}

// source reads src, falling back to the lazy-load data-src attribute.
func source(el page.Element) string {
	for _, attr := range []string{"src", "data-src"} {
		v, ok, err := el.Attribute(attr)
		if err == nil && ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// resolve makes src absolute against base. Protocol-relative sources take
// the base scheme. Inline data URIs and non-http results are rejected.
func resolve(base *url.URL, src string) (string, bool) {
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return "", false
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

// fileName derives a local name from the last path segment of rawURL.
func fileName(rawURL string, n int) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		seg := path.Base(u.Path)
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if seg != "/" && seg != "." {
			name = strings.Trim(store.SafeFileName(seg), "._")
		}
	}
	if name == "" {
		name = fmt.Sprintf("image_%d", n)
	}
	if path.Ext(name) == "" {
		name += ".jpg"
	}
	return name
}
