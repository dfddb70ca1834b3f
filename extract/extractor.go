// Package extract turns loaded forum pages into records: question links on
// listing pages, and titles, bodies, tags, sections and responses on detail
// pages. Every field is resolved through an ordered selector table; a field
// that cannot be found gets its default instead of failing the record.
package extract

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

// ImageHarvester downloads the images inside scope into outputDir.
type ImageHarvester interface {
	Harvest(ctx context.Context, scope page.Element, baseURL, outputDir string) []models.ImageRef
}

// Extractor assembles records from detail pages.
type Extractor struct {
	images   ImageHarvester
	markdown *converter.Converter
}

// NewExtractor returns an Extractor. A nil harvester skips images.
func NewExtractor(images ImageHarvester) *Extractor {
	return &Extractor{
		images:   images,
		markdown: newMarkdownConverter(),
	}
}

// Extract reads the loaded detail page into a Record. It only fails when ctx
// is done, so a partially read page is never returned.
func (e *Extractor) Extract(ctx context.Context, client page.Client, pageNumber int, canonicalURL, imageDir string) (models.Record, error) {
	scope := page.Scope(client.QuerySelectorAll)
	base := client.URL()
	if base == "" {
		base = canonicalURL
	}

	responses := e.Responses(ctx, client, imageDir)
	rec := models.NewRecord(pageNumber, canonicalURL, responses)

	rec.Title = e.title(ctx, client)

	bodyEl, body, ok := ResolveElement(ctx, scope, bodySelectors)
	if ok {
		rec.Body = body
		rec.BodyMarkdown = e.bodyMarkdown(bodyEl, base)
		if e.images != nil {
			rec.BodyImages = nonNilImages(e.images.Harvest(ctx, bodyEl, base, imageDir))
		}
	} else {
		slog.Debug("field not found", "field", "body", "code", models.ErrCodeFieldNotFound, "url", canonicalURL)
	}

	rec.Tags = ResolveTags(ctx, scope)
	rec.System = ResolveSystem(ctx, scope)

	if err := ctx.Err(); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

// title tries the title selectors, then the document title, then what
// Readability makes of the page.
func (e *Extractor) title(ctx context.Context, client page.Client) string {
	if t, ok := Resolve(ctx, client.QuerySelectorAll, titleSelectors); ok {
		return t
	}
	if t, err := client.Title(ctx); err == nil {
		if t = stripTitleSuffix(t); t != "" {
			return t
		}
	}
	if html, err := client.HTML(ctx); err == nil && html != "" {
		if t := readableTitle(html, client.URL()); t != "" {
			return t
		}
	}
	slog.Debug("field not found", "field", "title", "code", models.ErrCodeFieldNotFound, "url", client.URL())
	return ""
}

func (e *Extractor) bodyMarkdown(el page.Element, base string) string {
	html, err := el.HTML()
	if err != nil {
		return ""
	}
	domain := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}
	md, err := toMarkdown(e.markdown, html, domain)
	if err != nil {
		slog.Debug("markdown conversion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}

func nonNilImages(refs []models.ImageRef) []models.ImageRef {
	if refs == nil {
		return []models.ImageRef{}
	}
	return refs
}
