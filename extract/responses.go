package extract

import (
	"context"
	"log/slog"

	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

// Responses returns every answer on the page in page order, indexed from 1.
// A response whose text cannot be read is kept with empty text.
func (e *Extractor) Responses(ctx context.Context, client page.Client, imageDir string) []models.Response {
	containers, err := client.QuerySelectorAll(ctx, responseContainerSelector)
	if err != nil {
		slog.Warn("response containers unreadable", "url", client.URL(), "error", err)
		return []models.Response{}
	}

	base := client.URL()
	out := make([]models.Response, 0, len(containers))
	for i, c := range containers {
		scope := page.Scope(c.Children)

		text, ok := Resolve(ctx, scope, responseTextSelectors)
		if !ok {
			text = page.TextOf(c)
		}
		author, _ := Resolve(ctx, scope, responseAuthorSelectors)
		posted, _ := Resolve(ctx, scope, responseDateSelectors)

		resp := models.Response{
			Index:      i + 1,
			Text:       text,
			IsAccepted: isAccepted(c),
			Author:     author,
			PostedAt:   posted,
			Images:     []models.ImageRef{},
		}
		if e.images != nil {
			resp.Images = nonNilImages(e.images.Harvest(ctx, c, base, imageDir))
		}
		out = append(out, resp)
	}
	return out
}

func isAccepted(container page.Element) bool {
	for _, class := range acceptedClasses {
		if page.HasClass(container, class) {
			return true
		}
	}
	return false
}
