package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// readableTitle runs the Mozilla Readability algorithm over rawHTML and
// returns the title it settles on, or "" when it cannot parse the page.
func readableTitle(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return ""
	}
	return stripTitleSuffix(article.Title)
}

func stripTitleSuffix(title string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), strings.TrimSpace(titleSuffix)))
}
