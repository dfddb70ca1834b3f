package extract

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/use-agent/qaharvest/models"
	"github.com/use-agent/qaharvest/page"
)

var (
	// detailPath matches question pages: /t5/<board>/<slug>/qaq-p/<id> and
	// friends. The slug segment is optional.
	detailPath = regexp.MustCompile(`/t5/.+/(?:qaq|qaa|qa)-p/`)

	excludedPatterns = []string{"/user/viewprofilepage"}
)

// Canonical normalizes raw into the dedup key form: lowercase scheme and
// host plus path. Query and fragment are dropped, so tracking parameters do
// not produce distinct keys. Only absolute http(s) URLs are accepted.
func Canonical(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + strings.ToLower(u.Host) + path, true
}

// Links finds question links on a listing page. Tiers are tried in order and
// the first one that produces at least one accepted link wins; tiers are
// never merged. The result keeps first-seen order and is empty, not an
// error, when nothing qualifies.
func Links(ctx context.Context, client page.Client) ([]string, error) {
	base, err := url.Parse(client.URL())
	if err != nil {
		return nil, err
	}
	self, _ := Canonical(client.URL())

	for i, tier := range linkTiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		els, err := client.QuerySelectorAll(ctx, tier)
		if err != nil {
			slog.Debug("link tier failed", "tier", i+1, "error", err)
			continue
		}

		seen := make(map[string]struct{}, len(els))
		links := make([]string, 0, len(els))
		for _, el := range els {
			href, ok, err := el.Attribute("href")
			if err != nil || !ok || strings.TrimSpace(href) == "" {
				continue
			}
			resolved, err := base.Parse(strings.TrimSpace(href))
			if err != nil {
				continue
			}
			key, ok := Canonical(resolved.String())
			if !ok || key == self || !isQuestionURL(key) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			links = append(links, key)
		}

		if len(links) > 0 {
			slog.Debug("question links found", "tier", i+1, "count", len(links))
			return links, nil
		}
	}
	return []string{}, nil
}

func isQuestionURL(u string) bool {
	for _, p := range excludedPatterns {
		if strings.Contains(u, p) {
			return false
		}
	}
	return detailPath.MatchString(u)
}

// Queue returns the links not visited yet in this run and marks them
// visited. A link is claimed before its page is loaded, so a page that fails
// is never retried by a later listing.
func Queue(state *models.RunState, links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if state.MarkVisited(l) {
			out = append(out, l)
		}
	}
	return out
}
