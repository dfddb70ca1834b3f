package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/qaharvest/page"
)

// Resolve returns the text of the first selector whose first match has
// non-empty trimmed text. Missing elements and read errors fall through to
// the next selector; ok is false when every selector came up empty.
func Resolve(ctx context.Context, scope page.Scope, selectors []string) (text string, ok bool) {
	_, text, ok = ResolveElement(ctx, scope, selectors)
	return text, ok
}

// ResolveElement is Resolve that also returns the matched element.
func ResolveElement(ctx context.Context, scope page.Scope, selectors []string) (page.Element, string, bool) {
	for _, sel := range selectors {
		el, err := page.First(ctx, scope, sel)
		if err != nil {
			slog.Debug("selector failed", "selector", sel, "error", err)
			continue
		}
		if el == nil {
			continue
		}
		if text := page.TextOf(el); text != "" {
			return el, text, true
		}
	}
	return nil, "", false
}

// allTexts returns the trimmed, non-empty text of every match.
func allTexts(ctx context.Context, scope page.Scope, selector string) []string {
	els, err := scope(ctx, selector)
	if err != nil {
		slog.Debug("selector failed", "selector", selector, "error", err)
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		if t := page.TextOf(el); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// allAttrs returns the trimmed, non-empty value of attr on every match.
func allAttrs(ctx context.Context, scope page.Scope, selector, attr string) []string {
	els, err := scope(ctx, selector)
	if err != nil {
		slog.Debug("selector failed", "selector", selector, "error", err)
		return nil
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		v, ok, err := el.Attribute(attr)
		if err != nil || !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ResolveTags merges every meta tag with every tag element and drops
// duplicates. Two tags are the same when they match after trimming and case
// folding; the first spelling seen is kept. The result is never nil.
func ResolveTags(ctx context.Context, scope page.Scope) []string {
	candidates := allAttrs(ctx, scope, metaTagSelector, "content")
	candidates = append(candidates, allTexts(ctx, scope, tagElementSelector)...)
	return mergeTags(candidates)
}

func mergeTags(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, c)
	}
	return tags
}

// ResolveSystem returns the section label: the article:section meta tag,
// else the second-to-last link of the first breadcrumb trail that has more
// than one link, else "".
func ResolveSystem(ctx context.Context, scope page.Scope) string {
	if vals := allAttrs(ctx, scope, metaSectionSelector, "content"); len(vals) > 0 {
		return vals[0]
	}
	for _, sel := range breadcrumbSelectors {
		crumbs := allTexts(ctx, scope, sel)
		if len(crumbs) > 1 {
			return crumbs[len(crumbs)-2]
		}
	}
	return ""
}
