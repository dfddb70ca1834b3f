package store

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	reserved    = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	separators  = regexp.MustCompile(`[-\s]+`)
	unsafeRune  = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	underscores = regexp.MustCompile(`_{2,}`)
)

// skippedSegments are path parts of a board URL that carry no section name.
var skippedSegments = map[string]struct{}{
	"t5":   {},
	"qa-p": {},
	"ct-p": {},
}

// SanitizeName turns an arbitrary label into a lowercase file-system name.
// It returns fallback when nothing usable is left.
func SanitizeName(name, fallback string) string {
	s := reserved.ReplaceAllString(name, "_")
	s = separators.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(strings.ToLower(s), "_.")
	if s == "" {
		return fallback
	}
	return s
}

// SectionName derives the board section from a topic URL, e.g.
// ".../t5/supply-chain-management-q-a/qa-p/scm-questions" gives
// "supply_chain_management_q_a".
func SectionName(topicURL string) string {
	u, err := url.Parse(topicURL)
	if err != nil {
		return "forum"
	}
	for _, part := range strings.Split(u.Path, "/") {
		if part == "" {
			continue
		}
		if _, skip := skippedSegments[part]; skip {
			continue
		}
		return SanitizeName(part, "forum")
	}
	return "forum"
}

// BaseName is the file name stem shared by a section's outputs.
func BaseName(prefix, topicURL string) string {
	section := SectionName(topicURL)
	if prefix == "" {
		return section
	}
	return SanitizeName(prefix, "forum") + "_" + section
}

// SafeFileName flattens a URL into a single file name for diagnostics.
func SafeFileName(rawURL string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	s = unsafeRune.ReplaceAllString(s, "_")
	if len(s) > 150 {
		s = s[:150]
	}
	return s
}
