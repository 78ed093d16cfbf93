package graph

import (
	"regexp"
	"strings"
)

// Wiki-link surface forms: [[Target]], [[Target|DisplayText]], [[Target#Section]].
// The display text and section anchor never affect resolution.
var wikiLinkPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// ExtractWikiLinks returns the resolution keys of all wiki-links in a
// document body, in occurrence order. Duplicate targets are preserved so the
// caller can accumulate edge weights.
func ExtractWikiLinks(body string) []string {
	matches := wikiLinkPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	links := make([]string, 0, len(matches))
	for _, match := range matches {
		target := match[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		links = append(links, target)
	}
	return links
}

// foldTitle normalizes a title or link target for case-insensitive resolution.
func foldTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
