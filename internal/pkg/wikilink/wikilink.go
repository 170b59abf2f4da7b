// Package wikilink resolves [[Target]] and [[Target|Display]] references
// into Markdown links that point at /wiki/<slug>.
package wikilink

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RoutePrefix is the route every resolved link points under.
const RoutePrefix = "/wiki/"

var (
	linkPattern    = regexp.MustCompile(`\[\[(.*?)\]\]`)
	nonSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// Link is a single wiki-link occurrence.
type Link struct {
	Target  string `json:"target"`
	Display string `json:"display"`
	Slug    string `json:"slug"`
}

// Route returns the path the link resolves to.
func (l Link) Route() string { return RoutePrefix + l.Slug }

// Slugify lowercases s, strips accents and collapses every run of
// characters outside [a-z0-9] into a single hyphen.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	slug := nonSlugPattern.ReplaceAllString(strings.ToLower(stripped), "-")
	return strings.Trim(slug, "-")
}

// Parse splits the inner text of a [[...]] token on the first '|'.
// Without an alias the display text is the target itself.
func Parse(inner string) Link {
	target, display, ok := strings.Cut(inner, "|")
	if !ok {
		display = target
	}
	return Link{Target: target, Display: display, Slug: Slugify(target)}
}

// Resolve rewrites every wiki-link in src into a Markdown link.
// Display text is emitted as-is.
func Resolve(src string) string {
	return linkPattern.ReplaceAllStringFunc(src, func(token string) string {
		l := Parse(token[2 : len(token)-2])
		return "[" + l.Display + "](" + l.Route() + ")"
	})
}

// Links returns every wiki-link in src in document order.
func Links(src string) []Link {
	matches := linkPattern.FindAllStringSubmatch(src, -1)
	out := make([]Link, 0, len(matches))
	for _, m := range matches {
		out = append(out, Parse(m[1]))
	}
	return out
}

// Targets returns the distinct link targets of src keyed by slug, first
// occurrence wins.
func Targets(src string) []Link {
	seen := make(map[string]struct{})
	var out []Link
	for _, l := range Links(src) {
		if _, ok := seen[l.Slug]; ok {
			continue
		}
		seen[l.Slug] = struct{}{}
		out = append(out, l)
	}
	return out
}

// References reports whether src links to a page titled title.
func References(src, title string) bool {
	want := Slugify(title)
	for _, l := range Links(src) {
		if l.Slug == want {
			return true
		}
	}
	return false
}
