package markdown

import (
	"regexp"
	"strings"
)

var (
	headingPattern   = regexp.MustCompile(`(?m)^(#{2,3})\s+(.*)$`)
	nonAnchorPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// Heading is a table of contents entry.
type Heading struct {
	Level  int    `json:"level"`
	Text   string `json:"text"`
	Anchor string `json:"anchor"`
}

// TOC lists the level 2 and 3 headings of src in document order.
func TOC(src string) []Heading {
	matches := headingPattern.FindAllStringSubmatch(strings.ReplaceAll(src, "\r\n", "\n"), -1)
	out := make([]Heading, 0, len(matches))
	for _, m := range matches {
		out = append(out, Heading{
			Level:  len(m[1]),
			Text:   m[2],
			Anchor: Anchor(m[2]),
		})
	}
	return out
}

// Anchor lowercases text and joins its ASCII alphanumeric runs with
// hyphens.
func Anchor(text string) string {
	id := nonAnchorPattern.ReplaceAllString(strings.ToLower(text), "-")
	return strings.Trim(id, "-")
}
