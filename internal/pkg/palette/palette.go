// Package palette implements the command-palette filter: case-insensitive
// substring matching over posts with a highlighted snippet around the first
// content hit.
package palette

import "strings"

const (
	DefaultLimit = 10

	snippetBefore = 30
	snippetAfter  = 50
	ellipsis      = "..."
)

// Field names which part of a document matched first.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldFolder  Field = "folder"
	FieldTag     Field = "tag"
)

// Doc is a searchable post projection.
type Doc struct {
	ID      string
	Slug    string
	Title   string
	Folder  string
	Tags    []string
	Content string
}

// Segment is a run of text; Match marks the spans equal to the query.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Result is one palette row.
type Result struct {
	Doc       Doc       `json:"-"`
	MatchedOn Field     `json:"matched_on"`
	Snippet   string    `json:"snippet"`
	Title     []Segment `json:"title"`
	Excerpt   []Segment `json:"excerpt"`
}

// Search returns up to limit documents matching query, in input order. A
// blank query yields no results.
func Search(query string, docs []Doc, limit int) []Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	needle := strings.ToLower(q)
	out := make([]Result, 0, min(limit, len(docs)))
	for _, d := range docs {
		field, ok := matchField(d, needle)
		if !ok {
			continue
		}
		snippet := Snippet(d.Content, q)
		out = append(out, Result{
			Doc:       d,
			MatchedOn: field,
			Snippet:   snippet,
			Title:     Highlight(d.Title, q),
			Excerpt:   Highlight(snippet, q),
		})
		if len(out) == limit {
			break
		}
	}
	return out
}

func matchField(d Doc, needle string) (Field, bool) {
	switch {
	case contains(d.Title, needle):
		return FieldTitle, true
	case contains(d.Content, needle):
		return FieldContent, true
	case contains(d.Folder, needle):
		return FieldFolder, true
	}
	for _, tag := range d.Tags {
		if contains(tag, needle) {
			return FieldTag, true
		}
	}
	return "", false
}

func contains(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

// Snippet cuts content around the first case-insensitive occurrence of
// query: 30 runes before the match, 50 after its end, with "..." on each
// truncated edge. Without a hit the first 80 runes are returned.
func Snippet(content, query string) string {
	if content == "" {
		return ""
	}
	runes := []rune(content)
	start, end, ok := indexFold(runes, []rune(query))
	if !ok || query == "" {
		if len(runes) <= snippetBefore+snippetAfter {
			return content
		}
		return string(runes[:snippetBefore+snippetAfter]) + ellipsis
	}

	from := max(start-snippetBefore, 0)
	to := min(end+snippetAfter, len(runes))

	var b strings.Builder
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[from:to]))
	if to < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// Highlight splits text into segments so that every case-insensitive
// occurrence of query is its own Match segment. Joining the segments
// returns text unchanged. Matches do not overlap; scanning resumes after
// each hit.
func Highlight(text, query string) []Segment {
	if text == "" {
		return nil
	}
	q := []rune(query)
	if len(q) == 0 {
		return []Segment{{Text: text}}
	}

	runes := []rune(text)
	var out []Segment
	pos := 0
	for pos < len(runes) {
		start, end, ok := indexFold(runes[pos:], q)
		if !ok {
			break
		}
		start += pos
		end += pos
		if start > pos {
			out = append(out, Segment{Text: string(runes[pos:start])})
		}
		out = append(out, Segment{Text: string(runes[start:end]), Match: true})
		pos = end
	}
	if pos < len(runes) {
		out = append(out, Segment{Text: string(runes[pos:])})
	}
	return out
}

// indexFold finds needle in hay comparing rune by rune with simple case
// folding, so the returned span indexes the original runes.
func indexFold(hay, needle []rune) (int, int, bool) {
	if len(needle) == 0 || len(needle) > len(hay) {
		return 0, 0, false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if !equalFold(hay[i+j], r) {
				continue outer
			}
		}
		return i, i + len(needle), true
	}
	return 0, 0, false
}

func equalFold(a, b rune) bool {
	if a == b {
		return true
	}
	return strings.EqualFold(string(a), string(b))
}

// Join reassembles highlighted segments.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}
