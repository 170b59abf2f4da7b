package markdown

import (
	"net/url"
	"strings"

	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"golang.org/x/net/html"
)

// OutboundLink is an anchor in rendered HTML that targets a wiki page.
type OutboundLink struct {
	Slug string `json:"slug"`
	Text string `json:"text"`
}

// Links walks rendered HTML and returns the distinct wiki pages it links
// to, in document order.
func Links(rendered string) ([]OutboundLink, error) {
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	out := []OutboundLink{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if slug, ok := wikiSlug(attr(n, "href")); ok {
				if _, dup := seen[slug]; !dup {
					seen[slug] = struct{}{}
					out = append(out, OutboundLink{Slug: slug, Text: textOf(n)})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func wikiSlug(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || u.Host != "" {
		return "", false
	}
	if !strings.HasPrefix(u.Path, wikilink.RoutePrefix) {
		return "", false
	}
	return strings.TrimPrefix(u.Path, wikilink.RoutePrefix), true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
