// Package markdown renders wiki articles: wiki-links are resolved first,
// then goldmark produces HTML which bluemonday sanitizes.
package markdown

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mx-space/wiki/internal/pkg/wikilink"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var (
	mermaidCodeRegex = regexp.MustCompile(`(?is)<pre><code class="language-mermaid">([\s\S]*?)</code></pre>`)
	anchorPattern    = regexp.MustCompile(`^[a-z0-9-]*$`)
	languagePattern  = regexp.MustCompile(`^language-[\w+-]+$`)
)

// Renderer turns article Markdown into safe HTML. It is safe for
// concurrent use.
type Renderer struct {
	engine goldmark.Markdown
	policy *bluemonday.Policy
}

func NewRenderer() *Renderer {
	engine := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			htmlrenderer.WithHardWraps(),
			htmlrenderer.WithXHTML(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").Matching(anchorPattern).OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("class").Matching(languagePattern).OnElements("code")
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^mermaid$`)).OnElements("pre")

	return &Renderer{engine: engine, policy: policy}
}

// Render resolves wiki-links in src and returns sanitized HTML.
func (r *Renderer) Render(src string) string {
	text := strings.TrimSpace(src)
	if text == "" {
		return ""
	}
	text = wikilink.Resolve(text)

	ctx := parser.NewContext(parser.WithIDs(anchorIDs{}))
	var out bytes.Buffer
	if err := r.engine.Convert([]byte(text), &out, parser.WithContext(ctx)); err != nil {
		return template.HTMLEscapeString(text)
	}
	html := mermaidCodeRegex.ReplaceAllString(out.String(), `<pre class="mermaid">$1</pre>`)
	return r.policy.Sanitize(html)
}

// anchorIDs gives headings the same ids the table of contents links to.
// Repeated headings share an id.
type anchorIDs struct{}

func (anchorIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	return []byte(Anchor(string(value)))
}

func (anchorIDs) Put(value []byte) {}
