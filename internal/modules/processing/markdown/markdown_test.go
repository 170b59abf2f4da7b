package markdown

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/wiki/internal/models"
	"github.com/mx-space/wiki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderResolvesAndSanitizes(t *testing.T) {
	r := NewRenderer()
	html := r.Render("## Mon Titre\n\nVoir [[Page Cible|la cible]].\n\n<script>alert(1)</script>\n")

	assert.Contains(t, html, `<h2 id="mon-titre">Mon Titre</h2>`)
	assert.Contains(t, html, `href="/wiki/page-cible"`)
	assert.Contains(t, html, `>la cible</a>`)
	assert.NotContains(t, html, "<script")
	assert.Empty(t, r.Render("   "))
}

func TestRenderKeepsMermaidAndLanguageClass(t *testing.T) {
	html := NewRenderer().Render("```mermaid\ngraph TD\n```\n\n```go\nx := 1\n```\n")
	assert.Contains(t, html, `<pre class="mermaid">`)
	assert.Contains(t, html, `class="language-go"`)
}

func TestTOC(t *testing.T) {
	src := "# Titre\n## Intro\r\ntext\n### Détails & plus\n#### trop profond\n##pas un titre\n"
	assert.Equal(t, []Heading{
		{Level: 2, Text: "Intro", Anchor: "intro"},
		{Level: 3, Text: "Détails & plus", Anchor: "d-tails-plus"},
	}, TOC(src))
}

func TestLinks(t *testing.T) {
	links, err := Links(`<p><a href="/wiki/a">A</a> <a href="https://x.test/wiki/b">ext</a>` +
		`<a href="/wiki/a#top">again</a> <a href="/other">o</a> <a href="/wiki/c"><em>C</em></a></p>`)
	require.NoError(t, err)
	assert.Equal(t, []OutboundLink{{Slug: "a", Text: "A"}, {Slug: "c", Text: "C"}}, links)
}

func TestRenderHandlerVisibility(t *testing.T) {
	db := testutil.DB(t)
	admin := testutil.Profile(t, db, "root", models.RoleAdmin)
	draft := testutil.Post(t, db, models.PostModel{Title: "Draft", Slug: "draft", Content: "## Plan\n[[Public]]"})
	testutil.Post(t, db, models.PostModel{Title: "Public", Slug: "public", Content: "hi", IsPublic: true})

	h := NewHandler(db, NewRenderer())

	anon := gin.New()
	h.RegisterRoutes(anon.Group(""), testutil.As(nil))
	assert.Equal(t, http.StatusNotFound, testutil.Do(anon, http.MethodGet, "/posts/"+draft.ID+"/render", nil).Code)
	assert.Equal(t, http.StatusOK, testutil.Do(anon, http.MethodGet, "/posts/public/render", nil).Code)

	r := gin.New()
	h.RegisterRoutes(r.Group(""), testutil.As(admin))
	w := testutil.Do(r, http.MethodGet, "/posts/"+draft.ID+"/render", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out renderedResponse
	testutil.Decode(t, w, &out)
	assert.Equal(t, []Heading{{Level: 2, Text: "Plan", Anchor: "plan"}}, out.TOC)
	assert.Equal(t, []OutboundLink{{Slug: "public", Text: "Public"}}, out.Links)
}
