package wikilink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Café Société", "cafe-societe"},
		{"Docker Basics", "docker-basics"},
		{"  --Hello,   World!--  ", "hello-world"},
		{"Ça marche à Noël", "ca-marche-a-noel"},
		{"C++ & Go", "c-go"},
		{"", ""},
		{"!!!", ""},
		{"already-a-slug", "already-a-slug"},
		{"Linux/Containers 101", "linux-containers-101"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{"Café Société", "Ünïcödé Tëst", "a  b", "--x--", "日本語 page", "Ωmega 3", ""}
	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "input %q", in)
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "see [[Café Société]]", "see [Café Société](/wiki/cafe-societe)"},
		{"alias", "[[Docker Basics|the docker page]]", "[the docker page](/wiki/docker-basics)"},
		{"split on first pipe", "[[a|b|c]]", "[b|c](/wiki/a)"},
		{"empty target", "[[]]", "[](/wiki/)"},
		{"empty target with alias", "[[|label]]", "[label](/wiki/)"},
		{"non greedy", "[[a]] and [[b]]", "[a](/wiki/a) and [b](/wiki/b)"},
		{"stops at first close", "[[a]]]]", "[a](/wiki/a)]]"},
		{"markdown in display kept", "[[x|**bold**]]", "[**bold**](/wiki/x)"},
		{"untouched text", "no links here", "no links here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.in))
		})
	}
}

func TestResolveAliasEquivalence(t *testing.T) {
	for _, title := range []string{"A", "Café Société", "Docker Basics", "x y z"} {
		assert.Equal(t, Resolve("[["+title+"]]"), Resolve("[["+title+"|"+title+"]]"))
	}
}

func TestTargetsDeduplicatesBySlug(t *testing.T) {
	links := Targets("[[Go]] then [[go|again]] and [[Rust]]")
	require.Len(t, links, 2)
	assert.Equal(t, "go", links[0].Slug)
	assert.Equal(t, "Go", links[0].Target)
	assert.Equal(t, "rust", links[1].Slug)
}

func TestReferences(t *testing.T) {
	assert.True(t, References("intro to [[Café Société|the cafe]]", "Cafe Societe"))
	assert.False(t, References("plain [Café Société](x)", "Café Société"))
}
