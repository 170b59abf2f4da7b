package filetree

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(n *Node) []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.Name)
	}
	return out
}

func TestBuildDockerAndIntro(t *testing.T) {
	root := Build([]Entry{
		{Title: "Docker Basics", Folder: "linux/containers", Slug: "docker-basics"},
		{Title: "Intro", Folder: "", Slug: "intro"},
	}, Options{})

	require.Equal(t, RootName, root.Name)

	containers := root.Find("linux/containers")
	require.NotNil(t, containers)
	require.Len(t, containers.Children, 1)
	assert.Equal(t, "docker-basics", containers.Children[0].Key)
	assert.Equal(t, "Docker Basics", containers.Children[0].Name)
	assert.Equal(t, KindFile, containers.Children[0].Kind)

	bucket := root.Find(DefaultFolder)
	require.NotNil(t, bucket)
	require.Len(t, bucket.Children, 1)
	assert.Equal(t, "intro", bucket.Children[0].Slug)
}

func TestBuildFoldersBeforeFilesThenAlphabetical(t *testing.T) {
	root := Build([]Entry{
		{Title: "zeta", Folder: "docs", Slug: "zeta"},
		{Title: "Alpha", Folder: "docs", Slug: "alpha"},
		{Title: "élan", Folder: "docs", Slug: "elan"},
		{Title: "guide", Folder: "docs/sub", Slug: "guide"},
		{Title: "beta", Folder: "docs", Slug: "beta"},
	}, Options{})

	docs := root.Find("docs")
	require.NotNil(t, docs)
	assert.Equal(t, []string{"sub", "Alpha", "beta", "élan", "zeta"}, names(docs))
}

func TestBuildIsIdempotentForRepeatedSegments(t *testing.T) {
	root := Build([]Entry{
		{Title: "A", Folder: "linux/containers", Slug: "a"},
		{Title: "B", Folder: "linux//containers/", Slug: "b"},
		{Title: "C", Folder: " linux / net ", Slug: "c"},
	}, Options{})

	require.Len(t, root.Children, 1)
	linux := root.Children[0]
	assert.Equal(t, []string{"containers", "net"}, names(linux))
	assert.Equal(t, 2, root.Find("linux/containers").Count())
}

func TestBuildKeepsDuplicateSlugs(t *testing.T) {
	root := Build([]Entry{
		{Title: "Same", Folder: "x", Slug: "same"},
		{Title: "Same", Folder: "x", Slug: "same"},
	}, Options{})
	assert.Equal(t, 2, root.Count())
	keys := []string{root.Find("x").Children[0].Key, root.Find("x").Children[1].Key}
	sort.Strings(keys)
	assert.Equal(t, []string{"same", "same#2"}, keys)
}

func TestBuildCustomDefaultFolder(t *testing.T) {
	root := Build([]Entry{{Title: "Loose", Slug: "loose"}}, Options{DefaultFolder: "Inbox"})
	require.NotNil(t, root.Find("Inbox"))
	assert.Nil(t, root.Find(DefaultFolder))
}

func TestFlattenRoundTrip(t *testing.T) {
	folders := []string{"", "linux", "linux/containers", "a/b/c", "notes", "linux/net"}
	var entries []Entry
	for i := 0; i < 60; i++ {
		entries = append(entries, Entry{
			Title:  fmt.Sprintf("Post %02d", i),
			Slug:   fmt.Sprintf("post-%02d", i),
			Folder: folders[i%len(folders)],
		})
	}

	got := Flatten(Build(entries, Options{}), Options{})

	want := make([]PathSlug, 0, len(entries))
	for _, e := range entries {
		want = append(want, PathSlug{Path: NormalizePath(e.Folder), Slug: e.Slug})
	}
	less := func(s []PathSlug) {
		sort.Slice(s, func(i, j int) bool {
			if s[i].Path != s[j].Path {
				return s[i].Path < s[j].Path
			}
			return s[i].Slug < s[j].Slug
		})
	}
	less(got)
	less(want)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIsStable(t *testing.T) {
	entries := []Entry{
		{Title: "b", Folder: "f", Slug: "b"},
		{Title: "a", Folder: "f", Slug: "a"},
		{Title: "B", Folder: "f", Slug: "b2"},
	}
	first := Flatten(Build(entries, Options{}), Options{})
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Flatten(Build(entries, Options{}), Options{})); diff != "" {
			t.Fatalf("unstable ordering:\n%s", diff)
		}
	}
}

func TestSplitPath(t *testing.T) {
	assert.Empty(t, SplitPath(""))
	assert.Empty(t, SplitPath(" / / "))
	assert.Equal(t, []string{"a", "b"}, SplitPath("/a//b/"))
	assert.Equal(t, "a/b", NormalizePath(" a / b "))
}
