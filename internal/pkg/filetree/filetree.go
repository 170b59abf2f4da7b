// Package filetree turns flat posts carrying slash-delimited folder paths
// into the nested folder tree shown in the sidebar.
package filetree

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	RootName      = "Library"
	DefaultFolder = "General"
)

// Kind distinguishes folder nodes from post leaves.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Entry is the minimal post projection the tree is built from.
type Entry struct {
	ID     string
	Slug   string
	Title  string
	Folder string
}

// Node is a folder or a post leaf. Leaves are keyed by slug.
type Node struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"type"`
	Path     string  `json:"path,omitempty"`
	Slug     string  `json:"slug,omitempty"`
	PostID   string  `json:"id,omitempty"`
	Children []*Node `json:"children,omitempty"`

	index map[string]*Node
}

// Options tunes Build. The zero value is usable.
type Options struct {
	// DefaultFolder receives posts with an empty folder. Defaults to "General".
	DefaultFolder string
	// Locale drives the name comparison. Defaults to language.Und.
	Locale language.Tag
}

// Build returns the root node. Every entry lands on exactly one leaf.
func Build(entries []Entry, opts Options) *Node {
	bucket := strings.TrimSpace(opts.DefaultFolder)
	if bucket == "" {
		bucket = DefaultFolder
	}

	root := newFolder(RootName, "")
	for _, e := range entries {
		segments := SplitPath(e.Folder)
		if len(segments) == 0 {
			segments = []string{bucket}
		}

		cur := root
		for i, seg := range segments {
			cur = cur.folder(seg, strings.Join(segments[:i+1], "/"))
		}

		name := e.Title
		if strings.TrimSpace(name) == "" {
			name = e.Slug
		}
		cur.leaf(&Node{
			Key:    e.Slug,
			Name:   name,
			Kind:   KindFile,
			Path:   strings.Join(segments, "/"),
			Slug:   e.Slug,
			PostID: e.ID,
		})
	}

	sortTree(root, collate.New(opts.Locale, collate.IgnoreCase))
	return root
}

// SplitPath splits a folder path on '/' and drops blank segments, so
// "a//b/" and "a/b" address the same folder.
func SplitPath(folder string) []string {
	parts := strings.Split(folder, "/")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizePath returns the canonical form of a folder path.
func NormalizePath(folder string) string {
	return strings.Join(SplitPath(folder), "/")
}

func newFolder(name, path string) *Node {
	return &Node{Key: name, Name: name, Kind: KindFolder, Path: path, index: make(map[string]*Node)}
}

func (n *Node) folder(name, path string) *Node {
	k := "d:" + name
	if child, ok := n.index[k]; ok {
		return child
	}
	child := newFolder(name, path)
	n.index[k] = child
	n.Children = append(n.Children, child)
	return child
}

// leaf attaches a post. A repeated slug under the same folder gets a
// distinct key so that no entry is dropped.
func (n *Node) leaf(child *Node) {
	k := "f:" + child.Key
	for i := 2; ; i++ {
		if _, taken := n.index[k]; !taken {
			break
		}
		child.Key = child.Slug + "#" + strconv.Itoa(i)
		k = "f:" + child.Key
	}
	n.index[k] = child
	n.Children = append(n.Children, child)
}

func sortTree(n *Node, c *collate.Collator) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.Kind != b.Kind {
			return a.Kind == KindFolder
		}
		if r := c.CompareString(a.Name, b.Name); r != 0 {
			return r < 0
		}
		return a.Key < b.Key
	})
	for _, child := range n.Children {
		if child.Kind == KindFolder {
			sortTree(child, c)
		}
	}
}

// PathSlug is one flattened leaf.
type PathSlug struct {
	Path string
	Slug string
}

// Flatten walks the tree depth-first and returns one pair per leaf. Leaves
// of the default bucket are reported with an empty path.
func Flatten(root *Node, opts Options) []PathSlug {
	bucket := strings.TrimSpace(opts.DefaultFolder)
	if bucket == "" {
		bucket = DefaultFolder
	}
	var out []PathSlug
	var walk func(*Node)
	walk = func(n *Node) {
		for _, child := range n.Children {
			if child.Kind == KindFolder {
				walk(child)
				continue
			}
			p := child.Path
			if p == bucket {
				p = ""
			}
			out = append(out, PathSlug{Path: p, Slug: child.Slug})
		}
	}
	walk(root)
	return out
}

// Find returns the node at the given folder path, or nil.
func (n *Node) Find(path string) *Node {
	cur := n
	for _, seg := range SplitPath(path) {
		next, ok := cur.index["d:"+seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// Count returns the number of leaves under n.
func (n *Node) Count() int {
	if n.Kind == KindFile {
		return 1
	}
	total := 0
	for _, child := range n.Children {
		total += child.Count()
	}
	return total
}
