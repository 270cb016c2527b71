// Package index implements the path index: a nested, insertion-ordered
// symbol table keyed by path segment.
package index

import (
	"sort"
	"strings"
)

// Kind classifies a node for completion.
type Kind string

const (
	Property Kind = "property"
	Field    Kind = "field"
	Method   Kind = "method"
)

// Node is one path segment. Every node carries its own kind and detail and
// may also have children, so it can be offered as a candidate and descended.
type Node struct {
	Kind     Kind
	Detail   string
	keys     []string
	children map[string]*Node
}

// NewNode returns an empty node with the given descriptor.
func NewNode(kind Kind, detail string) *Node {
	return &Node{Kind: kind, Detail: detail}
}

// Child returns the direct child with the given key.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.children[key]
	return c, ok
}

// Ensure returns the child at key, creating it with the given descriptor if
// missing. An existing child keeps its descriptor.
func (n *Node) Ensure(key string, kind Kind, detail string) *Node {
	if c, ok := n.children[key]; ok {
		return c
	}
	c := NewNode(kind, detail)
	n.Put(key, c)
	return c
}

// Put sets the child at key, replacing any existing child in place.
func (n *Node) Put(key string, c *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	if _, ok := n.children[key]; !ok {
		n.keys = append(n.keys, key)
	}
	n.children[key] = c
}

// Keys returns child keys in insertion order.
func (n *Node) Keys() []string {
	return n.keys
}

// Len returns the number of direct children.
func (n *Node) Len() int {
	return len(n.keys)
}

// Index is the full symbol table for one root symbol plus any synthetic
// namespaces grafted beside it.
type Index struct {
	root      string
	top       *Node
	synthetic []string
}

// New returns an index whose top level holds the root symbol node.
func New(root string) *Index {
	ix := &Index{root: root, top: NewNode(Property, "")}
	ix.top.Ensure(root, Property, "")
	return ix
}

// RootSymbol returns the traversal entry point name.
func (ix *Index) RootSymbol() string {
	return ix.root
}

// Top returns the container holding the root symbol and synthetic namespaces.
func (ix *Index) Top() *Node {
	return ix.top
}

// Lookup descends from the top along path.
func (ix *Index) Lookup(path []string) (*Node, bool) {
	n := ix.top
	for _, seg := range path {
		c, ok := n.Child(seg)
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}

// Insert creates every missing node along path and returns the last one.
// Intermediate nodes default to Property; the last gets kind and detail
// only if it is new.
func (ix *Index) Insert(path []string, kind Kind, detail string) *Node {
	n := ix.top
	for i, seg := range path {
		if i == len(path)-1 {
			return n.Ensure(seg, kind, detail)
		}
		n = n.Ensure(seg, Property, "")
	}
	return n
}

// AddNamespace grafts a synthetic namespace at the top level.
func (ix *Index) AddNamespace(name string, n *Node) {
	ix.top.Put(name, n)
	for _, s := range ix.synthetic {
		if s == name {
			return
		}
	}
	ix.synthetic = append(ix.synthetic, name)
}

// Namespaces returns the names of grafted synthetic namespaces.
func (ix *Index) Namespaces() []string {
	return ix.synthetic
}

// Entry is one flattened path of the index.
type Entry struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Depth  int    `json:"depth"`
}

// Walk visits every node below the top in breadth-first insertion order.
// fn receives the segments from the top. Returning false skips the subtree.
func (ix *Index) Walk(fn func(path []string, n *Node) bool) {
	type item struct {
		path []string
		node *Node
	}
	queue := []item{{nil, ix.top}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		for _, key := range it.node.keys {
			child := it.node.children[key]
			p := make([]string, len(it.path)+1)
			copy(p, it.path)
			p[len(it.path)] = key
			if !fn(p, child) {
				continue
			}
			queue = append(queue, item{p, child})
		}
	}
}

// Entries returns every path under prefix as dotted strings, sorted.
func (ix *Index) Entries(prefix []string) []Entry {
	var entries []Entry
	ix.Walk(func(path []string, n *Node) bool {
		if !hasPrefix(path, prefix) && !hasPrefix(prefix, path) {
			return false
		}
		if len(path) >= len(prefix) {
			entries = append(entries, Entry{
				Path:   strings.Join(path, "."),
				Kind:   n.Kind,
				Detail: n.Detail,
				Depth:  len(path) - 1,
			})
		}
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries
}

// Size returns the number of nodes below the top.
func (ix *Index) Size() int {
	count := 0
	ix.Walk(func([]string, *Node) bool {
		count++
		return true
	})
	return count
}

func hasPrefix(path, prefix []string) bool {
	if len(prefix) > len(path) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
