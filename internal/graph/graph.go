// Package graph flattens the declaration type graph into a path index by a
// bounded breadth-first walk from a root symbol.
package graph

import (
	"strings"

	"github.com/phobologic/c3complete/internal/index"
	"github.com/phobologic/c3complete/internal/model"
	"github.com/phobologic/c3complete/internal/resolve"
)

// DefaultMaxDepth bounds the walk. Declaration graphs are small; the bound
// only stops runaway cycles.
const DefaultMaxDepth = 10

// Options configures the walk.
type Options struct {
	MaxDepth int
	// CyclicSegments are path segments known to form cycles (a layout
	// references a layer which references its layout). Each may occur at
	// most once per path.
	CyclicSegments []string
}

// DefaultOptions returns the options used for the game runtime declarations.
func DefaultOptions() Options {
	return Options{
		MaxDepth:       DefaultMaxDepth,
		CyclicSegments: []string{"layout", "layer"},
	}
}

// Stats summarizes one walk.
type Stats struct {
	Expanded     int
	DepthCutoffs int
	RootCutoffs  int
	CycleCutoffs int
	Revisits     int
	MaxDepth     int
}

type workItem struct {
	path  []string
	depth int
	class *model.Class
	bound string
}

// Flatten walks from rootClass and returns the fully materialized index.
// The root symbol is the first path segment of every entry.
func Flatten(root string, rootClass *model.Class, r *resolve.Resolver, opts Options) (*index.Index, Stats) {
	w := &walker{
		ix:       index.New(root),
		root:     root,
		resolver: r,
		opts:     opts,
		cyclic:   make(map[string]struct{}, len(opts.CyclicSegments)),
		seen:     make(map[string]struct{}),
	}
	for _, seg := range opts.CyclicSegments {
		w.cyclic[seg] = struct{}{}
	}

	w.queue = append(w.queue, workItem{path: []string{root}, class: rootClass})
	for len(w.queue) > 0 {
		item := w.queue[0]
		w.queue = w.queue[1:]
		w.visit(item)
	}
	return w.ix, w.stats
}

type walker struct {
	ix       *index.Index
	root     string
	resolver *resolve.Resolver
	opts     Options
	cyclic   map[string]struct{}
	seen     map[string]struct{}
	queue    []workItem
	stats    Stats
}

func (w *walker) visit(item workItem) {
	w.ix.Insert(item.path, index.Property, "")
	if item.class == nil {
		return
	}

	switch {
	case item.depth > w.opts.MaxDepth:
		w.stats.DepthCutoffs++
		return
	case count(item.path, w.root) > 1:
		w.stats.RootCutoffs++
		return
	case w.repeatsCyclic(item.path):
		w.stats.CycleCutoffs++
		return
	}

	// Supertypes re-enter the same path at the same depth, so the depth
	// bound cannot stop an inheritance loop.
	key := strings.Join(item.path, "\x00") + "\x00" + item.class.Name + "\x00" + item.bound
	if _, dup := w.seen[key]; dup {
		w.stats.Revisits++
		return
	}
	w.seen[key] = struct{}{}
	w.stats.Expanded++
	if item.depth > w.stats.MaxDepth {
		w.stats.MaxDepth = item.depth
	}

	c := item.class
	for _, ext := range c.Extends {
		target, ok := w.resolver.Supertype(c, ext, item.bound)
		if !ok {
			continue
		}
		w.queue = append(w.queue, workItem{
			path:  item.path,
			depth: item.depth,
			class: target.Class,
			bound: target.Bound,
		})
	}

	for i := range c.Fields {
		f := &c.Fields[i]
		kind := index.Property
		if f.Type.External() {
			kind = index.Field
		}
		path, ok := w.register(item.path, f.Name, kind, f.Text)
		if !ok {
			continue
		}
		if target, ok := w.resolver.Member(c, f.Type, item.bound); ok {
			w.enqueue(path, item.depth+1, target)
		}
	}

	for i := range c.Methods {
		m := &c.Methods[i]
		path, ok := w.register(item.path, Signature(m), index.Method, m.Text)
		if !ok {
			continue
		}
		if target, ok := w.resolver.Member(c, m.ReturnType, item.bound); ok {
			w.enqueue(path, item.depth+1, target)
		}
	}
}

// register adds a child of parent unless it would repeat a cyclic segment.
func (w *walker) register(parent []string, name string, kind index.Kind, detail string) ([]string, bool) {
	if _, ok := w.cyclic[name]; ok && contains(parent, name) {
		w.stats.CycleCutoffs++
		return nil, false
	}
	path := make([]string, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = name
	w.ix.Insert(path, kind, detail)
	return path, true
}

func (w *walker) enqueue(path []string, depth int, target resolve.Target) {
	w.queue = append(w.queue, workItem{
		path:  path,
		depth: depth,
		class: target.Class,
		bound: target.Bound,
	})
}

func (w *walker) repeatsCyclic(path []string) bool {
	for seg := range w.cyclic {
		if count(path, seg) > 1 {
			return true
		}
	}
	return false
}

// Signature renders a method's call-signature key: name(arg1,arg2).
func Signature(m *model.Method) string {
	names := make([]string, len(m.Arguments))
	for i, a := range m.Arguments {
		names[i] = a.Name
	}
	return m.Name + "(" + strings.Join(names, ",") + ")"
}

func count(slice []string, s string) int {
	n := 0
	for _, v := range slice {
		if v == s {
			n++
		}
	}
	return n
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
