// Package merge derives shared synthetic namespaces from the per-object-type
// shapes found under the object registry node.
//
// A script value of unknown concrete object type exposes "its instance
// variables" as one namespace. The merged namespace is the union of every
// registered object type's shape and is an approximation: on a name
// conflict the object type processed last wins.
package merge

import (
	"sort"

	"github.com/phobologic/c3complete/internal/index"
)

// Options names the registry and the namespaces to synthesize.
type Options struct {
	// Registry is the path of the node mapping object-type names to
	// per-instance shapes (runtime.objects).
	Registry []string
	// Namespaces are the per-instance sub-maps to union (instVars, behaviors).
	Namespaces []string
	// SearchDepth bounds how far below an object type node the walk looks
	// for a namespace node.
	SearchDepth int
}

// DefaultOptions returns the registry layout of the game runtime declarations.
func DefaultOptions() Options {
	return Options{
		Registry:    []string{"runtime", "objects"},
		Namespaces:  []string{"instVars", "behaviors"},
		SearchDepth: 3,
	}
}

// Result reports what the merge produced.
type Result struct {
	ObjectTypes int
	Members     map[string]int
	Conflicts   int
}

// Apply folds every object type under the registry, in sorted name order,
// into one accumulator per namespace and grafts the accumulators at the top
// of ix. A missing registry yields empty namespaces.
func Apply(ix *index.Index, opts Options) Result {
	res := Result{Members: make(map[string]int, len(opts.Namespaces))}

	acc := make(map[string]*index.Node, len(opts.Namespaces))
	for _, ns := range opts.Namespaces {
		acc[ns] = index.NewNode(index.Property, "")
	}

	if registry, ok := ix.Lookup(opts.Registry); ok {
		names := append([]string(nil), registry.Keys()...)
		sort.Strings(names)
		for _, name := range names {
			obj, _ := registry.Child(name)
			res.ObjectTypes++
			for _, ns := range opts.Namespaces {
				shape, ok := find(obj, ns, opts.SearchDepth)
				if !ok {
					continue
				}
				res.Conflicts += fold(acc[ns], shape)
			}
		}
	}

	for _, ns := range opts.Namespaces {
		ix.AddNamespace(ns, acc[ns])
		res.Members[ns] = acc[ns].Len()
	}
	return res
}

// fold copies every child of shape into dst, replacing existing entries,
// and returns how many were replaced.
func fold(dst, shape *index.Node) int {
	replaced := 0
	for _, key := range shape.Keys() {
		child, _ := shape.Child(key)
		if _, exists := dst.Child(key); exists {
			replaced++
		}
		dst.Put(key, child)
	}
	return replaced
}

// find returns the shallowest descendant keyed name, in insertion order.
func find(n *index.Node, name string, maxDepth int) (*index.Node, bool) {
	level := []*index.Node{n}
	for depth := 0; depth < maxDepth && len(level) > 0; depth++ {
		var next []*index.Node
		for _, cur := range level {
			if c, ok := cur.Child(name); ok {
				return c, true
			}
			for _, key := range cur.Keys() {
				c, _ := cur.Child(key)
				next = append(next, c)
			}
		}
		level = next
	}
	return nil, false
}
