package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndLookup(t *testing.T) {
	t.Parallel()

	ix := New("runtime")
	ix.Insert([]string{"runtime", "layout", "name"}, Property, "name: string")
	ix.Insert([]string{"runtime", "layout", "scrollTo(x,y)"}, Method, "scrollTo(x: number, y: number): void")

	layout, ok := ix.Lookup([]string{"runtime", "layout"})
	require.True(t, ok)
	assert.Equal(t, Property, layout.Kind)
	assert.Equal(t, []string{"name", "scrollTo(x,y)"}, layout.Keys())

	m, ok := ix.Lookup([]string{"runtime", "layout", "scrollTo(x,y)"})
	require.True(t, ok)
	assert.Equal(t, Method, m.Kind)
	assert.Equal(t, "scrollTo(x: number, y: number): void", m.Detail)

	_, ok = ix.Lookup([]string{"runtime", "missing"})
	assert.False(t, ok)
}

func TestEnsureKeepsFirstDescriptor(t *testing.T) {
	t.Parallel()

	n := NewNode(Property, "")
	n.Ensure("x", Field, "first")
	got := n.Ensure("x", Method, "second")
	assert.Equal(t, Field, got.Kind)
	assert.Equal(t, "first", got.Detail)
	assert.Equal(t, 1, n.Len())
}

func TestPutReplacesInPlace(t *testing.T) {
	t.Parallel()

	n := NewNode(Property, "")
	n.Put("a", NewNode(Property, "1"))
	n.Put("b", NewNode(Property, "2"))
	n.Put("a", NewNode(Field, "3"))

	assert.Equal(t, []string{"a", "b"}, n.Keys())
	a, _ := n.Child("a")
	assert.Equal(t, "3", a.Detail)
}

func TestNamespaces(t *testing.T) {
	t.Parallel()

	ix := New("runtime")
	ix.AddNamespace("instVars", NewNode(Property, ""))
	ix.AddNamespace("instVars", NewNode(Property, "again"))
	assert.Equal(t, []string{"instVars"}, ix.Namespaces())
	assert.Equal(t, []string{"runtime", "instVars"}, ix.Top().Keys())
}

func TestEntriesAndSize(t *testing.T) {
	t.Parallel()

	ix := New("runtime")
	ix.Insert([]string{"runtime", "dt"}, Property, "dt: number")
	ix.Insert([]string{"runtime", "layout", "width"}, Property, "width: number")

	entries := ix.Entries([]string{"runtime", "layout"})
	require.Len(t, entries, 2)
	assert.Equal(t, "runtime.layout", entries[0].Path)
	assert.Equal(t, "runtime.layout.width", entries[1].Path)
	assert.Equal(t, 2, entries[1].Depth)

	assert.Equal(t, 4, ix.Size())
	assert.Len(t, ix.Entries(nil), 4)
}
