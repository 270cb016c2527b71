package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/c3complete/internal/index"
	"github.com/phobologic/c3complete/internal/model"
	"github.com/phobologic/c3complete/internal/resolve"
)

func typ(name string, args ...string) model.TypeRef {
	r := model.TypeRef{TypeName: name, BasicName: name}
	for _, a := range args {
		r.TypeArguments = append(r.TypeArguments, model.TypeRef{TypeName: a})
	}
	return r
}

func field(name string, t model.TypeRef) model.Field {
	return model.Field{Name: name, Type: t, Text: name + ": " + t.TypeName}
}

func flatten(t *testing.T, rootClass string, classes ...model.Class) (*index.Index, Stats) {
	t.Helper()
	r := resolve.New(&model.Schema{Name: "test", Classes: classes}, nil)
	c, ok := r.Resolve(rootClass)
	require.True(t, ok, "root class %s", rootClass)
	return Flatten("runtime", c, r, DefaultOptions())
}

func keys(t *testing.T, ix *index.Index, path ...string) []string {
	t.Helper()
	n, ok := ix.Lookup(path)
	require.True(t, ok, "path %v", path)
	return n.Keys()
}

func TestFlattenTerminatesOnCycle(t *testing.T) {
	t.Parallel()

	ix, stats := flatten(t, "A",
		model.Class{Name: "A", Fields: []model.Field{field("b", typ("B"))}},
		model.Class{Name: "B", Fields: []model.Field{field("a", typ("A"))}},
	)

	maxSegments := 0
	ix.Walk(func(path []string, _ *index.Node) bool {
		if len(path) > maxSegments {
			maxSegments = len(path)
		}
		return true
	})
	// root + at most MaxDepth+1 member segments
	assert.LessOrEqual(t, maxSegments, DefaultMaxDepth+2)
	assert.LessOrEqual(t, stats.MaxDepth, DefaultMaxDepth)
	assert.Positive(t, stats.DepthCutoffs)
}

func TestFlattenCyclicSegmentsOccurOnce(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("layout", typ("ILayout"))}},
		model.Class{
			Name:    "ILayout",
			Fields:  []model.Field{field("name", typ("string"))},
			Methods: []model.Method{{Name: "getLayer", Arguments: []model.Parameter{{Name: "layerNameOrIndex"}}, ReturnType: typ("ILayer")}},
		},
		model.Class{Name: "ILayer", Fields: []model.Field{field("layout", typ("ILayout")), field("layer", typ("ILayer"))}},
	)

	ix.Walk(func(path []string, _ *index.Node) bool {
		assert.LessOrEqual(t, count(path, "layout"), 1, "path %s", strings.Join(path, "."))
		assert.LessOrEqual(t, count(path, "layer"), 1, "path %s", strings.Join(path, "."))
		return true
	})

	_, ok := ix.Lookup([]string{"runtime", "layout", "getLayer(layerNameOrIndex)", "layer"})
	assert.True(t, ok, "first occurrence of layer is kept")
	_, ok = ix.Lookup([]string{"runtime", "layout", "getLayer(layerNameOrIndex)", "layout"})
	assert.False(t, ok)
}

func TestFlattenInheritanceTransparent(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("obj", typ("ClassB"))}},
		model.Class{Name: "ClassA", Fields: []model.Field{field("x", typ("number"))}},
		model.Class{Name: "ClassB", Extends: []model.TypeRef{typ("ClassA")}, Fields: []model.Field{field("y", typ("string"))}},
	)

	assert.ElementsMatch(t, []string{"x", "y"}, keys(t, ix, "runtime", "obj"))
}

func TestFlattenRootedAtSubtype(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "ClassB",
		model.Class{Name: "ClassA", Fields: []model.Field{field("x", typ("number"))}},
		model.Class{Name: "ClassB", Extends: []model.TypeRef{typ("ClassA")}, Fields: []model.Field{field("y", typ("string"))}},
	)

	assert.ElementsMatch(t, []string{"x", "y"}, keys(t, ix, "runtime"))
}

func TestFlattenGenericSubstitution(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("things", typ("Container", "ClassA"))}},
		model.Class{Name: "ClassA", Fields: []model.Field{field("x", typ("number"))}},
		model.Class{
			Name:           "Container",
			TypeParameters: []model.TypeParameter{{Name: "T"}},
			Methods: []model.Method{{
				Name:       "getFirst",
				ReturnType: model.TypeRef{Options: []model.TypeRef{{TypeName: "T"}, {TypeName: "undefined"}}},
				Text:       "getFirst(): T | undefined",
			}},
		},
	)

	assert.Equal(t, []string{"x"}, keys(t, ix, "runtime", "things", "getFirst()"))
	m, _ := ix.Lookup([]string{"runtime", "things", "getFirst()"})
	assert.Equal(t, index.Method, m.Kind)
	assert.Equal(t, "getFirst(): T | undefined", m.Detail)
}

func TestFlattenGenericThroughSupertype(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("mouse", typ("IMouseObjectType", "ClassA"))}},
		model.Class{Name: "ClassA", Fields: []model.Field{field("x", typ("number"))}},
		model.Class{Name: "IMouseObjectType", Extends: []model.TypeRef{typ("Container")}},
		model.Class{
			Name:    "Container",
			Methods: []model.Method{{Name: "getFirst", ReturnType: typ("T")}},
		},
	)

	assert.Equal(t, []string{"x"}, keys(t, ix, "runtime", "mouse", "getFirst()"))
}

func TestFlattenSelfReferenceNotExpanded(t *testing.T) {
	t.Parallel()

	ix, stats := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("player", typ("IInstance")), field("dt", typ("number"))}},
		model.Class{Name: "IInstance", Fields: []model.Field{field("runtime", typ("IRuntime"))}},
	)

	n, ok := ix.Lookup([]string{"runtime", "player", "runtime"})
	require.True(t, ok, "self reference is still offered as a leaf")
	assert.Zero(t, n.Len())
	assert.Equal(t, 1, stats.RootCutoffs)
}

func TestFlattenSelfReferenceBeyondDepthBound(t *testing.T) {
	t.Parallel()

	r := resolve.New(&model.Schema{Classes: []model.Class{
		{Name: "IRuntime", Fields: []model.Field{field("runtime", typ("IRuntime"))}},
	}}, nil)
	c, _ := r.Resolve("IRuntime")
	opts := DefaultOptions()
	opts.MaxDepth = 100
	ix, _ := Flatten("runtime", c, r, opts)

	n, ok := ix.Lookup([]string{"runtime", "runtime"})
	require.True(t, ok)
	assert.Zero(t, n.Len())
}

func TestFlattenFieldKinds(t *testing.T) {
	t.Parallel()

	external := model.TypeRef{TypeName: "Blob", ModulePath: "lib"}
	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{
			{Name: "blob", Type: external},
			{Name: "dt", Type: typ("number"), Text: "dt: number"},
		}},
	)

	blob, _ := ix.Lookup([]string{"runtime", "blob"})
	assert.Equal(t, index.Field, blob.Kind)
	dt, _ := ix.Lookup([]string{"runtime", "dt"})
	assert.Equal(t, index.Property, dt.Kind)
	assert.Equal(t, "dt: number", dt.Detail)
}

func TestFlattenInheritanceLoopTerminates(t *testing.T) {
	t.Parallel()

	ix, stats := flatten(t, "A",
		model.Class{Name: "A", Extends: []model.TypeRef{typ("B")}, Fields: []model.Field{field("a", typ("number"))}},
		model.Class{Name: "B", Extends: []model.TypeRef{typ("A")}, Fields: []model.Field{field("b", typ("number"))}},
	)

	assert.ElementsMatch(t, []string{"a", "b"}, keys(t, ix, "runtime"))
	assert.Positive(t, stats.Revisits)
}

func TestFlattenUnknownTypesAreLeaves(t *testing.T) {
	t.Parallel()

	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime",
			Fields:  []model.Field{field("assets", typ("IAssetManager"))},
			Methods: []model.Method{{Name: "alert", Arguments: []model.Parameter{{Name: "message"}}, ReturnType: typ("Promise", "void")}},
		},
	)

	assert.Equal(t, []string{"assets", "alert(message)"}, keys(t, ix, "runtime"))
	assets, _ := ix.Lookup([]string{"runtime", "assets"})
	assert.Zero(t, assets.Len())
}

func TestSignature(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    model.Method
		want string
	}{
		{"no args", model.Method{Name: "random"}, "random()"},
		{"one arg", model.Method{Name: "getLayout", Arguments: []model.Parameter{{Name: "layoutNameOrIndex"}}}, "getLayout(layoutNameOrIndex)"},
		{"two args", model.Method{Name: "scrollTo", Arguments: []model.Parameter{{Name: "x"}, {Name: "y"}}}, "scrollTo(x,y)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Signature(&tt.m); got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlattenNullableSelfReturnsAreLeaves(t *testing.T) {
	t.Parallel()

	nullable := func(name string) model.Method {
		return model.Method{
			Name:       name,
			ReturnType: model.TypeRef{Options: []model.TypeRef{typ("W"), typ("null")}},
			Text:       name + "(): W | null",
		}
	}
	ix, _ := flatten(t, "IRuntime",
		model.Class{Name: "IRuntime", Fields: []model.Field{field("inst", typ("W"))}},
		model.Class{
			Name:   "W",
			Fields: []model.Field{field("x", typ("number"))},
			Methods: []model.Method{
				nullable("getParent"), nullable("getTopParent"),
				nullable("getChildAt"), nullable("testOverlapSolid"),
			},
		},
	)

	assert.Equal(t,
		[]string{"x", "getParent()", "getTopParent()", "getChildAt()", "testOverlapSolid()"},
		keys(t, ix, "runtime", "inst"))
	parent, ok := ix.Lookup([]string{"runtime", "inst", "getParent()"})
	require.True(t, ok)
	assert.Zero(t, parent.Len())
	assert.Equal(t, 7, ix.Size())
}
