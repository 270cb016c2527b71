package complete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/c3complete/internal/index"
)

func labels(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Label
	}
	return out
}

func fooIndex() *index.Index {
	ix := index.New("foo")
	ix.Insert([]string{"foo", "bar"}, index.Property, "bar: number")
	ix.Insert([]string{"foo", "baz"}, index.Field, "baz: Blob")
	ix.Insert([]string{"foo", "qux(a,b)"}, index.Method, "qux(a: number, b: number): void")
	return ix
}

func TestQueryPrefix(t *testing.T) {
	t.Parallel()
	ix := fooIndex()

	tests := []struct {
		token string
		want  []string
	}{
		{"foo.b", []string{"bar", "baz"}},
		{"foo.ba", []string{"bar", "baz"}},
		{"foo.bar", []string{"bar"}},
		{"foo.", []string{"bar", "baz", "qux(a,b)"}},
		{"foo.B", nil},
		{"foo.x", nil},
		{"nope.b", nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()
			got := Query(ix, tt.token, 0)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, labels(got))
		})
	}
}

func TestQueryKinds(t *testing.T) {
	t.Parallel()

	got := Query(fooIndex(), "foo.", 0)
	kinds := make(map[string]Kind)
	details := make(map[string]string)
	for _, c := range got {
		kinds[c.Label] = c.Kind
		details[c.Label] = c.Detail
	}
	assert.Equal(t, KindProperty, kinds["bar"])
	assert.Equal(t, KindField, kinds["baz"])
	assert.Equal(t, KindMethod, kinds["qux(a,b)"])
	assert.Equal(t, "qux(a: number, b: number): void", details["qux(a,b)"])
}

func TestQueryBracketNormalization(t *testing.T) {
	t.Parallel()

	ix := index.New("a")
	ix.Insert([]string{"a", "b", "c"}, index.Property, "")
	ix.Insert([]string{"a", "b", "d"}, index.Property, "")

	dotted := Query(ix, "a.b.", 0)
	require.Len(t, dotted, 2)
	assert.Equal(t, dotted, Query(ix, "a['b'].", 0))
	assert.Equal(t, dotted, Query(ix, `a["b"].`, 0))
}

func TestQueryInsertTextEscaping(t *testing.T) {
	t.Parallel()

	ix := index.New("runtime")
	ix.Insert([]string{"runtime", "objects", "3DShape"}, index.Property, "")
	ix.Insert([]string{"runtime", "objects", "Big Boss"}, index.Property, "")
	ix.Insert([]string{"runtime", "objects", "Player"}, index.Property, "")

	inserts := make(map[string]string)
	for _, c := range Query(ix, "runtime.objects.", 0) {
		inserts[c.Label] = c.InsertText
	}
	assert.Equal(t, "['3DShape']", inserts["3DShape"])
	assert.Equal(t, "['Big Boss']", inserts["Big Boss"])
	assert.Equal(t, "Player", inserts["Player"])

	got := Query(ix, "runtime.objects['Big", 0)
	assert.Equal(t, []string{"Big Boss"}, labels(got))
}

func TestQueryReanchor(t *testing.T) {
	t.Parallel()

	ix := index.New("runtime")
	ix.Insert([]string{"runtime", "layout"}, index.Property, "")
	ix.Insert([]string{"runtime", "player", "runtime"}, index.Property, "")
	vars := index.NewNode(index.Property, "")
	vars.Ensure("health", index.Property, "health: number")
	ix.AddNamespace("instVars", vars)

	assert.Equal(t, []string{"layout"}, labels(Query(ix, "this.runtime.la", 0)))
	assert.Equal(t, []string{"health"}, labels(Query(ix, "inst.instVars.he", 0)))
	assert.Equal(t, []string{"layout"}, labels(Query(ix, "runtime.player.runtime.la", 0)))
	assert.Empty(t, Query(ix, "inst.other.he", 0))
}

func TestQueryMaxResults(t *testing.T) {
	t.Parallel()

	got := Query(fooIndex(), "foo.", 2)
	assert.Len(t, got, 2)
	assert.Nil(t, Query(nil, "foo.", 0))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"a.b.", "a.b."},
		{"a['b'].", "a.b."},
		{`a["b"].c`, "a.b.c"},
		{"(a.b", "a.b"},
		{"(a.b)", "a.b"},
		{"{a.b}", "a.b"},
		{"a.random()", "a.random()"},
		{"((a.b))", "a.b"},
		{"  a.b  ", "a.b"},
		{"['a']", "a"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestFormatProperty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "health", FormatProperty("health"))
	assert.Equal(t, "['2nd']", FormatProperty("2nd"))
	assert.Equal(t, "['my var']", FormatProperty("my var"))
}
