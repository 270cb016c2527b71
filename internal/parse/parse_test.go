package parse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/c3complete/internal/lang"
	"github.com/phobologic/c3complete/internal/model"
)

func extract(t *testing.T, source string) (*model.Schema, error) {
	t.Helper()
	q, err := lang.TypeScript.GetDeclarationQuery()
	require.NoError(t, err)
	p := lang.TypeScript.NewParser()
	return ExtractSchema(context.Background(), p, q, []byte(source), "test.d.ts")
}

func mustExtract(t *testing.T, source string) *model.Schema {
	t.Helper()
	s, err := extract(t, source)
	require.NoError(t, err)
	return s
}

func class(t *testing.T, s *model.Schema, name string) model.Class {
	t.Helper()
	for _, c := range s.Classes {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("class %q not found in %d classes", name, len(s.Classes))
	return model.Class{}
}

func TestExtractInterfaceMembers(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
interface ILayout {
    name: string;
    readonly index: number;
    mouse?: IMouseObjectType;
    getLayer(layerNameOrIndex: string | number): ILayer;
    loadScripts (...urls: Array<string>): Promise<void>;
}
`)
	require.Len(t, s.Classes, 1)
	c := s.Classes[0]
	assert.Equal(t, "ILayout", c.Name)

	require.Len(t, c.Fields, 3)
	assert.Equal(t, "name", c.Fields[0].Name)
	assert.Equal(t, "string", c.Fields[0].Type.TypeName)
	assert.Equal(t, "name: string", c.Fields[0].Text)
	assert.Equal(t, "index", c.Fields[1].Name)
	assert.Equal(t, "mouse", c.Fields[2].Name)
	assert.True(t, c.Fields[2].Optional)
	assert.Equal(t, "IMouseObjectType", c.Fields[2].Type.TypeName)

	require.Len(t, c.Methods, 2)
	getLayer := c.Methods[0]
	assert.Equal(t, "getLayer", getLayer.Name)
	require.Len(t, getLayer.Arguments, 1)
	assert.Equal(t, "layerNameOrIndex", getLayer.Arguments[0].Name)
	assert.Equal(t, "ILayer", getLayer.ReturnType.TypeName)
	assert.Equal(t, "getLayer(layerNameOrIndex: string | number): ILayer", getLayer.Text)

	load := c.Methods[1]
	require.Len(t, load.Arguments, 1)
	assert.Equal(t, "urls", load.Arguments[0].Name)
	assert.Equal(t, "Promise", load.ReturnType.TypeName)
}

func TestExtractExtendsAndTypeParameters(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
interface IObjectClass<T extends IInstance = IInstance> {
    getFirstInstance(): T | null;
    instances(): IterableIterator<T>;
}
interface ISpriteObjectType extends IObjectClass<ISpriteInstance>, IEventTarget {
    name: string;
}
`)
	oc := class(t, s, "IObjectClass")
	require.Len(t, oc.TypeParameters, 1)
	assert.Equal(t, model.TypeParameter{Name: "T", Default: "IInstance"}, oc.TypeParameters[0])

	first := oc.Methods[0].ReturnType
	assert.True(t, first.IsUnion())
	require.Len(t, first.Options, 2)
	assert.Equal(t, "T", first.Options[0].TypeName)

	iter := oc.Methods[1].ReturnType
	assert.Equal(t, "IterableIterator", iter.TypeName)
	assert.Equal(t, "T", iter.FirstArgument())

	sprite := class(t, s, "ISpriteObjectType")
	require.Len(t, sprite.Extends, 2)
	assert.Equal(t, "IObjectClass", sprite.Extends[0].TypeName)
	assert.Equal(t, "ISpriteInstance", sprite.Extends[0].FirstArgument())
	assert.Equal(t, "IEventTarget", sprite.Extends[1].TypeName)
}

func TestExtractTypeShapes(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
interface Shapes {
    layers: ILayer[];
    vec: [number, number];
    dom: globalThis.DOMRect;
    mode: 'a' | 'b' | 'c';
    wrapped: (ILayer);
}
`)
	c := class(t, s, "Shapes")
	require.Len(t, c.Fields, 5)

	layers := c.Fields[0].Type
	assert.Equal(t, "Array", layers.TypeName)
	assert.Equal(t, "ILayer", layers.FirstArgument())

	assert.Empty(t, c.Fields[1].Type.TypeName)
	assert.Equal(t, "[number, number]", c.Fields[1].Type.BasicName)

	dom := c.Fields[2].Type
	assert.Equal(t, "DOMRect", dom.TypeName)
	assert.Equal(t, "globalThis", dom.ModulePath)
	assert.True(t, dom.External())

	mode := c.Fields[3].Type
	assert.True(t, mode.IsUnion())
	assert.Len(t, mode.Options, 3)

	assert.Equal(t, "ILayer", c.Fields[4].Type.TypeName)
}

func TestExtractInlineObjectBecomesClass(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
interface IRuntime {
    objects: {
        [key:string]: IObjectClass;
        Player: IObjectClass<IPlayer>;
        '3DShape': IObjectClass<I3DShape>;
    }
    dt: number;
}
`)
	require.Len(t, s.Classes, 2)
	rt := class(t, s, "IRuntime")
	require.Len(t, rt.Fields, 2)
	assert.Equal(t, "objects", rt.Fields[0].Name)
	assert.Equal(t, "IRuntime.objects", rt.Fields[0].Type.TypeName)

	objects := class(t, s, "IRuntime.objects")
	require.Len(t, objects.Fields, 2)
	assert.Equal(t, "Player", objects.Fields[0].Name)
	assert.Equal(t, "IPlayer", objects.Fields[0].Type.FirstArgument())
	assert.Equal(t, "3DShape", objects.Fields[1].Name)
}

func TestExtractObjectTypeAlias(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
type Point = { x: number; y: number };
type Name = string;
`)
	require.Len(t, s.Classes, 1)
	p := s.Classes[0]
	assert.Equal(t, "Point", p.Name)
	assert.Len(t, p.Fields, 2)
}

func TestExtractIgnoresNonDeclarations(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, `
declare function runOnStartup(cb: (runtime: IRuntime) => void): void;
declare var IRuntime: { new(): IRuntime };
`)
	assert.Empty(t, s.Classes)
}

func TestExtractSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := extract(t, "interface Broken {\n    name: string\n    getX(: number;\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyntax))
	assert.Contains(t, err.Error(), "test.d.ts")
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()

	s := mustExtract(t, "")
	assert.Equal(t, "test.d.ts", s.Name)
	assert.Empty(t, s.Classes)
}

func TestMemberName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"health", "health"},
		{"'3DShape'", "3DShape"},
		{`"my var"`, "my var"},
		{"['x']", "x"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, memberName(tt.in))
		})
	}
}
