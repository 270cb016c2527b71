// Package parse extracts class declarations from TypeScript declaration
// files using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/c3complete/internal/lang"
	"github.com/phobologic/c3complete/internal/model"
)

// ErrSyntax is returned when a declaration file does not parse cleanly.
var ErrSyntax = errors.New("declaration syntax error")

// ExtractSchema parses a declaration file and returns its interfaces and
// object type aliases as classes. The parser must be created for the
// TypeScript language. filePath names the schema and is used in errors.
func ExtractSchema(ctx context.Context, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) (*model.Schema, error) {
	schema := &model.Schema{Name: filePath}
	if len(source) == 0 {
		return schema, nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := 0
		if n := firstError(root); n != nil {
			line = int(n.StartPoint().Row) + 1
		}
		return nil, fmt.Errorf("%w: %s:%d", ErrSyntax, filePath, line)
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		for _, c := range match.Captures {
			x := &extractor{source: source}
			switch query.CaptureNameForId(c.Index) {
			case "definition.interface":
				x.interfaceDecl(c.Node)
			case "definition.type":
				x.typeAlias(c.Node)
			}
			schema.Classes = append(schema.Classes, x.classes...)
		}
	}

	return schema, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			if found := firstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

// extractor collects the classes produced by one declaration: the declared
// class first, then synthetic classes for inline object types.
type extractor struct {
	source  []byte
	classes []model.Class
}

func (x *extractor) text(n *sitter.Node) string {
	return lang.NodeText(n, x.source)
}

func (x *extractor) interfaceDecl(node *sitter.Node) {
	var c model.Class
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			c.Name = x.text(child)
		case "type_parameters":
			c.TypeParameters = x.typeParameters(child)
		case "extends_type_clause":
			c.Extends = x.heritage(child)
		case "interface_body", "object_type":
			body = child
		}
	}
	if c.Name == "" {
		return
	}
	x.object(&c, body)
}

func (x *extractor) typeAlias(node *sitter.Node) {
	var c model.Class
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "type_identifier":
			if c.Name == "" {
				c.Name = x.text(child)
			}
		case "type_parameters":
			c.TypeParameters = x.typeParameters(child)
		case "object_type":
			body = child
		}
	}
	if c.Name == "" || body == nil {
		return
	}
	x.object(&c, body)
}

// object fills c from an object body and appends it, followed by any
// synthetic classes its inline object members produced.
func (x *extractor) object(c *model.Class, body *sitter.Node) {
	at := len(x.classes)
	x.classes = append(x.classes, model.Class{})
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			member := body.NamedChild(i)
			switch member.Type() {
			case "property_signature":
				if f, ok := x.property(c.Name, member); ok {
					c.Fields = append(c.Fields, f)
				}
			case "method_signature":
				if m, ok := x.method(member); ok {
					c.Methods = append(c.Methods, m)
				}
			}
		}
	}
	x.classes[at] = *c
}

func (x *extractor) property(owner string, node *sitter.Node) (model.Field, bool) {
	var f model.Field
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "property_identifier", "string", "number", "computed_property_name", "private_property_identifier":
			f.Name = memberName(x.text(child))
		case "?":
			f.Optional = true
		case "type_annotation":
			inner := annotated(child)
			if inner == nil {
				continue
			}
			if inner.Type() == "object_type" && f.Name != "" {
				synthetic := model.Class{Name: owner + "." + f.Name}
				x.object(&synthetic, inner)
				f.Type = model.TypeRef{BasicName: "object", TypeName: synthetic.Name}
				continue
			}
			f.Type = x.typeRef(inner)
		}
	}
	if f.Name == "" {
		return model.Field{}, false
	}
	f.Text = lang.CollapseWhitespace(strings.TrimRight(x.text(node), ";,"))
	return f, true
}

func (x *extractor) method(node *sitter.Node) (model.Method, bool) {
	var m model.Method
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "property_identifier", "string", "number", "computed_property_name", "private_property_identifier":
			m.Name = memberName(x.text(child))
		case "formal_parameters":
			m.Arguments = x.parameters(child)
		case "type_annotation":
			if inner := annotated(child); inner != nil {
				m.ReturnType = x.typeRef(inner)
			}
		}
	}
	if m.Name == "" {
		return model.Method{}, false
	}
	m.Text = lang.CollapseWhitespace(strings.TrimRight(x.text(node), ";,"))
	return m, true
}

func (x *extractor) parameters(node *sitter.Node) []model.Parameter {
	var params []model.Parameter
	for i := 0; i < int(node.NamedChildCount()); i++ {
		p := node.NamedChild(i)
		if p.Type() != "required_parameter" && p.Type() != "optional_parameter" {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil {
			pattern = p.NamedChild(0)
		}
		if pattern == nil || pattern.Type() == "this" {
			continue
		}
		name := strings.TrimPrefix(x.text(pattern), "...")
		params = append(params, model.Parameter{
			Name: strings.TrimSpace(name),
			Text: lang.CollapseWhitespace(x.text(p)),
		})
	}
	return params
}

func (x *extractor) typeParameters(node *sitter.Node) []model.TypeParameter {
	var tps []model.TypeParameter
	for i := 0; i < int(node.NamedChildCount()); i++ {
		tp := node.NamedChild(i)
		if tp.Type() != "type_parameter" {
			continue
		}
		var p model.TypeParameter
		for j := 0; j < int(tp.NamedChildCount()); j++ {
			child := tp.NamedChild(j)
			switch child.Type() {
			case "type_identifier":
				if p.Name == "" {
					p.Name = x.text(child)
				}
			case "default_type":
				if d := child.NamedChild(0); d != nil {
					p.Default = x.typeRef(d).HeadName()
				}
			}
		}
		if p.Name != "" {
			tps = append(tps, p)
		}
	}
	return tps
}

func (x *extractor) heritage(node *sitter.Node) []model.TypeRef {
	var refs []model.TypeRef
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "type_identifier", "generic_type", "nested_type_identifier":
			refs = append(refs, x.typeRef(child))
		}
	}
	return refs
}

// typeRef converts a type node. Types that cannot name a class (literals,
// tuples, function types) keep only their text in BasicName.
func (x *extractor) typeRef(node *sitter.Node) model.TypeRef {
	ref := model.TypeRef{BasicName: lang.CollapseWhitespace(x.text(node))}
	switch node.Type() {
	case "type_identifier", "predefined_type":
		ref.TypeName = ref.BasicName
	case "nested_type_identifier":
		x.qualified(&ref, node)
	case "generic_type":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "type_identifier":
				ref.TypeName = x.text(child)
			case "nested_type_identifier":
				x.qualified(&ref, child)
			case "type_arguments":
				for j := 0; j < int(child.NamedChildCount()); j++ {
					ref.TypeArguments = append(ref.TypeArguments, x.typeRef(child.NamedChild(j)))
				}
			}
		}
	case "array_type":
		ref.TypeName = "Array"
		if elem := node.NamedChild(0); elem != nil {
			ref.TypeArguments = []model.TypeRef{x.typeRef(elem)}
		}
	case "union_type":
		ref.Options = x.unionOptions(node, nil)
	case "parenthesized_type", "readonly_type":
		if inner := node.NamedChild(0); inner != nil {
			inner := x.typeRef(inner)
			inner.BasicName = ref.BasicName
			return inner
		}
	}
	return ref
}

// unionOptions flattens the left-nested union_type chain.
func (x *extractor) unionOptions(node *sitter.Node, out []model.TypeRef) []model.TypeRef {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "union_type" {
			out = x.unionOptions(child, out)
			continue
		}
		out = append(out, x.typeRef(child))
	}
	return out
}

func (x *extractor) qualified(ref *model.TypeRef, node *sitter.Node) {
	text := x.text(node)
	if dot := strings.LastIndexByte(text, '.'); dot >= 0 {
		ref.ModulePath = strings.TrimSpace(text[:dot])
		ref.TypeName = strings.TrimSpace(text[dot+1:])
		return
	}
	ref.TypeName = text
}

// annotated returns the type inside a `: T` annotation.
func annotated(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// memberName strips quoting and computed-name brackets: `['x']` and `"x"`
// both name x.
func memberName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	return strings.Trim(s, `'"`+"`")
}
