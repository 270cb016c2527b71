// Package model defines the structural type model produced from declaration
// sources: classes, fields, methods and type references.
package model

import (
	"errors"
	"fmt"
)

// ErrMalformed is returned when a schema violates the structural shape the
// walker depends on. It is fatal to a rebuild.
var ErrMalformed = errors.New("malformed schema")

// Placeholder is the generic type parameter name the declarations use for
// "whatever concrete type was bound by the enclosing generic".
const Placeholder = "T"

// TypeRef is a reference to a named type, optionally parameterized and
// optionally a union (Options non-empty, TypeName empty).
type TypeRef struct {
	BasicName     string
	TypeName      string
	ModulePath    string
	TypeArguments []TypeRef
	Options       []TypeRef
}

// IsUnion reports whether the reference is a union of options.
func (t TypeRef) IsUnion() bool {
	return t.TypeName == "" && len(t.Options) > 0
}

// FirstArgument returns the type name of the first type argument, or "".
func (t TypeRef) FirstArgument() string {
	if len(t.TypeArguments) == 0 {
		return ""
	}
	return t.TypeArguments[0].TypeName
}

// HeadName returns TypeName, or the first option's TypeName for unions.
func (t TypeRef) HeadName() string {
	if t.TypeName != "" {
		return t.TypeName
	}
	if len(t.Options) > 0 {
		return t.Options[0].TypeName
	}
	return ""
}

// External reports whether the type was imported from another module.
func (t TypeRef) External() bool {
	return t.ModulePath != ""
}

// Field is a named property of a class.
type Field struct {
	Name     string
	Type     TypeRef
	Optional bool
	Text     string
}

// Parameter is a method argument. Only the name is used for signatures.
type Parameter struct {
	Name string
	Text string
}

// Method is a callable member of a class. Text is a human-readable summary.
type Method struct {
	Name       string
	Arguments  []Parameter
	ReturnType TypeRef
	Text       string
}

// TypeParameter is a generic parameter declared by a class, with an optional
// default (`T = IInstance`).
type TypeParameter struct {
	Name    string
	Default string
}

// Class is a declared interface or object type. Identity is by Name.
type Class struct {
	Name           string
	Extends        []TypeRef
	TypeParameters []TypeParameter
	Fields         []Field
	Methods        []Method
}

// TypeParameter returns the declared type parameter with the given name.
func (c *Class) TypeParameter(name string) (TypeParameter, bool) {
	for _, tp := range c.TypeParameters {
		if tp.Name == name {
			return tp, true
		}
	}
	return TypeParameter{}, false
}

// Schema is a parsed collection of class declarations.
type Schema struct {
	Name    string
	Classes []Class
}

// Append adds the classes of other to s, preserving order.
func (s *Schema) Append(other *Schema) {
	if other == nil {
		return
	}
	s.Classes = append(s.Classes, other.Classes...)
}

// Validate checks the structural shape of every class. Unknown type names
// are not structural errors; empty member names are.
func (s *Schema) Validate() error {
	for i := range s.Classes {
		c := &s.Classes[i]
		if c.Name == "" {
			return fmt.Errorf("%w: %s: class %d has no name", ErrMalformed, s.Name, i)
		}
		for j := range c.Extends {
			if c.Extends[j].HeadName() == "" {
				return fmt.Errorf("%w: %s: %s: supertype %d has no name", ErrMalformed, s.Name, c.Name, j)
			}
		}
		for j := range c.Fields {
			if c.Fields[j].Name == "" {
				return fmt.Errorf("%w: %s: %s: field %d has no name", ErrMalformed, s.Name, c.Name, j)
			}
		}
		for j := range c.Methods {
			m := &c.Methods[j]
			if m.Name == "" {
				return fmt.Errorf("%w: %s: %s: method %d has no name", ErrMalformed, s.Name, c.Name, j)
			}
			for k := range m.Arguments {
				if m.Arguments[k].Name == "" {
					return fmt.Errorf("%w: %s: %s.%s: argument %d has no name", ErrMalformed, s.Name, c.Name, m.Name, k)
				}
			}
		}
	}
	return nil
}

// Bundle is the complete input of one rebuild.
type Bundle struct {
	Primary     *Schema
	Ambient     *Schema
	Fingerprint uint64
}
