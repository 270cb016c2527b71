// Package resolve looks up named types across the primary and ambient
// schemas and substitutes bound generic arguments.
package resolve

import (
	"github.com/phobologic/c3complete/internal/model"
)

// Resolver finds classes by name, preferring the primary schema.
// Interfaces declared more than once in a schema are merged.
type Resolver struct {
	primary map[string]*model.Class
	ambient map[string]*model.Class
}

// New builds a resolver over the two schemas. Either may be nil.
func New(primary, ambient *model.Schema) *Resolver {
	return &Resolver{
		primary: classMap(primary),
		ambient: classMap(ambient),
	}
}

func classMap(s *model.Schema) map[string]*model.Class {
	m := make(map[string]*model.Class)
	if s == nil {
		return m
	}
	for i := range s.Classes {
		c := &s.Classes[i]
		existing, ok := m[c.Name]
		if !ok {
			m[c.Name] = c
			continue
		}
		merged := mergeClasses(existing, c)
		m[c.Name] = merged
	}
	return m
}

// mergeClasses implements declaration merging: members of later
// declarations are appended after earlier ones.
func mergeClasses(a, b *model.Class) *model.Class {
	out := &model.Class{Name: a.Name}
	out.Extends = append(append(out.Extends, a.Extends...), b.Extends...)
	out.TypeParameters = a.TypeParameters
	if len(out.TypeParameters) == 0 {
		out.TypeParameters = b.TypeParameters
	}
	out.Fields = append(append(out.Fields, a.Fields...), b.Fields...)
	out.Methods = append(append(out.Methods, a.Methods...), b.Methods...)
	return out
}

// Resolve returns the class named name, or false if neither schema has it.
func (r *Resolver) Resolve(name string) (*model.Class, bool) {
	if name == "" {
		return nil, false
	}
	if c, ok := r.primary[name]; ok {
		return c, true
	}
	c, ok := r.ambient[name]
	return c, ok
}

// Target is where a member's type leads: the class to expand next and the
// generic argument bound for it.
type Target struct {
	Class *model.Class
	Bound string
}

// Member resolves the type of a field or method return declared on owner,
// given the argument bound when owner was entered. It reports false when
// the branch should not be expanded.
func (r *Resolver) Member(owner *model.Class, ref model.TypeRef, bound string) (Target, bool) {
	if r.isPlaceholder(owner, ref) {
		name := bound
		if name == "" {
			if tp, ok := owner.TypeParameter(ref.HeadName()); ok {
				name = tp.Default
			}
		}
		c, ok := r.Resolve(name)
		if !ok {
			return Target{}, false
		}
		return Target{Class: c}, true
	}

	// Only the leading placeholder of a union is followed; any other union
	// (`IWorldInstance | null`) is a leaf.
	if ref.IsUnion() {
		return Target{}, false
	}
	c, ok := r.Resolve(ref.TypeName)
	if !ok {
		return Target{}, false
	}
	return Target{Class: c, Bound: r.argument(owner, ref, bound)}, true
}

// Supertype resolves an extends entry. A supertype with its own type
// argument binds it; otherwise the inherited binding carries through.
func (r *Resolver) Supertype(owner *model.Class, ref model.TypeRef, bound string) (Target, bool) {
	c, ok := r.Resolve(ref.TypeName)
	if !ok {
		return Target{}, false
	}
	if len(ref.TypeArguments) > 0 {
		return Target{Class: c, Bound: r.argument(owner, ref, bound)}, true
	}
	return Target{Class: c, Bound: bound}, true
}

// argument returns the first type argument of ref, substituting the current
// binding when the argument is itself a placeholder (`Array<T>`).
func (r *Resolver) argument(owner *model.Class, ref model.TypeRef, bound string) string {
	if len(ref.TypeArguments) > 0 && r.isPlaceholder(owner, ref.TypeArguments[0]) {
		return bound
	}
	return ref.FirstArgument()
}

func (r *Resolver) isPlaceholder(owner *model.Class, ref model.TypeRef) bool {
	name := ref.HeadName()
	if name == "" {
		return false
	}
	if _, declared := owner.TypeParameter(name); declared {
		return true
	}
	if name != model.Placeholder {
		return false
	}
	_, isClass := r.Resolve(name)
	return !isClass
}
