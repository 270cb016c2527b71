// Package project reads Construct project authoring files (object types,
// families and event sheets) and turns them into declaration classes that
// extend the runtime schema.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/phobologic/c3complete/internal/model"
)

// ErrInvalidProject is returned when an authoring file cannot be decoded.
var ErrInvalidProject = errors.New("invalid project file")

// Authoring file locations, relative to the project root.
const (
	ObjectTypesGlob = "objectTypes/*.json"
	FamiliesGlob    = "families/*.json"
	EventSheetsGlob = "eventSheets/*.json"
)

// Patterns lists every authoring file glob.
func Patterns() []string {
	return []string{ObjectTypesGlob, FamiliesGlob, EventSheetsGlob}
}

// Variable is an instance variable of an object type.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Desc string `json:"desc"`
}

// Behavior is a behavior attached to an object type.
type Behavior struct {
	BehaviorID string `json:"behaviorId"`
	Name       string `json:"name"`
}

// ObjectType is an object type or family definition.
type ObjectType struct {
	Name              string     `json:"name"`
	PluginID          string     `json:"plugin-id"`
	IsGlobal          bool       `json:"isGlobal"`
	InstanceVariables []Variable `json:"instanceVariables"`
	BehaviorTypes     []Behavior `json:"behaviorTypes"`
	Members           []string   `json:"members"`
}

// GlobalVar is a global variable declared in an event sheet.
type GlobalVar struct {
	EventType  string `json:"eventType"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Comment    string `json:"comment"`
	IsConstant bool   `json:"isConstant"`
}

type eventSheet struct {
	Events []GlobalVar `json:"events"`
}

// Project is the authoring data relevant to completion.
type Project struct {
	ObjectTypes map[string]*ObjectType
	GlobalVars  map[string]GlobalVar
	// Files lists every authoring file read, sorted.
	Files []string
}

// Read loads the authoring files from fsys. Families are read first so
// their members pick up the family's variables and behaviors; an object
// type defined in several files accumulates them. Missing directories are
// not an error.
func Read(fsys fs.FS) (*Project, error) {
	p := &Project{
		ObjectTypes: make(map[string]*ObjectType),
		GlobalVars:  make(map[string]GlobalVar),
	}

	err := p.each(fsys, FamiliesGlob, func(data []byte) error {
		var family ObjectType
		if err := json.Unmarshal(data, &family); err != nil {
			return err
		}
		p.ObjectTypes[family.Name] = &family
		for _, member := range family.Members {
			m := p.objectType(member)
			m.BehaviorTypes = append(m.BehaviorTypes, family.BehaviorTypes...)
			m.InstanceVariables = append(m.InstanceVariables, family.InstanceVariables...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.each(fsys, ObjectTypesGlob, func(data []byte) error {
		var ot ObjectType
		if err := json.Unmarshal(data, &ot); err != nil {
			return err
		}
		if prev, ok := p.ObjectTypes[ot.Name]; ok {
			ot.BehaviorTypes = append(append([]Behavior(nil), prev.BehaviorTypes...), ot.BehaviorTypes...)
			ot.InstanceVariables = append(append([]Variable(nil), prev.InstanceVariables...), ot.InstanceVariables...)
		}
		p.ObjectTypes[ot.Name] = &ot
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.each(fsys, EventSheetsGlob, func(data []byte) error {
		var sheet eventSheet
		if err := json.Unmarshal(data, &sheet); err != nil {
			return err
		}
		for _, ev := range sheet.Events {
			if ev.EventType == "variable" && ev.Name != "" {
				p.GlobalVars[ev.Name] = ev
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	delete(p.ObjectTypes, "")
	sort.Strings(p.Files)
	return p, nil
}

func (p *Project) objectType(name string) *ObjectType {
	ot, ok := p.ObjectTypes[name]
	if !ok {
		ot = &ObjectType{Name: name}
		p.ObjectTypes[name] = ot
	}
	return ot
}

func (p *Project) each(fsys fs.FS, pattern string, decode func([]byte) error) error {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(matches)
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		if err := decode(data); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidProject, name, err)
		}
		p.Files = append(p.Files, name)
	}
	return nil
}

// Options names the classes the generated declarations attach to.
type Options struct {
	RootClass     string
	RegistryClass string
	GlobalsClass  string
}

// DefaultOptions returns the attachment points of the runtime declarations.
func DefaultOptions() Options {
	return Options{
		RootClass:     "IRuntime",
		RegistryClass: "IRuntime.objects",
		GlobalsClass:  "IGlobalVars",
	}
}

// Schema renders the project as classes. For each object type K it emits
// I<K>Vars, I<K>Behaviors and I<K> (extending the plugin's instance class),
// and registers `K: IObjectClass<I<K>>` on the registry class. Global
// variables become fields of the globals class, reachable from the root
// class as globalVars. Object types are emitted in name order.
func (p *Project) Schema(opts Options) *model.Schema {
	s := &model.Schema{Name: "project"}
	registry := model.Class{Name: opts.RegistryClass}

	names := make([]string, 0, len(p.ObjectTypes))
	for name := range p.ObjectTypes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ot := p.ObjectTypes[name]
		id := "I" + strings.ReplaceAll(name, " ", "")

		vars := model.Class{Name: id + "Vars"}
		for _, v := range ot.InstanceVariables {
			if v.Name == "" {
				continue
			}
			vars.Fields = append(vars.Fields, model.Field{
				Name: v.Name,
				Type: model.TypeRef{BasicName: v.Type, TypeName: v.Type},
				Text: describe(v.Name, v.Type, v.Desc),
			})
		}

		behaviors := model.Class{Name: id + "Behaviors"}
		for _, b := range ot.BehaviorTypes {
			if b.Name == "" {
				continue
			}
			class := BehaviorClass(b.BehaviorID)
			behaviors.Fields = append(behaviors.Fields, model.Field{
				Name: b.Name,
				Type: model.TypeRef{BasicName: class, TypeName: class},
				Text: b.Name + ": " + class,
			})
		}

		base := InstanceClass(ot.PluginID, ot.IsGlobal)
		instance := model.Class{
			Name:    id,
			Extends: []model.TypeRef{{BasicName: base, TypeName: base}},
			Fields: []model.Field{
				{Name: "instVars", Type: model.TypeRef{BasicName: vars.Name, TypeName: vars.Name}, Text: "instVars: " + vars.Name},
				{Name: "behaviors", Type: model.TypeRef{BasicName: behaviors.Name, TypeName: behaviors.Name}, Text: "behaviors: " + behaviors.Name},
			},
		}

		registry.Fields = append(registry.Fields, model.Field{
			Name: name,
			Type: model.TypeRef{
				BasicName:     "IObjectClass<" + id + ">",
				TypeName:      "IObjectClass",
				TypeArguments: []model.TypeRef{{BasicName: id, TypeName: id}},
			},
			Text: name + ": IObjectClass<" + id + ">",
		})

		s.Classes = append(s.Classes, vars, behaviors, instance)
	}
	if len(registry.Fields) > 0 {
		s.Classes = append(s.Classes, registry)
	}

	if len(p.GlobalVars) > 0 {
		globals := model.Class{Name: opts.GlobalsClass}
		keys := make([]string, 0, len(p.GlobalVars))
		for k := range p.GlobalVars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			g := p.GlobalVars[k]
			text := describe(g.Name, g.Type, g.Comment)
			if g.IsConstant {
				text = "readonly " + text
			}
			globals.Fields = append(globals.Fields, model.Field{
				Name: g.Name,
				Type: model.TypeRef{BasicName: g.Type, TypeName: g.Type},
				Text: text,
			})
		}
		s.Classes = append(s.Classes, globals, model.Class{
			Name: opts.RootClass,
			Fields: []model.Field{{
				Name: "globalVars",
				Type: model.TypeRef{BasicName: globals.Name, TypeName: globals.Name},
				Text: "globalVars: " + globals.Name,
			}},
		})
	}
	return s
}

func describe(name, typ, comment string) string {
	text := name + ": " + typ
	if comment != "" {
		text += " // " + comment
	}
	return text
}

var instanceClasses = map[string]string{
	"3DCamera":        "I3DCameraObjectType",
	"3DShape":         "I3DShapeInstance",
	"Array":           "IArrayInstance",
	"Audio":           "IAudioObjectType",
	"BinaryData":      "IBinaryDataInstance",
	"Button":          "IButtonInstance",
	"Dictionary":      "IDictionaryInstance",
	"DrawingCanvas":   "IDrawingCanvasInstance",
	"Json":            "IJsonInstance",
	"Keyboard":        "IKeyboardObjectType",
	"Mouse":           "IMouseObjectType",
	"SlideBar":        "ISliderBarInstance",
	"Sprite":          "ISpriteInstance",
	"SpriteFont":      "ISpriteFontInstance",
	"Text":            "ITextInstance",
	"TextInput":       "ITextInputInstance",
	"TiledBackground": "ITiledBackgroundInstance",
	"Tilemap":         "ITilemapInstance",
	"Touch":           "ITouchObjectType",
}

// InstanceClass maps a plugin id to the class its instances implement.
// Unknown plugins fall back to IInstance for global objects and
// IWorldInstance otherwise.
func InstanceClass(pluginID string, isGlobal bool) string {
	if c, ok := instanceClasses[pluginID]; ok {
		return c
	}
	if isGlobal {
		return "IInstance"
	}
	return "IWorldInstance"
}

var behaviorClasses = map[string]string{
	"EightDir":     "I8DirectionBehaviorInstance",
	"Bullet":       "IBulletBehaviorInstance",
	"Car":          "ICarBehaviorInstance",
	"LOS":          "ILOSBehaviorInstance",
	"MoveTo":       "IMoveToBehaviorInstance",
	"Pathfinding":  "IPathfindingBehaviorInstance",
	"Physics":      "IPhysicsBehaviorInstance",
	"Platform":     "IPlatformBehaviorInstance",
	"Sine":         "ISineBehaviorInstance",
	"TileMovement": "ITileMovementBehaviourInstance",
}

// BehaviorClass maps a behavior id to its instance class.
func BehaviorClass(behaviorID string) string {
	if c, ok := behaviorClasses[behaviorID]; ok {
		return c
	}
	return "IBehaviorInstance"
}
