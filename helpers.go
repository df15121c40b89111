package formtree

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/reoring/formtree/cells"
)

// ErrFieldExists is returned by DefineValue for a name already in use,
// compared case-insensitively.
var ErrFieldExists = errors.New("formtree: field already exists")

// NewSchema creates a TypeScheme from a root definition. A nil registry
// yields an empty one; no groups yields MainGroup.
func NewSchema(s *cells.Sheet, values *Definition, types Registry, groups ...GroupDefinition) TypeScheme {
	if types == nil {
		types = Registry{}
	}
	if len(groups) == 0 {
		groups = []GroupDefinition{MainGroup}
	}
	return TypeScheme{
		Values: s.New(values).Named("values"),
		Types:  s.New(types).Named("types"),
		Groups: groups,
	}
}

// StaticTypes builds a Registry from definitions that do not depend on the
// node or the environment.
func StaticTypes(defs map[string]*Definition) Registry {
	reg := make(Registry, len(defs))
	for k, d := range defs {
		reg[k] = Static(d)
	}
	return reg
}

// ObjectDefinition builds an object definition labelled label.
func ObjectDefinition(label string, fields ...Field) *Definition {
	return &Definition{Label: label, Shape: Object{Fields: fields}}
}

// FieldOf declares a field with a static definition.
func FieldOf(name string, def *Definition) Field {
	return Field{Name: name, Type: Static(def)}
}

// Datatypes lists the first-level datatypes.
var Datatypes = []string{"string", "boolean", "date", "number", "array", "object", "enum", "dict"}

var fieldNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsFieldName reports whether name is a valid field name.
func IsFieldName(name string) bool { return fieldNameRE.MatchString(name) }

// ValueTypes lists base value types followed by the registry's names in
// sorted order.
func ValueTypes(reg Registry) []string {
	out := []string{"string", "number", "date", "boolean", "enum"}
	names := make([]string, 0, len(reg))
	for k := range reg {
		names = append(names, k)
	}
	sort.Strings(names)
	return append(out, names...)
}

// TypeLabel is a non-technical description of a datatype.
func TypeLabel(datatype string) string {
	switch datatype {
	case "object":
		return "field group"
	case "dict":
		return "dictionary"
	case "string":
		return "text"
	case "boolean":
		return "checkbox"
	case "enum":
		return "value list"
	}
	return datatype
}

// DatatypeOf returns the first-level datatype of def; named references
// report the type name.
func DatatypeOf(def *Definition) string {
	switch s := def.Shape.(type) {
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case Array:
		return "array"
	case Dict:
		return "dict"
	case Enum:
		return "enum"
	case Named:
		return s.Name
	case Any:
		return "any"
	}
	return "object"
}

// String renders the definition's type compactly, e.g. "{tags: string[]}".
func (d *Definition) String() string {
	if d == nil {
		return "type"
	}
	inner := func(f Factory) string {
		if f == nil {
			return "type"
		}
		def, err := f(nil, nil)
		if err != nil {
			return "type"
		}
		return def.String()
	}
	switch s := d.Shape.(type) {
	case Named:
		return strings.ToUpper(s.Name)
	case Array:
		return inner(s.Element) + "[]"
	case Dict:
		return "{key: " + inner(s.Value) + "}"
	case Object:
		parts := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			parts[i] = f.Name + ": " + inner(f.Type)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Enum:
		parts := make([]string, len(s.Options))
		for i, o := range s.Options {
			b, _ := json.Marshal(o)
			parts[i] = string(b)
		}
		return strings.Join(parts, "|")
	case Any:
		return "any"
	case String, Number, Boolean, Date:
		return DatatypeOf(d)
	}
	return "type"
}

// Target selects which part of a scheme DefineValue edits.
type Target int

const (
	TargetValues Target = iota
	TargetTypes
)

// DefineValue adds a simple field (to the root object) or a named type (to
// the registry). datatype is one of string, number, date, boolean, enum;
// options lists enum values.
func DefineValue(s *cells.Sheet, sc TypeScheme, target Target, name, label, datatype string, options ...string) error {
	var shape Shape
	switch datatype {
	case "string":
		shape = String{}
	case "number":
		shape = Number{}
	case "date":
		shape = Date{}
	case "boolean":
		shape = Boolean{}
	case "enum":
		shape = Enum{Options: options}
	default:
		return fmt.Errorf("formtree: unsupported datatype %q", datatype)
	}
	def := &Definition{Label: label, Shape: shape}

	if target == TargetTypes {
		v, err := s.Get(sc.Types)
		if err != nil {
			return err
		}
		reg, _ := v.(Registry)
		next := make(Registry, len(reg)+1)
		for k, f := range reg {
			if strings.EqualFold(k, name) {
				return fmt.Errorf("%w: %s", ErrFieldExists, name)
			}
			next[k] = f
		}
		next[name] = Static(def)
		return s.Set(sc.Types, next)
	}

	v, err := s.Get(sc.Values)
	if err != nil {
		return err
	}
	root, _ := v.(*Definition)
	if root == nil {
		return Fail(nil, CodeNotAnObject)
	}
	obj, ok := root.Shape.(Object)
	if !ok {
		return Fail(nil, CodeNotAnObject)
	}
	for _, f := range obj.Fields {
		if strings.EqualFold(f.Name, name) {
			return fmt.Errorf("%w: %s", ErrFieldExists, name)
		}
	}
	next := *root
	fields := append(append([]Field{}, obj.Fields...), FieldOf(name, def))
	next.Shape = Object{Fields: fields}
	return s.Set(sc.Values, &next)
}
