package formtree

import (
	"regexp"

	"github.com/reoring/formtree/cells"
)

// Environment resolves named bindings, for expression-typed strings.
type Environment interface {
	Value(name string) (any, bool)
}

// MapEnv is an Environment backed by a map.
type MapEnv map[string]any

func (m MapEnv) Value(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Factory produces a type definition for a position. node is nil when the
// definition is requested outside of a tree (previews, default values).
type Factory func(node *Node, env Environment) (*Definition, error)

// Static returns a Factory that always yields def.
func Static(def *Definition) Factory {
	return func(*Node, Environment) (*Definition, error) { return def, nil }
}

// Lens derives the presented cell from the stored one. options is the
// definition's Options.
type Lens func(s *cells.Sheet, stored *cells.Cell, options any) (*cells.Cell, error)

// Definition is a type definition: exactly one Shape plus shared metadata.
type Definition struct {
	Label    string
	Optional bool
	Hidden   bool
	// Default is an explicit default value, or a func() any producer.
	Default any
	// Validator returns a non-empty message when v is invalid.
	Validator func(v any) string
	Lens      Lens
	Options   any
	Group     string
	Rank      *int
	Shape     Shape
}

// Shape is the structural tag of a Definition.
type Shape interface{ shape() }

type (
	// Any is unconstrained.
	Any struct{}
	// Named refers to an entry of the type registry.
	Named struct{ Name string }
	// String is a string leaf.
	String struct {
		Pattern *regexp.Regexp
		Min     *int
		Max     *int
		// Address marks account addresses (0x-prefixed, tok:..., or network:0x...).
		Address bool
		// Binary marks 0x-prefixed hex strings.
		Binary bool
		// Expr marks expressions whose default comes from the environment.
		Expr bool
		// Loader marks values supplied out-of-band; they are never validated.
		Loader bool
		Long   bool
	}
	// Number is a numeric leaf.
	Number struct {
		Min  *float64
		Max  *float64
		Unit string
	}
	// Boolean is a boolean leaf.
	Boolean struct{}
	// Date is a timestamp leaf.
	Date struct{}
	// Enum is a choice among Options.
	Enum struct{ Options []string }
	// Array holds elements produced by Element.
	Array struct {
		Element Factory
		Unique  bool
		Min     *int
		Max     *int
	}
	// Dict maps arbitrary keys to values produced by Value.
	Dict struct {
		Value Factory
		// Keys restricts allowed keys when non-empty.
		Keys []string
	}
	// Object has a fixed, ordered set of named fields, each optional in data.
	Object struct{ Fields []Field }
)

func (Any) shape()     {}
func (Named) shape()   {}
func (String) shape()  {}
func (Number) shape()  {}
func (Boolean) shape() {}
func (Date) shape()    {}
func (Enum) shape()    {}
func (Array) shape()   {}
func (Dict) shape()    {}
func (Object) shape()  {}

// Field is one declared object field.
type Field struct {
	Name string
	Type Factory
}

// Lookup returns the factory of the named field.
func (o Object) Lookup(name string) (Factory, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// Kind classifies a definition's shape. Named definitions report KindLeaf
// until resolved.
func (d *Definition) Kind() Kind {
	if d == nil {
		return KindLeaf
	}
	switch d.Shape.(type) {
	case Array:
		return KindArray
	case Dict:
		return KindDict
	case Object:
		return KindObject
	}
	return KindLeaf
}

// NamedRef returns the referenced type name, if any.
func (d *Definition) NamedRef() (string, bool) {
	if d == nil {
		return "", false
	}
	n, ok := d.Shape.(Named)
	return n.Name, ok
}

// Pattern returns the string pattern, if any.
func (d *Definition) Pattern() *regexp.Regexp {
	if s, ok := d.Shape.(String); ok {
		return s.Pattern
	}
	return nil
}

// LengthBounds returns the length bounds of string and array definitions.
func (d *Definition) LengthBounds() (lo, hi *int) {
	switch s := d.Shape.(type) {
	case String:
		return s.Min, s.Max
	case Array:
		return s.Min, s.Max
	}
	return nil, nil
}

// HasMin reports a non-zero declared minimum (length or numeric).
func (d *Definition) HasMin() bool {
	switch s := d.Shape.(type) {
	case String:
		return s.Min != nil && *s.Min != 0
	case Array:
		return s.Min != nil && *s.Min != 0
	case Number:
		return s.Min != nil && *s.Min != 0
	}
	return false
}

// MinPositive reports a declared minimum above zero.
func (d *Definition) MinPositive() bool {
	switch s := d.Shape.(type) {
	case String:
		return s.Min != nil && *s.Min > 0
	case Array:
		return s.Min != nil && *s.Min > 0
	case Number:
		return s.Min != nil && *s.Min > 0
	}
	return false
}

// HasMax reports a declared maximum (length or numeric).
func (d *Definition) HasMax() bool {
	switch s := d.Shape.(type) {
	case String:
		return s.Max != nil
	case Array:
		return s.Max != nil
	case Number:
		return s.Max != nil
	}
	return false
}

// Registry maps type names to factories.
type Registry map[string]Factory

// GroupDefinition declares a display group.
type GroupDefinition struct {
	ID    string
	Label string
	// Collapsed groups are folded by default.
	Collapsed bool
}

// MiscGroupID is the catch-all group of fields without a declared group.
const MiscGroupID = ""

var (
	// MainGroup is the conventional primary group.
	MainGroup = GroupDefinition{ID: "main", Label: "Main"}
	// MiscGroup collects fields whose group is undeclared.
	MiscGroup = GroupDefinition{ID: MiscGroupID, Label: "Miscellaneous", Collapsed: true}
)

// TypeScheme bundles the root definition, the registry and display groups.
// Values holds a *Definition and Types holds a Registry.
type TypeScheme struct {
	Values *cells.Cell
	Types  *cells.Cell
	Groups []GroupDefinition
}

// Bound returns a pointer to n, for Min/Max fields.
func Bound(n int) *int { return &n }

// Limit returns a pointer to f, for numeric Min/Max fields.
func Limit(f float64) *float64 { return &f }
