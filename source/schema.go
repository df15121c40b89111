package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// Schema is a type scheme read from YAML:
//
//	groups:
//	  - {id: main, label: Main}
//	  - {id: adv, label: Advanced, collapsed: true}
//	types:
//	  Owner: {type: string, address: true}
//	values:
//	  type: object
//	  fields:
//	    name: {type: string, pattern: "^[a-z]+$", group: main}
//	    owner: Owner
//	    tags: {type: array, items: string, min: 1}
//
// A definition is either a mapping or a scalar type name. Names other than
// the built-in datatypes refer to the registry. Object fields keep their
// order of appearance.
type Schema struct {
	Values *formtree.Definition
	Types  map[string]*formtree.Definition
	Groups []formtree.GroupDefinition
}

// Bind creates the TypeScheme cells for the schema.
func (sc Schema) Bind(s *cells.Sheet) formtree.TypeScheme {
	return formtree.NewSchema(s, sc.Values, formtree.StaticTypes(sc.Types), sc.Groups...)
}

// Apply writes the schema's registry and root definition into an existing
// TypeScheme. Trees built on ts pick up registry changes in place; groups are
// fixed when a tree is built.
func (sc Schema) Apply(s *cells.Sheet, ts formtree.TypeScheme) error {
	if err := s.Set(ts.Types, formtree.StaticTypes(sc.Types)); err != nil {
		return err
	}
	return s.Set(ts.Values, sc.Values)
}

// SyntaxError reports a malformed schema entry with its position.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("schema %d:%d: %s", e.Line, e.Column, e.Msg)
}

// DuplicateKeyError reports a key repeated within one YAML mapping, with both
// positions.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// LoadSchema reads a schema file.
func LoadSchema(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return Schema{}, err
	}
	defer f.Close()
	return ParseSchema(f)
}

// ParseSchema reads the first YAML document of r as a schema.
func ParseSchema(r io.Reader) (Schema, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Schema{}, errors.New("source: empty schema")
		}
		return Schema{}, fmt.Errorf("source: %w", err)
	}
	if len(doc.Content) == 0 {
		return Schema{}, errors.New("source: empty schema")
	}
	top := doc.Content[0]
	entries, err := mapping(top)
	if err != nil {
		return Schema{}, err
	}

	sc := Schema{Types: map[string]*formtree.Definition{}}
	var values *yaml.Node
	for _, e := range entries {
		switch e.key.Value {
		case "groups":
			if sc.Groups, err = groups(e.value); err != nil {
				return Schema{}, err
			}
		case "types":
			named, err := mapping(e.value)
			if err != nil {
				return Schema{}, err
			}
			for _, t := range named {
				def, err := definition(t.value)
				if err != nil {
					return Schema{}, err
				}
				sc.Types[t.key.Value] = def
			}
		case "values":
			values = e.value
		default:
			return Schema{}, syntaxErr(e.key, "unknown top-level key %q", e.key.Value)
		}
	}
	if values == nil {
		return Schema{}, syntaxErr(top, "missing values")
	}
	if sc.Values, err = definition(values); err != nil {
		return Schema{}, err
	}
	return sc, nil
}

type entry struct{ key, value *yaml.Node }

// mapping returns the key/value pairs of n in document order, rejecting
// duplicate keys.
func mapping(n *yaml.Node) ([]entry, error) {
	if n.Kind != yaml.MappingNode {
		return nil, syntaxErr(n, "mapping expected")
	}
	out := make([]entry, 0, len(n.Content)/2)
	first := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if prev, dup := first[k.Value]; dup {
			return nil, &DuplicateKeyError{Key: k.Value, FirstLine: prev.Line, FirstCol: prev.Column, Line: k.Line, Col: k.Column}
		}
		first[k.Value] = k
		out = append(out, entry{key: k, value: n.Content[i+1]})
	}
	return out, nil
}

func groups(n *yaml.Node) ([]formtree.GroupDefinition, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, syntaxErr(n, "groups must be a list")
	}
	out := make([]formtree.GroupDefinition, 0, len(n.Content))
	for _, item := range n.Content {
		entries, err := mapping(item)
		if err != nil {
			return nil, err
		}
		var g formtree.GroupDefinition
		for _, e := range entries {
			switch e.key.Value {
			case "id":
				g.ID = e.value.Value
			case "label":
				g.Label = e.value.Value
			case "collapsed":
				if g.Collapsed, err = boolean(e.value); err != nil {
					return nil, err
				}
			default:
				return nil, syntaxErr(e.key, "unknown group key %q", e.key.Value)
			}
		}
		out = append(out, g)
	}
	return out, nil
}

// draft accumulates the keys of one definition before its shape is known.
type draft struct {
	node    *yaml.Node
	def     formtree.Definition
	typ     string
	pattern *regexp.Regexp
	min     *float64
	max     *float64
	unit    string
	unique  bool
	options []string
	flags   map[string]bool
	items   *yaml.Node
	values  *yaml.Node
	keys    []string
	fields  []entry
}

func definition(n *yaml.Node) (*formtree.Definition, error) {
	if n.Kind == yaml.ScalarNode {
		return &formtree.Definition{Shape: builtin(n.Value)}, nil
	}
	entries, err := mapping(n)
	if err != nil {
		return nil, err
	}
	sp := &draft{node: n, flags: map[string]bool{}}
	for _, e := range entries {
		if err := sp.set(e); err != nil {
			return nil, err
		}
	}
	return sp.build()
}

func (sp *draft) set(e entry) error {
	var err error
	v := e.value
	switch e.key.Value {
	case "type":
		sp.typ = v.Value
	case "label":
		sp.def.Label = v.Value
	case "optional":
		sp.def.Optional, err = boolean(v)
	case "hidden":
		sp.def.Hidden, err = boolean(v)
	case "group":
		sp.def.Group = v.Value
	case "rank":
		var r int
		if r, err = integer(v); err == nil {
			sp.def.Rank = &r
		}
	case "default":
		sp.def.Default, err = plain(v)
	case "pattern":
		if sp.pattern, err = regexp.Compile(v.Value); err != nil {
			return syntaxErr(v, "pattern: %v", err)
		}
	case "min":
		sp.min, err = number(v)
	case "max":
		sp.max, err = number(v)
	case "unit":
		sp.unit = v.Value
	case "unique":
		sp.unique, err = boolean(v)
	case "address", "binary", "expr", "loader", "long":
		sp.flags[e.key.Value], err = boolean(v)
	case "options":
		sp.options, err = list(v)
	case "keys":
		sp.keys, err = list(v)
	case "items":
		sp.items = v
	case "values":
		sp.values = v
	case "fields":
		sp.fields, err = mapping(v)
	default:
		return syntaxErr(e.key, "unknown key %q", e.key.Value)
	}
	return err
}

func (sp *draft) build() (*formtree.Definition, error) {
	def := sp.def
	switch sp.typ {
	case "string", "":
		if sp.typ == "" && (sp.fields != nil || sp.items != nil || sp.values != nil) {
			return nil, syntaxErr(sp.node, "missing type")
		}
		def.Shape = formtree.String{
			Pattern: sp.pattern,
			Min:     bound(sp.min),
			Max:     bound(sp.max),
			Address: sp.flags["address"],
			Binary:  sp.flags["binary"],
			Expr:    sp.flags["expr"],
			Loader:  sp.flags["loader"],
			Long:    sp.flags["long"],
		}
	case "number":
		def.Shape = formtree.Number{Min: sp.min, Max: sp.max, Unit: sp.unit}
	case "boolean":
		def.Shape = formtree.Boolean{}
	case "date":
		def.Shape = formtree.Date{}
	case "any":
		def.Shape = formtree.Any{}
	case "enum":
		def.Shape = formtree.Enum{Options: sp.options}
	case "array":
		if sp.items == nil {
			return nil, syntaxErr(sp.node, "array without items")
		}
		el, err := definition(sp.items)
		if err != nil {
			return nil, err
		}
		def.Shape = formtree.Array{Element: formtree.Static(el), Unique: sp.unique, Min: bound(sp.min), Max: bound(sp.max)}
	case "dict":
		if sp.values == nil {
			return nil, syntaxErr(sp.node, "dict without values")
		}
		val, err := definition(sp.values)
		if err != nil {
			return nil, err
		}
		def.Shape = formtree.Dict{Value: formtree.Static(val), Keys: sp.keys}
	case "object":
		fields := make([]formtree.Field, 0, len(sp.fields))
		for _, f := range sp.fields {
			fd, err := definition(f.value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, formtree.FieldOf(f.key.Value, fd))
		}
		def.Shape = formtree.Object{Fields: fields}
	default:
		def.Shape = formtree.Named{Name: sp.typ}
	}
	return &def, nil
}

// builtin maps a scalar type name to its shape; other names refer to the
// registry.
func builtin(name string) formtree.Shape {
	switch name {
	case "string":
		return formtree.String{}
	case "number":
		return formtree.Number{}
	case "boolean":
		return formtree.Boolean{}
	case "date":
		return formtree.Date{}
	case "any":
		return formtree.Any{}
	}
	return formtree.Named{Name: name}
}

func bound(f *float64) *int {
	if f == nil {
		return nil
	}
	return formtree.Bound(int(*f))
}

func boolean(n *yaml.Node) (bool, error) {
	var b bool
	if n.Kind != yaml.ScalarNode || n.Decode(&b) != nil {
		return false, syntaxErr(n, "boolean expected, got %q", n.Value)
	}
	return b, nil
}

func integer(n *yaml.Node) (int, error) {
	i, err := strconv.Atoi(n.Value)
	if n.Kind != yaml.ScalarNode || err != nil {
		return 0, syntaxErr(n, "integer expected, got %q", n.Value)
	}
	return i, nil
}

func number(n *yaml.Node) (*float64, error) {
	var f float64
	if n.Kind != yaml.ScalarNode || n.Decode(&f) != nil {
		return nil, syntaxErr(n, "number expected, got %q", n.Value)
	}
	return &f, nil
}

func list(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, syntaxErr(n, "list expected")
	}
	out := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			return nil, syntaxErr(c, "string expected")
		}
		out = append(out, c.Value)
	}
	return out, nil
}

// plain converts a YAML value into the JSON-like values held by data cells:
// map[string]any, []any, string, bool, float64 or nil.
func plain(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		entries, err := mapping(n)
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(entries))
		for _, e := range entries {
			v, err := plain(e.value)
			if err != nil {
				return nil, err
			}
			m[e.key.Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := plain(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.AliasNode:
		return plain(n.Alias)
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return nil, nil
		case "!!bool":
			return boolean(n)
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, syntaxErr(n, "number: %v", err)
			}
			return f, nil
		}
		return n.Value, nil
	}
	return nil, syntaxErr(n, "unsupported value")
}

func syntaxErr(n *yaml.Node, format string, args ...any) error {
	return &SyntaxError{Line: n.Line, Column: n.Column, Msg: fmt.Sprintf(format, args...)}
}
