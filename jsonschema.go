package formtree

import (
	"sort"

	js "github.com/reoring/formtree/jsonschema"
)

// JSONSchema projects def into a JSON Schema. Named references become
// "#/$defs/<name>" refs, and every type reachable from def is emitted once
// under $defs. Factories are called without a node or environment.
func JSONSchema(def *Definition, reg Registry) (*js.Schema, error) {
	p := &projector{reg: reg, defs: map[string]*js.Schema{}}
	out, err := p.project(def, nil)
	if err != nil {
		return nil, err
	}
	if len(p.defs) > 0 {
		out.Defs = p.defs
	}
	return out, nil
}

type projector struct {
	reg  Registry
	defs map[string]*js.Schema
}

func (p *projector) factory(f Factory, at Path) (*js.Schema, error) {
	if f == nil {
		return &js.Schema{}, nil
	}
	def, err := f(nil, nil)
	if err != nil {
		return nil, err
	}
	return p.project(def, at)
}

func (p *projector) project(def *Definition, at Path) (*js.Schema, error) {
	if def == nil {
		return &js.Schema{}, nil
	}
	out := &js.Schema{Title: def.Label}
	if def.Default != nil {
		if _, producer := def.Default.(func() any); !producer {
			out.Default = def.Default
		}
	}
	switch s := def.Shape.(type) {
	case Named:
		if err := p.named(s.Name, at); err != nil {
			return nil, err
		}
		out.Ref = "#/$defs/" + s.Name
	case String:
		out.Type = "string"
		out.MinLength, out.MaxLength = s.Min, s.Max
		switch {
		case s.Pattern != nil:
			out.Pattern = s.Pattern.String()
		case s.Binary:
			out.Pattern = "^0x([0-9a-fA-F]{2})*$"
		}
	case Number:
		out.Type = "number"
		out.Minimum, out.Maximum = s.Min, s.Max
	case Boolean:
		out.Type = "boolean"
	case Date:
		out.Type = "string"
		out.Format = "date-time"
	case Enum:
		out.Type = "string"
		out.Enum = make([]any, len(s.Options))
		for i, o := range s.Options {
			out.Enum[i] = o
		}
	case Array:
		out.Type = "array"
		out.MinItems, out.MaxItems = s.Min, s.Max
		out.UniqueItems = s.Unique
		items, err := p.factory(s.Element, at.Index(0))
		if err != nil {
			return nil, err
		}
		out.Items = items
	case Dict:
		out.Type = "object"
		values, err := p.factory(s.Value, at.Field("*"))
		if err != nil {
			return nil, err
		}
		out.AdditionalProperties = values
		if len(s.Keys) > 0 {
			keys := append([]string(nil), s.Keys...)
			sort.Strings(keys)
			names := &js.Schema{Type: "string", Enum: make([]any, len(keys))}
			for i, k := range keys {
				names.Enum[i] = k
			}
			out.PropertyNames = names
		}
	case Object:
		out.Type = "object"
		out.AdditionalProperties = false
		out.Properties = make(map[string]*js.Schema, len(s.Fields))
		for _, f := range s.Fields {
			fs, err := p.factory(f.Type, at.Field(f.Name))
			if err != nil {
				return nil, err
			}
			out.Properties[f.Name] = fs
			if f.Type == nil {
				continue
			}
			if fd, err := f.Type(nil, nil); err == nil && fd != nil && !fd.Optional {
				out.Required = append(out.Required, f.Name)
			}
		}
	}
	return out, nil
}

// named emits the $defs entry of a registry type. The entry is reserved
// before projecting so recursive types terminate.
func (p *projector) named(name string, at Path) error {
	if _, done := p.defs[name]; done {
		return nil
	}
	f, ok := p.reg[name]
	if !ok {
		return UnknownType(at, name)
	}
	p.defs[name] = &js.Schema{}
	s, err := p.factory(f, at)
	if err != nil {
		return err
	}
	p.defs[name] = s
	return nil
}
