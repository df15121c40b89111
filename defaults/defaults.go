// Package defaults generates schema-conformant empty values for type
// definitions.
package defaults

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/resolve"
	"github.com/reoring/formtree/validity"
)

// Options tunes generation.
type Options struct {
	// Deep is set for nested values: optional definitions then yield nil.
	Deep bool
	// OneElementInArray makes arrays start with one default element.
	OneElementInArray bool
	// SkipNestedObject makes objects start empty.
	SkipNestedObject bool
	// Env and Key resolve defaults of expression-typed strings.
	Env formtree.Environment
	Key string
	// Now stamps date defaults; defaults to time.Now.
	Now func() time.Time
}

// Value returns the default value of def as plain data (maps, slices,
// scalars). It never creates cells.
func Value(reg formtree.Registry, def *formtree.Definition, opts Options) (any, error) {
	if def == nil {
		return nil, fmt.Errorf("defaults: nil definition")
	}
	if def.Default != nil {
		v := def.Default
		if f, ok := v.(func() any); ok {
			v = f()
		}
		if s, ok := def.Shape.(formtree.String); ok && s.Address {
			if str, ok := v.(string); ok {
				return formatAddress(str), nil
			}
		}
		return v, nil
	}
	if opts.Deep && def.Optional {
		return nil, nil
	}
	switch s := def.Shape.(type) {
	case formtree.Named:
		target, err := resolveNamed(reg, def, opts.Env)
		if err != nil {
			return nil, err
		}
		inner := opts
		return Value(reg, target, inner)
	case formtree.Array:
		if s.Element == nil {
			return []any{}, nil
		}
		elem, err := s.Element(nil, opts.Env)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, fmt.Errorf("defaults: nil element definition")
		}
		preview, err := resolveNamed(reg, elem, opts.Env)
		if err != nil {
			return nil, err
		}
		if !opts.OneElementInArray && !preview.MinPositive() && !(s.Min != nil && *s.Min > 0) {
			return []any{}, nil
		}
		inner := opts
		inner.Deep = true
		v, err := Value(reg, elem, inner)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	case formtree.Dict:
		return map[string]any{}, nil
	case formtree.Object:
		out := map[string]any{}
		if opts.SkipNestedObject {
			return out, nil
		}
		for _, f := range s.Fields {
			local, err := f.Type(nil, opts.Env)
			if err != nil {
				return nil, fmt.Errorf("defaults: field %q: %w", f.Name, err)
			}
			fd, err := resolveNamed(reg, local, opts.Env)
			if err != nil {
				return nil, err
			}
			inner := opts
			inner.Deep = true
			inner.Key = f.Name
			v, err := Value(reg, fd, inner)
			if err != nil {
				return nil, err
			}
			if v != nil {
				out[f.Name] = v
			}
		}
		return out, nil
	case formtree.Enum:
		if len(s.Options) > 0 {
			return s.Options[0], nil
		}
		return "", nil
	case formtree.String:
		switch {
		case s.Binary:
			return "0x", nil
		case s.Expr:
			if opts.Env != nil && opts.Key != "" {
				if v, ok := opts.Env.Value(opts.Key); ok && v != nil {
					return FromValue(v)
				}
			}
		}
		return "", nil
	case formtree.Boolean:
		return false, nil
	case formtree.Date:
		if opts.Now != nil {
			return opts.Now(), nil
		}
		return time.Now(), nil
	case formtree.Number:
		if s.Min != nil {
			return *s.Min, nil
		}
		return 0.0, nil
	}
	// Any, or no shape at all
	return "", nil
}

// Cell derives a default value from a definition cell (holding a
// *Definition) and the registry cell. With cellify, the value is converted to
// nested cells owned by the caller.
func Cell(s *cells.Sheet, types, def *cells.Cell, opts Options, cellify bool) *cells.Cell {
	return s.Derive([]*cells.Cell{types, def}, func(in []any, _ any) (any, error) {
		reg, _ := in[0].(formtree.Registry)
		d, _ := in[1].(*formtree.Definition)
		v, err := Value(reg, d, opts)
		if err != nil || !cellify {
			return v, err
		}
		return cells.Cellify(s, v), nil
	})
}

// FromValue renders an environment binding as an expression literal: strings
// are JSON-quoted, big integers and numbers are printed as-is.
func FromValue(v any) (string, error) {
	switch x := v.(type) {
	case string:
		b, err := json.Marshal(x)
		return string(b), err
	case *big.Int:
		return x.String(), nil
	case *big.Rat:
		return x.RatString(), nil
	case func():
		return "", fmt.Errorf("defaults: cannot render a function")
	case fmt.Stringer:
		return x.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func resolveNamed(reg formtree.Registry, def *formtree.Definition, env formtree.Environment) (*formtree.Definition, error) {
	if _, ok := def.NamedRef(); !ok {
		return def, nil
	}
	return resolve.Named(reg, def, nil, env)
}

func formatAddress(s string) string {
	if validity.IsAddress(s) {
		return strings.ToLower(s)
	}
	return s
}
