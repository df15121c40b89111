// Package resolve turns named type references into concrete definitions,
// either once (Preview) or as cells that follow registry updates (Resolve).
package resolve

import (
	"fmt"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// maxDepth bounds chains of named references (a -> b -> ...).
const maxDepth = 32

// Resolver resolves definitions against the registry held in a cell.
type Resolver struct {
	sheet *cells.Sheet
	types *cells.Cell
	env   formtree.Environment
}

// New returns a Resolver reading the Registry held by types.
func New(s *cells.Sheet, types *cells.Cell, env formtree.Environment) *Resolver {
	return &Resolver{sheet: s, types: types, env: env}
}

// Registry returns the current registry.
func (r *Resolver) Registry() (formtree.Registry, error) {
	v, err := r.sheet.Get(r.types)
	if err != nil {
		return nil, err
	}
	reg, _ := v.(formtree.Registry)
	return reg, nil
}

// Preview resolves def with a one-shot registry lookup. The result does not
// follow later registry updates.
func (r *Resolver) Preview(def *formtree.Definition, node *formtree.Node) (*formtree.Definition, error) {
	if _, ok := def.NamedRef(); !ok {
		return def, nil
	}
	reg, err := r.Registry()
	if err != nil {
		return nil, err
	}
	return Named(reg, def, node, r.env)
}

// Resolve derives a cell holding src's definition (a *Definition) resolved
// against the registry. It recomputes when src or the registry changes.
func (r *Resolver) Resolve(src *cells.Cell, node *formtree.Node) *cells.Cell {
	return r.sheet.Derive([]*cells.Cell{src, r.types}, func(in []any, _ any) (any, error) {
		def, _ := in[0].(*formtree.Definition)
		reg, _ := in[1].(formtree.Registry)
		return Named(reg, def, node, r.env)
	})
}

// ResolveDef is Resolve for a definition that does not live in a cell. A
// non-empty label overrides the resolved label.
func (r *Resolver) ResolveDef(def *formtree.Definition, node *formtree.Node, label string) *cells.Cell {
	return r.sheet.Derive([]*cells.Cell{r.types}, func(in []any, _ any) (any, error) {
		reg, _ := in[0].(formtree.Registry)
		out, err := Named(reg, def, node, r.env)
		if err != nil || label == "" || out.Label == label {
			return out, err
		}
		cp := *out
		cp.Label = label
		return &cp, nil
	})
}

// Named follows def's named reference chain in reg, merging metadata at each
// step. Non-named definitions are returned unchanged.
func Named(reg formtree.Registry, def *formtree.Definition, node *formtree.Node, env formtree.Environment) (*formtree.Definition, error) {
	if def == nil {
		return nil, fmt.Errorf("resolve: nil definition")
	}
	var path formtree.Path
	if node != nil {
		path = node.Path
	}
	return named(reg, def, node, env, path, 0)
}

func named(reg formtree.Registry, def *formtree.Definition, node *formtree.Node, env formtree.Environment, path formtree.Path, depth int) (*formtree.Definition, error) {
	name, ok := def.NamedRef()
	if !ok {
		return def, nil
	}
	if depth >= maxDepth {
		return nil, formtree.Fail(path, formtree.CodeUnknownType, "name", name+" (reference chain too deep)")
	}
	f, ok := reg[name]
	if !ok || f == nil {
		return nil, formtree.UnknownType(path, name)
	}
	target, err := f(node, env)
	if err != nil {
		return nil, fmt.Errorf("resolve: type %q: %w", name, err)
	}
	if target == nil {
		return nil, formtree.UnknownType(path, name)
	}
	target, err = named(reg, target, node, env, path, depth+1)
	if err != nil {
		return nil, err
	}
	return Merge(def, target), nil
}

// Merge keeps named's structure and takes Group, Label, Options and Optional
// from local when set there.
func Merge(local, named *formtree.Definition) *formtree.Definition {
	out := *named
	if local.Group != "" {
		out.Group = local.Group
	}
	if local.Label != "" {
		out.Label = local.Label
	}
	if local.Options != nil {
		out.Options = local.Options
	}
	if local.Optional {
		out.Optional = true
	}
	return &out
}
