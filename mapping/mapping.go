// Package mapping reconciles collections of cells with collections of derived
// cells, reusing a previous derived entry whenever the cell it was built from
// is still in place. Reuse is decided by cell identity, never by value.
package mapping

import (
	"errors"
	"fmt"
	"sort"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// ErrMissingKey is returned when an entry can be produced from neither side.
var ErrMissingKey = errors.New("mapping: missing key")

// missingKey reports k with the missing_key code; errors.Is still matches
// ErrMissingKey.
func missingKey(k string) error {
	err := formtree.Fail(formtree.Path{k}, formtree.CodeMissingKey, "key", k)
	err.Cause = ErrMissingKey
	return err
}

// Options tunes a mapping.
type Options struct {
	// Name is set on the mapping cell for debugging.
	Name string
	// OnRemove receives the last value of every entry that is dropped, before
	// the entry's cell is collected.
	OnRemove func(v any)
	// OnReuse is called for every entry carried over from the previous round,
	// with its new position (int for arrays, string for maps).
	OnReuse func(key any, c *cells.Cell)
}

// release hands unused previous entries to OnRemove, then collects them.
func (o Options) release(s *cells.Sheet, unused []*cells.Cell) {
	for _, c := range unused {
		if o.OnRemove != nil {
			v, _ := s.Peek(c)
			o.OnRemove(v)
		}
		s.Collect(c)
	}
}

func (o Options) reused(key any, c *cells.Cell) {
	if o.OnReuse != nil {
		o.OnReuse(key, c)
	}
}

func (o Options) named(c *cells.Cell) *cells.Cell {
	if o.Name != "" {
		c.Named(o.Name)
	}
	return c
}

// Array maps every element cell of arr ([]*cells.Cell) to a cell computed once
// by fn. The result holds []*cells.Cell in element order.
func Array(s *cells.Sheet, arr *cells.Cell, fn func(i int, el *cells.Cell) (any, error), opts ...Options) *cells.Cell {
	o := last(opts)
	return o.named(s.Derive([]*cells.Cell{arr}, func(in []any, prev any) (any, error) {
		els, err := asArray(in[0])
		if err != nil {
			return nil, err
		}
		before, _ := prev.([]*cells.Cell)
		byDep := make(map[*cells.Cell]*cells.Cell, len(before))
		for _, m := range before {
			if d := m.Dep(); d != nil && !m.Collected() {
				if _, dup := byDep[d]; !dup {
					byDep[d] = m
				}
			}
		}
		out := make([]*cells.Cell, len(els))
		for i, el := range els {
			if m, ok := byDep[el]; ok {
				delete(byDep, el)
				out[i] = m
				o.reused(i, m)
				continue
			}
			out[i] = once(s, el, func() (any, error) { return fn(i, el) })
		}
		o.release(s, unusedOf(before, out))
		return out, nil
	}))
}

// Object maps every entry of obj (map[string]*cells.Cell) to a cell computed
// once by fn. Entries are built in key order.
func Object(s *cells.Sheet, obj *cells.Cell, fn func(key string, el *cells.Cell) (any, error), opts ...Options) *cells.Cell {
	o := last(opts)
	return o.named(s.Derive([]*cells.Cell{obj}, func(in []any, prev any) (any, error) {
		m, err := asMap(in[0])
		if err != nil {
			return nil, err
		}
		before, _ := prev.(map[string]*cells.Cell)
		out := make(map[string]*cells.Cell, len(m))
		for _, k := range sortedKeys(m) {
			el := m[k]
			if p, ok := before[k]; ok && !p.Collected() && p.Dep() == el {
				out[k] = p
				o.reused(k, p)
				continue
			}
			out[k] = once(s, el, func() (any, error) { return fn(k, el) })
		}
		o.release(s, unusedOf(values(before), values(out)))
		return out, nil
	}))
}

// Decl is one declared entry of a Fields mapping.
type Decl[A any] struct {
	Key   string
	Value A
}

// FieldsOptions extends Options for Fields.
type FieldsOptions struct {
	Options
	// SkipUndeclared ignores data keys without a declaration.
	SkipUndeclared bool
}

// Fields aligns declared entries with the entries present in obj
// (map[string]*cells.Cell). For each key, fn receives the declaration (ok
// false when undeclared) and the present cell (nil when absent) and returns
// the cell to publish for that key. A previous entry is reused when the cell
// it depends on is unchanged, absent included.
//
// Declared keys come first in declaration order, then undeclared keys in
// sorted order.
func Fields[A any](s *cells.Sheet, decl []Decl[A], obj *cells.Cell, fn func(key string, a A, declared bool, el *cells.Cell) *cells.Cell, opts ...FieldsOptions) *cells.Cell {
	var o FieldsOptions
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	byKey := make(map[string]A, len(decl))
	for _, d := range decl {
		byKey[d.Key] = d.Value
	}
	return o.named(s.Derive([]*cells.Cell{obj}, func(in []any, prev any) (any, error) {
		m, err := asMap(in[0])
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(decl)+len(m))
		for _, d := range decl {
			keys = append(keys, d.Key)
		}
		for _, k := range sortedKeys(m) {
			if _, ok := byKey[k]; !ok {
				if o.SkipUndeclared {
					continue
				}
				keys = append(keys, k)
			}
		}
		before, _ := prev.(map[string]*cells.Cell)
		out := make(map[string]*cells.Cell, len(keys))
		for _, k := range keys {
			a, declared := byKey[k]
			el := m[k]
			if !declared && el == nil {
				return nil, missingKey(k)
			}
			if p, ok := before[k]; ok && !p.Collected() && p.Dep() == el {
				out[k] = p
				o.reused(k, p)
				continue
			}
			out[k] = fn(k, a, declared, el)
		}
		o.release(s, unusedOf(values(before), values(out)))
		return out, nil
	}))
}

// PairOptions extends Options for Pair.
type PairOptions struct {
	Options
	// SkipMissingA drops keys absent from the first map.
	SkipMissingA bool
	// SkipMissingB drops keys absent from the second map.
	SkipMissingB bool
}

// Pair maps the union of keys of two cell maps. fn receives nil for the side
// where a key is missing. An entry is reused while both of its input cells
// are unchanged.
func Pair(s *cells.Sheet, a, b *cells.Cell, fn func(key string, ea, eb *cells.Cell) *cells.Cell, opts ...PairOptions) *cells.Cell {
	var o PairOptions
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	inputs := map[string][2]*cells.Cell{}
	return o.named(s.Derive([]*cells.Cell{a, b}, func(in []any, prev any) (any, error) {
		ma, err := asMap(in[0])
		if err != nil {
			return nil, err
		}
		mb, err := asMap(in[1])
		if err != nil {
			return nil, err
		}
		union := map[string]struct{}{}
		for k := range ma {
			union[k] = struct{}{}
		}
		for k := range mb {
			union[k] = struct{}{}
		}
		before, _ := prev.(map[string]*cells.Cell)
		out := make(map[string]*cells.Cell, len(union))
		seen := make(map[string][2]*cells.Cell, len(union))
		for _, k := range sortedKeys(union) {
			ea, eb := ma[k], mb[k]
			if (ea == nil && o.SkipMissingA) || (eb == nil && o.SkipMissingB) {
				continue
			}
			if ea == nil && eb == nil {
				return nil, missingKey(k)
			}
			seen[k] = [2]*cells.Cell{ea, eb}
			if p, ok := before[k]; ok && !p.Collected() && inputs[k] == seen[k] {
				out[k] = p
				o.reused(k, p)
				continue
			}
			out[k] = fn(k, ea, eb)
		}
		inputs = seen
		o.release(s, unusedOf(values(before), values(out)))
		return out, nil
	}))
}

// once derives a cell from el that runs build a single time; later changes of
// el keep the first result.
func once(s *cells.Sheet, el *cells.Cell, build func() (any, error)) *cells.Cell {
	return s.Derive([]*cells.Cell{el}, func(_ []any, prev any) (any, error) {
		if prev != nil {
			return prev, nil
		}
		return build()
	})
}

func last(opts []Options) Options {
	if len(opts) == 0 {
		return Options{}
	}
	return opts[len(opts)-1]
}

func asArray(v any) ([]*cells.Cell, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []*cells.Cell:
		return x, nil
	}
	return nil, fmt.Errorf("mapping: expected []*cells.Cell, got %T", v)
}

func asMap(v any) (map[string]*cells.Cell, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]*cells.Cell:
		return x, nil
	}
	return nil, fmt.Errorf("mapping: expected map[string]*cells.Cell, got %T", v)
}

// unusedOf lists the cells of before that are not in after, keeping order.
func unusedOf(before, after []*cells.Cell) []*cells.Cell {
	kept := make(map[*cells.Cell]struct{}, len(after))
	for _, c := range after {
		kept[c] = struct{}{}
	}
	var out []*cells.Cell
	for _, c := range before {
		if _, ok := kept[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func values(m map[string]*cells.Cell) []*cells.Cell {
	out := make([]*cells.Cell, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
