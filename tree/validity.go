package tree

import (
	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// Validity derives the depth-first flattening of every node's validity
// under the root: a node's own result comes before its children's, children
// follow array order, sorted dict keys and declared object field order.
// Entries are nil for valid nodes. A node that failed to build contributes
// its construction error.
func (t *Tree) Validity() *cells.Cell {
	return t.sheet.Track(func(get cells.Getter, _ any) (any, error) {
		out := []error{}
		flatten(get, t.root, &out)
		return out, nil
	}).Named("validity")
}

// Valid derives whether every entry of Validity is nil.
func (t *Tree) Valid() *cells.Cell { return AllValid(t.sheet, t.Validity()) }

// AllValid derives whether every entry of a validity cell is nil.
func AllValid(s *cells.Sheet, validity *cells.Cell) *cells.Cell {
	return s.Derive([]*cells.Cell{validity}, func(in []any, _ any) (any, error) {
		errs, _ := in[0].([]error)
		for _, err := range errs {
			if err != nil {
				return false, nil
			}
		}
		return true, nil
	}).Named("valid")
}

func flatten(get cells.Getter, c *cells.Cell, out *[]error) {
	v, err := get(c)
	if err != nil {
		*out = append(*out, err)
		return
	}
	n, ok := v.(*formtree.Node)
	if !ok || n == nil {
		return
	}
	if n.Valid != nil {
		r, err := get(n.Valid)
		if err != nil {
			*out = append(*out, err)
		} else {
			e, _ := r.(error)
			*out = append(*out, e)
		}
	}
	if n.Children == nil {
		return
	}
	cv, err := get(n.Children.Cell())
	if err != nil {
		*out = append(*out, err)
		return
	}
	switch x := cv.(type) {
	case []*cells.Cell:
		for _, child := range x {
			flatten(get, child, out)
		}
	case map[string]*cells.Cell:
		var order []string
		if oc, ok := n.Children.(formtree.ObjectChildren); ok {
			order = oc.Order
		}
		for _, k := range fieldOrder(order, x) {
			flatten(get, x[k], out)
		}
	}
}
