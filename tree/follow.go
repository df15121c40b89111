package tree

import (
	"context"
	"fmt"
	"strconv"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// Follow settles the sheet and walks path from the root node. Array steps
// take an int (or a decimal string); dict and object steps take a string.
func (t *Tree) Follow(ctx context.Context, path formtree.Path) (*formtree.Node, error) {
	if err := t.sheet.Settle(ctx); err != nil {
		return nil, err
	}
	n, err := NodeOf(t.sheet, t.root)
	if err != nil {
		return nil, err
	}
	return Follow(t.sheet, n, path)
}

// Follow walks path from n. It fails with CodeKeyNotFound when a collection
// lacks a key and CodeLeafReached when path goes on past a leaf.
func Follow(s *cells.Sheet, n *formtree.Node, path formtree.Path) (*formtree.Node, error) {
	for i, key := range path {
		if n.Children == nil {
			return nil, formtree.Fail(n.Path, formtree.CodeLeafReached, "path", formtree.Path(path[i:]).String())
		}
		v, err := s.Get(n.Children.Cell())
		if err != nil {
			return nil, err
		}
		var c *cells.Cell
		switch x := v.(type) {
		case []*cells.Cell:
			if idx, ok := index(key); ok && idx >= 0 && idx < len(x) {
				c = x[idx]
			}
		case map[string]*cells.Cell:
			if k, ok := key.(string); ok {
				c = x[k]
			}
		}
		if c == nil {
			return nil, formtree.Fail(n.Path, formtree.CodeKeyNotFound, "key", fmt.Sprint(key))
		}
		if n, err = NodeOf(s, c); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func index(key formtree.Key) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case string:
		i, err := strconv.Atoi(k)
		return i, err == nil
	}
	return 0, false
}
