package cells

import "sort"

// Cellify converts a plain value into nested cells: maps become
// map[string]*Cell, slices become []*Cell, and every scalar gets its own cell.
// Existing cells are kept as-is. Map entries are created in key order.
func Cellify(s *Sheet, v any) *Cell {
	switch x := v.(type) {
	case *Cell:
		return x
	case map[string]any:
		m := make(map[string]*Cell, len(x))
		for _, k := range sortedKeys(x) {
			m[k] = Cellify(s, x[k])
		}
		return s.New(m)
	case []any:
		arr := make([]*Cell, len(x))
		for i, e := range x {
			arr[i] = Cellify(s, e)
		}
		return s.New(arr)
	default:
		return s.New(v)
	}
}

// Uncellify reads c and every nested cell back into a plain value.
func Uncellify(s *Sheet, c *Cell) (any, error) {
	v, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case map[string]*Cell:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ev, err := Uncellify(s, e)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []*Cell:
		out := make([]any, len(x))
		for i, e := range x {
			ev, err := Uncellify(s, e)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}
	return v, nil
}

// CollectDeep releases c together with the cells nested in its value.
func CollectDeep(s *Sheet, c *Cell) {
	if c == nil || c.collected {
		return
	}
	switch x := c.value.(type) {
	case map[string]*Cell:
		for _, k := range sortedKeys(x) {
			CollectDeep(s, x[k])
		}
	case []*Cell:
		for _, e := range x {
			CollectDeep(s, e)
		}
	}
	s.Collect(c)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
