package tree

import (
	"sort"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
)

// Group is one display group of an object node's fields. Populated fields
// hold a value; Unpopulated ones are placeholders.
type Group struct {
	Definition  formtree.GroupDefinition
	Populated   []*formtree.Node
	Unpopulated []*formtree.Node
}

// Groups returns the display groups known to the tree, the catch-all group
// last.
func (t *Tree) Groups() []formtree.GroupDefinition {
	return append([]formtree.GroupDefinition(nil), t.groups...)
}

// GroupsOf derives the partition of an object node's fields into display
// groups. The cell holds []Group in declared group order; a field whose
// group is unknown lands in the catch-all group and empty groups are left
// out. Within a group, fields keep the object's field order.
func (t *Tree) GroupsOf(n *formtree.Node) (*cells.Cell, error) {
	oc, ok := n.Children.(formtree.ObjectChildren)
	if !ok {
		return nil, formtree.Fail(n.Path, formtree.CodeNotAnObject)
	}
	return t.sheet.Track(func(get cells.Getter, _ any) (any, error) {
		v, err := get(oc.Fields)
		if err != nil {
			return nil, err
		}
		fields, _ := v.(map[string]*cells.Cell)
		buckets := make([][]*formtree.Node, len(t.groups))
		misc := t.index[formtree.MiscGroupID]
		for _, key := range fieldOrder(oc.Order, fields) {
			fv, err := get(fields[key])
			if err != nil {
				return nil, err
			}
			field, ok := fv.(*formtree.Node)
			if !ok || field == nil {
				continue
			}
			i, known := t.index[field.Group]
			if !known {
				i = misc
			}
			buckets[i] = append(buckets[i], field)
		}
		out := make([]Group, 0, len(t.groups))
		for i, nodes := range buckets {
			if len(nodes) == 0 {
				continue
			}
			g := Group{Definition: t.groups[i]}
			for _, f := range nodes {
				if f.Undefined {
					g.Unpopulated = append(g.Unpopulated, f)
				} else {
					g.Populated = append(g.Populated, f)
				}
			}
			out = append(out, g)
		}
		return out, nil
	}).Named("groups:" + n.Path.Pointer()), nil
}

// groupsIndex appends the catch-all group to the declared ones, unless
// declared already, and indexes them by id.
func groupsIndex(declared []formtree.GroupDefinition) ([]formtree.GroupDefinition, map[string]int) {
	groups := make([]formtree.GroupDefinition, 0, len(declared)+1)
	index := make(map[string]int, len(declared)+1)
	for _, g := range declared {
		if _, dup := index[g.ID]; dup {
			continue
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if _, ok := index[formtree.MiscGroupID]; !ok {
		index[formtree.MiscGroupID] = len(groups)
		groups = append(groups, formtree.MiscGroup)
	}
	return groups, index
}

// fieldOrder lists declared fields present in m, then the others sorted.
func fieldOrder(declared []string, m map[string]*cells.Cell) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(declared))
	for _, k := range declared {
		if _, ok := m[k]; ok {
			out = append(out, k)
			seen[k] = struct{}{}
		}
	}
	for _, k := range sortedKeys(m) {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
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
