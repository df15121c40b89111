// Package tree maintains the editor tree of a cellified document: one
// *formtree.Node per data position, annotated with its resolved definition,
// validity and display group, and reconciled incrementally as the data and
// the registry change.
package tree

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/mapping"
	"github.com/reoring/formtree/resolve"
	"github.com/reoring/formtree/validity"
)

var tracer = otel.Tracer("formtree.tree")

// Options configures a Tree. When several are passed, the last one wins.
type Options struct {
	// Name labels the root cell and log records.
	Name string
	// Env is handed to definition factories.
	Env formtree.Environment
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Tree is the editor tree of one document.
//
// The root cell holds the root *formtree.Node, or the error that prevented
// its construction. Children are reached through Node.Children; each child
// cell holds a *formtree.Node or an error isolated to that subtree.
type Tree struct {
	sheet    *cells.Sheet
	schema   formtree.TypeScheme
	resolver *resolve.Resolver
	env      formtree.Environment
	logger   *slog.Logger
	groups   []formtree.GroupDefinition
	index    map[string]int
	root     *cells.Cell
}

// New builds the editor tree of data (a cellified value) against schema.
// The root node is built once; later data and registry changes are applied
// by the cells the tree is made of.
func New(ctx context.Context, s *cells.Sheet, data *cells.Cell, schema formtree.TypeScheme, opts ...Options) *Tree {
	var o Options
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Name == "" {
		o.Name = "tree"
	}
	_, span := tracer.Start(ctx, "tree.New",
		trace.WithAttributes(attribute.String("tree", o.Name)),
	)
	defer span.End()

	t := &Tree{
		sheet:    s,
		schema:   schema,
		resolver: resolve.New(s, schema.Types, o.Env),
		env:      o.Env,
		logger:   o.Logger.With(slog.String("tree", o.Name)),
	}
	t.groups, t.index = groupsIndex(schema.Groups)
	t.root = s.Derive([]*cells.Cell{data}, func(_ []any, prev any) (any, error) {
		if prev != nil {
			return prev, nil
		}
		return t.buildRoot(data)
	}).Named(o.Name)
	if _, err := s.Peek(t.root); err != nil {
		span.RecordError(err)
		t.logger.Warn("root construction failed", slog.String("error", err.Error()))
	}
	return t
}

// Root returns the cell holding the root node.
func (t *Tree) Root() *cells.Cell { return t.root }

// Sheet returns the sheet the tree lives in.
func (t *Tree) Sheet() *cells.Sheet { return t.sheet }

// Schema returns the scheme the tree was built against.
func (t *Tree) Schema() formtree.TypeScheme { return t.schema }

// Resolver returns the resolver bound to the scheme's registry.
func (t *Tree) Resolver() *resolve.Resolver { return t.resolver }

// Node settles pending work and returns the root node.
func (t *Tree) Node(ctx context.Context) (*formtree.Node, error) {
	if err := t.sheet.Settle(ctx); err != nil {
		return nil, err
	}
	return NodeOf(t.sheet, t.root)
}

// Close releases every cell the tree created. Data cells are left alone.
func (t *Tree) Close() {
	if v, err := t.sheet.Peek(t.root); err == nil {
		t.release(v)
	}
	t.sheet.Collect(t.root)
}

// NodeOf reads a node cell.
func NodeOf(s *cells.Sheet, c *cells.Cell) (*formtree.Node, error) {
	v, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*formtree.Node)
	if !ok || n == nil {
		return nil, fmt.Errorf("tree: %s does not hold a node", c)
	}
	return n, nil
}

func (t *Tree) buildRoot(data *cells.Cell) (*formtree.Node, error) {
	v, err := t.sheet.Get(t.schema.Values)
	if err != nil {
		return nil, err
	}
	local, _ := v.(*formtree.Definition)
	if local == nil {
		return nil, fmt.Errorf("tree: scheme has no root definition")
	}
	root := &formtree.Node{
		ID:       formtree.NextNodeID(),
		Path:     formtree.Path{},
		Original: data,
		Value:    data,
		Group:    formtree.MiscGroupID,
	}
	preview, err := t.resolver.Preview(local, root)
	if err != nil {
		return nil, err
	}
	root.Definition = t.resolver.Resolve(t.schema.Values, root).Named("definition:/")
	return t.settle(data, root, preview)
}

// child resolves the definition produced by f for a new node and builds it.
// label, when set, overrides the resolved label.
func (t *Tree) child(v *cells.Cell, n *formtree.Node, f formtree.Factory, label string) (*formtree.Node, error) {
	local, preview, err := t.definition(n, f)
	if err != nil {
		return nil, err
	}
	return t.build(v, n, local, preview, label)
}

// definition runs the factory of n once and previews its result.
func (t *Tree) definition(n *formtree.Node, f formtree.Factory) (local, preview *formtree.Definition, err error) {
	if f == nil {
		return nil, nil, formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", fmt.Sprint(n.Key))
	}
	local, err = f(n, t.env)
	if err != nil {
		return nil, nil, err
	}
	if local == nil {
		return nil, nil, formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", fmt.Sprint(n.Key))
	}
	preview, err = t.resolver.Preview(local, n)
	if err != nil {
		return nil, nil, err
	}
	return local, preview, nil
}

// build attaches the definition cell of n and finishes it.
func (t *Tree) build(v *cells.Cell, n *formtree.Node, local, preview *formtree.Definition, label string) (*formtree.Node, error) {
	if label != "" {
		cp := *preview
		cp.Label = label
		preview = &cp
	}
	n.Definition = t.resolver.ResolveDef(local, n, label).Named("definition:" + n.Path.Pointer())
	return t.settle(v, n, preview)
}

// settle finishes a node whose definition cell is set: it collects the
// definition when construction fails.
func (t *Tree) settle(v *cells.Cell, n *formtree.Node, preview *formtree.Definition) (*formtree.Node, error) {
	out, err := t.sync(v, n, preview)
	if err != nil {
		t.sheet.Collect(n.Definition)
		t.logger.Debug("node construction failed",
			slog.String("path", n.Path.Pointer()),
			slog.String("error", err.Error()),
		)
		nodesFailed.Inc()
		return nil, err
	}
	return out, nil
}

// sync attaches the lens, validity and children of n, whose structural kind
// is decided once by preview.
func (t *Tree) sync(v *cells.Cell, n *formtree.Node, preview *formtree.Definition) (*formtree.Node, error) {
	s := t.sheet
	lensed := v
	if preview.Lens != nil {
		c, err := preview.Lens(s, v, preview.Options)
		if err != nil {
			return nil, fmt.Errorf("tree: lens at %s: %w", n.Path.Pointer(), err)
		}
		if c != nil {
			lensed = c
		}
	}
	n.Original = v
	n.Value = lensed

	if validity.Requires(preview) {
		n.Valid = s.Derive([]*cells.Cell{lensed, n.Definition}, func(in []any, _ any) (any, error) {
			def, _ := in[1].(*formtree.Definition)
			if def == nil {
				def = preview
			}
			return validity.Validate(def, in[0], n.Path), nil
		}).Named("valid:" + n.Path.Pointer())
	}

	switch shape := preview.Shape.(type) {
	case formtree.Array:
		items := mapping.Array(s, lensed, func(i int, el *cells.Cell) (any, error) {
			c := &formtree.Node{
				ID:     formtree.NextNodeID(),
				Key:    i,
				Path:   n.Path.Index(i),
				Parent: lensed,
				Group:  n.Group,
			}
			return t.child(el, c, shape.Element, "")
		}, mapping.Options{
			Name:     "items:" + n.Path.Pointer(),
			OnRemove: t.release,
			OnReuse:  func(key any, c *cells.Cell) { t.relocate(n, key, c) },
		})
		n.Children = formtree.ArrayChildren{Items: items}
	case formtree.Dict:
		entries := mapping.Object(s, lensed, func(key string, el *cells.Cell) (any, error) {
			c := &formtree.Node{
				ID:     formtree.NextNodeID(),
				Key:    key,
				Path:   n.Path.Field(key),
				Parent: lensed,
				Group:  n.Group,
			}
			return t.child(el, c, shape.Value, preview.Label)
		}, mapping.Options{
			Name:     "entries:" + n.Path.Pointer(),
			OnRemove: t.release,
		})
		n.Children = formtree.DictChildren{Entries: entries}
	case formtree.Object:
		decl := make([]mapping.Decl[formtree.Factory], len(shape.Fields))
		order := make([]string, len(shape.Fields))
		for i, f := range shape.Fields {
			decl[i] = mapping.Decl[formtree.Factory]{Key: f.Name, Value: f.Type}
			order[i] = f.Name
		}
		fields := mapping.Fields(s, decl, lensed, func(key string, f formtree.Factory, _ bool, el *cells.Cell) *cells.Cell {
			if el == nil {
				return t.placeholder(n, lensed, key, f)
			}
			return s.Derive([]*cells.Cell{el}, func(_ []any, prev any) (any, error) {
				if p, ok := prev.(*formtree.Node); ok && !p.Undefined {
					return p, nil
				}
				c := &formtree.Node{
					ID:     formtree.NextNodeID(),
					Key:    key,
					Path:   n.Path.Field(key),
					Parent: lensed,
				}
				return t.field(el, c, f)
			}).Named("field:" + n.Path.Field(key).Pointer())
		}, mapping.FieldsOptions{
			Options:        mapping.Options{Name: "fields:" + n.Path.Pointer(), OnRemove: t.release},
			SkipUndeclared: true,
		})
		n.Children = formtree.ObjectChildren{Fields: fields, Order: order}
	}
	nodesBuilt.WithLabelValues(n.Kind().String()).Inc()
	t.logger.Debug("node built",
		slog.String("id", n.ID),
		slog.String("path", n.Path.Pointer()),
		slog.String("kind", n.Kind().String()),
	)
	return n, nil
}

// field builds the node of a present object field. The field's group and
// rank come from its own definition.
func (t *Tree) field(v *cells.Cell, n *formtree.Node, f formtree.Factory) (*formtree.Node, error) {
	local, preview, err := t.place(n, f)
	if err != nil {
		return nil, err
	}
	return t.build(v, n, local, preview, "")
}

// placeholder stands for a declared field absent from the data. It carries
// the field's definition, group and rank but no value and no validity.
func (t *Tree) placeholder(parent *formtree.Node, obj *cells.Cell, key string, f formtree.Factory) *cells.Cell {
	n := &formtree.Node{
		ID:        formtree.NextNodeID(),
		Key:       key,
		Path:      parent.Path.Field(key),
		Parent:    obj,
		Undefined: true,
	}
	local, _, err := t.place(n, f)
	if err != nil {
		return t.sheet.Derive(nil, func([]any, any) (any, error) { return nil, err }).Named("placeholder:" + n.Path.Pointer())
	}
	n.Definition = t.resolver.ResolveDef(local, n, "").Named("definition:" + n.Path.Pointer())
	return t.sheet.New(n).Named("placeholder:" + n.Path.Pointer())
}

// place sets the display group and rank of a field node and returns the
// field's definitions.
func (t *Tree) place(n *formtree.Node, f formtree.Factory) (local, preview *formtree.Definition, err error) {
	local, preview, err = t.definition(n, f)
	if err != nil {
		return nil, nil, err
	}
	n.Group = preview.Group
	n.Rank = preview.Rank
	return local, preview, nil
}

// release collects the cells created for a dropped node and its
// descendants. Data cells belong to the caller and are not collected.
func (t *Tree) release(v any) {
	n, ok := v.(*formtree.Node)
	if !ok || n == nil {
		return
	}
	s := t.sheet
	if n.Children != nil {
		c := n.Children.Cell()
		if val, err := s.Peek(c); err == nil {
			for _, child := range childCells(val) {
				if cv, err := s.Peek(child); err == nil {
					t.release(cv)
				}
				s.Collect(child)
			}
		}
		s.Collect(c)
	}
	s.Collect(n.Valid)
	if n.Value != n.Original {
		s.Collect(n.Value)
	}
	s.Collect(n.Definition)
	nodesReleased.Inc()
	t.logger.Debug("node released", slog.String("id", n.ID), slog.String("path", n.Path.Pointer()))
}

// relocate moves a reused array element to index key of parent.
func (t *Tree) relocate(parent *formtree.Node, key any, c *cells.Cell) {
	v, err := t.sheet.Peek(c)
	if err != nil {
		return
	}
	n, ok := v.(*formtree.Node)
	if !ok || n == nil {
		return
	}
	path := parent.Path.With(key)
	if n.Key == key && n.Path.Equal(path) {
		return
	}
	n.Key = key
	n.Path = path
	t.repath(n)
}

// repath rewrites the paths of n's descendants after n moved.
func (t *Tree) repath(n *formtree.Node) {
	if n.Children == nil {
		return
	}
	val, err := t.sheet.Peek(n.Children.Cell())
	if err != nil {
		return
	}
	for _, c := range childCells(val) {
		cv, err := t.sheet.Peek(c)
		if err != nil {
			continue
		}
		if child, ok := cv.(*formtree.Node); ok && child != nil {
			child.Path = n.Path.With(child.Key)
			t.repath(child)
		}
	}
}

// childCells lists the cells of a children value in a stable order.
func childCells(v any) []*cells.Cell {
	switch x := v.(type) {
	case []*cells.Cell:
		return x
	case map[string]*cells.Cell:
		out := make([]*cells.Cell, 0, len(x))
		for _, k := range sortedKeys(x) {
			out = append(out, x[k])
		}
		return out
	}
	return nil
}
