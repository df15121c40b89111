// Package editor is the editing façade over a document and its editor tree:
// navigation, element and property insertion and removal, value updates,
// groups and whole-document validity.
//
// Edit operations validate their target synchronously and return an error
// at once; the tree then converges through the reactive sheet. Every
// successful edit schedules a debounced recompute notification.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/reoring/formtree"
	"github.com/reoring/formtree/cells"
	"github.com/reoring/formtree/defaults"
	"github.com/reoring/formtree/tree"
)

var tracer = otel.Tracer("formtree.editor")

// Mode is the editing mode.
type Mode string

const (
	ModeNew  Mode = "new"
	ModeEdit Mode = "edit"
	// ModeView rejects every edit with CodeNotWritable.
	ModeView Mode = "view"
)

// DefaultDelay is the recompute debounce window.
const DefaultDelay = 100 * time.Millisecond

// Params configures an Editor. When several are passed, the last one wins.
type Params struct {
	Name  string
	Mode  Mode
	Delay time.Duration
	// Env is handed to definition factories and expression defaults.
	Env    formtree.Environment
	Logger *slog.Logger
	// OnRecompute receives the notification count. It runs on a timer
	// goroutine and must not touch the sheet.
	OnRecompute func(n uint64)
	// Now stamps date defaults.
	Now func() time.Time
}

// Editor edits one cellified document.
type Editor struct {
	sheet    *cells.Sheet
	data     *cells.Cell
	tree     *tree.Tree
	validity *cells.Cell
	valid    *cells.Cell
	params   Params
	session  string
	logger   *slog.Logger
	deb      *debouncer
}

// New builds the editor tree of data against schema.
func New(ctx context.Context, s *cells.Sheet, data *cells.Cell, schema formtree.TypeScheme, params ...Params) *Editor {
	var p Params
	if len(params) > 0 {
		p = params[len(params)-1]
	}
	if p.Mode == "" {
		p.Mode = ModeNew
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Name == "" {
		p.Name = "editor"
	}
	session := uuid.NewString()
	logger := p.Logger.With(slog.String("editor", p.Name), slog.String("session", session))
	e := &Editor{
		sheet:   s,
		data:    data,
		params:  p,
		session: session,
		logger:  logger,
	}
	e.tree = tree.New(ctx, s, data, schema, tree.Options{Name: p.Name, Env: p.Env, Logger: logger})
	e.validity = e.tree.Validity()
	e.valid = tree.AllValid(s, e.validity)
	e.deb = newDebouncer(p.Delay, e.notify)
	return e
}

// Session identifies the editor in log records.
func (e *Editor) Session() string { return e.session }

// Mode returns the editing mode.
func (e *Editor) Mode() Mode { return e.params.Mode }

// Tree returns the editor tree.
func (e *Editor) Tree() *tree.Tree { return e.tree }

// Data returns the document root cell.
func (e *Editor) Data() *cells.Cell { return e.data }

// Root settles the sheet and returns the root node.
func (e *Editor) Root(ctx context.Context) (*formtree.Node, error) {
	return e.tree.Node(ctx)
}

// Follow settles the sheet and walks path from the root node.
func (e *Editor) Follow(ctx context.Context, path formtree.Path) (*formtree.Node, error) {
	return e.tree.Follow(ctx, path)
}

// Groups derives the display groups of an object node.
func (e *Editor) Groups(n *formtree.Node) (*cells.Cell, error) {
	return e.tree.GroupsOf(n)
}

// Validity returns the cell holding the flattened validity of the document.
func (e *Editor) Validity() *cells.Cell { return e.validity }

// IsValid settles the sheet and reports whether every node is valid.
func (e *Editor) IsValid(ctx context.Context) (bool, error) {
	if err := e.sheet.Settle(ctx); err != nil {
		return false, err
	}
	v, err := e.sheet.Get(e.valid)
	if err != nil {
		return false, err
	}
	ok, _ := v.(bool)
	return ok, nil
}

// AddElement appends the default value of the array's element type.
func (e *Editor) AddElement(ctx context.Context, n *formtree.Node) (err error) {
	ctx, end := e.span(ctx, "editor.AddElement", n)
	defer func() { end(err) }()

	arr, items, err := e.array(n)
	if err != nil {
		return err
	}
	def, err := e.definition(n)
	if err != nil {
		return err
	}
	shape, ok := def.Shape.(formtree.Array)
	if !ok || shape.Element == nil {
		return formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", strconv.Itoa(len(items)))
	}
	elem, err := shape.Element(n, e.params.Env)
	if err != nil {
		return err
	}
	el, err := e.empty(elem, "")
	if err != nil {
		return err
	}
	next := make([]*cells.Cell, len(items), len(items)+1)
	copy(next, items)
	if err := e.sheet.Set(arr, append(next, el)); err != nil {
		return err
	}
	e.logger.DebugContext(ctx, "element added", slog.String("path", n.Path.Pointer()), slog.Int("index", len(items)))
	e.Recompute()
	return nil
}

// RemoveElement removes the element at index and releases its data.
func (e *Editor) RemoveElement(ctx context.Context, n *formtree.Node, index int) (err error) {
	ctx, end := e.span(ctx, "editor.RemoveElement", n)
	defer func() { end(err) }()

	arr, items, err := e.array(n)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(items) {
		return formtree.Fail(n.Path, formtree.CodeElementNotFound, "index", strconv.Itoa(index))
	}
	removed := items[index]
	next := make([]*cells.Cell, 0, len(items)-1)
	next = append(next, items[:index]...)
	next = append(next, items[index+1:]...)
	if err := e.sheet.Set(arr, next); err != nil {
		return err
	}
	cells.CollectDeep(e.sheet, removed)
	e.logger.DebugContext(ctx, "element removed", slog.String("path", n.Path.Pointer()), slog.Int("index", index))
	e.Recompute()
	return nil
}

// AddProperty adds key to an object node, with the default value of the
// field's type, or to a dict node (see AddDictValue). An existing value is
// replaced.
func (e *Editor) AddProperty(ctx context.Context, n *formtree.Node, key string) (err error) {
	if n != nil && n.Kind() == formtree.KindDict {
		return e.AddDictValue(ctx, n, key)
	}
	ctx, end := e.span(ctx, "editor.AddProperty", n)
	defer func() { end(err) }()

	obj, entries, err := e.object(n, formtree.KindObject)
	if err != nil {
		return err
	}
	def, err := e.definition(n)
	if err != nil {
		return err
	}
	shape, _ := def.Shape.(formtree.Object)
	f, ok := shape.Lookup(key)
	if !ok || f == nil {
		return formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", key)
	}
	local, err := f(n, e.params.Env)
	if err != nil {
		return err
	}
	return e.put(ctx, n, obj, entries, key, local)
}

// AddDictValue adds key to a dict node with the default value of the dict's
// value type. An existing value is replaced.
func (e *Editor) AddDictValue(ctx context.Context, n *formtree.Node, key string) (err error) {
	ctx, end := e.span(ctx, "editor.AddDictValue", n)
	defer func() { end(err) }()

	dict, entries, err := e.object(n, formtree.KindDict)
	if err != nil {
		return err
	}
	def, err := e.definition(n)
	if err != nil {
		return err
	}
	shape, _ := def.Shape.(formtree.Dict)
	if shape.Value == nil || !allowed(shape.Keys, key) {
		return formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", key)
	}
	local, err := shape.Value(n, e.params.Env)
	if err != nil {
		return err
	}
	return e.put(ctx, n, dict, entries, key, local)
}

func (e *Editor) put(ctx context.Context, n *formtree.Node, c *cells.Cell, entries map[string]*cells.Cell, key string, local *formtree.Definition) error {
	el, err := e.empty(local, key)
	if err != nil {
		return err
	}
	next := make(map[string]*cells.Cell, len(entries)+1)
	for k, v := range entries {
		next[k] = v
	}
	next[key] = el
	if err := e.sheet.Set(c, next); err != nil {
		return err
	}
	if old, ok := entries[key]; ok {
		cells.CollectDeep(e.sheet, old)
	}
	e.logger.DebugContext(ctx, "property added", slog.String("path", n.Path.Field(key).Pointer()))
	e.Recompute()
	return nil
}

// RemoveProperty removes key from an object or dict node and releases its
// data.
func (e *Editor) RemoveProperty(ctx context.Context, n *formtree.Node, key string) (err error) {
	ctx, end := e.span(ctx, "editor.RemoveProperty", n)
	defer func() { end(err) }()

	kind := formtree.KindObject
	if n != nil && n.Kind() == formtree.KindDict {
		kind = formtree.KindDict
	}
	c, entries, err := e.object(n, kind)
	if err != nil {
		return err
	}
	removed, ok := entries[key]
	if !ok {
		return formtree.Fail(n.Path, formtree.CodeKeyNotFound, "key", key)
	}
	next := make(map[string]*cells.Cell, len(entries))
	for k, v := range entries {
		if k != key {
			next[k] = v
		}
	}
	if err := e.sheet.Set(c, next); err != nil {
		return err
	}
	cells.CollectDeep(e.sheet, removed)
	e.logger.DebugContext(ctx, "property removed", slog.String("path", n.Path.Field(key).Pointer()))
	e.Recompute()
	return nil
}

// Update replaces the value of a node. Maps and slices are converted to
// cells; the cells they replace are released.
func (e *Editor) Update(ctx context.Context, n *formtree.Node, v any) (err error) {
	ctx, end := e.span(ctx, "editor.Update", n)
	defer func() { end(err) }()

	c, err := e.writable(n)
	if err != nil {
		return err
	}
	old, err := e.sheet.Get(c)
	if err != nil {
		return err
	}
	next := v
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]*cells.Cell, len(x))
		for _, k := range sortedKeys(x) {
			m[k] = cells.Cellify(e.sheet, x[k])
		}
		next = m
	case []any:
		arr := make([]*cells.Cell, len(x))
		for i, el := range x {
			arr[i] = cells.Cellify(e.sheet, el)
		}
		next = arr
	}
	if err := e.sheet.Set(c, next); err != nil {
		return err
	}
	switch x := old.(type) {
	case map[string]*cells.Cell:
		for _, k := range sortedKeys(x) {
			cells.CollectDeep(e.sheet, x[k])
		}
	case []*cells.Cell:
		for _, el := range x {
			cells.CollectDeep(e.sheet, el)
		}
	}
	e.logger.DebugContext(ctx, "value updated", slog.String("path", n.Path.Pointer()))
	e.Recompute()
	return nil
}

// Recompute schedules a debounced recompute notification.
func (e *Editor) Recompute() { e.deb.trigger() }

// Recomputations returns how many recompute notifications fired.
func (e *Editor) Recomputations() uint64 { return e.deb.count() }

// Close stops pending notifications and releases the editor tree.
func (e *Editor) Close() {
	e.deb.stop()
	e.sheet.Collect(e.valid)
	e.sheet.Collect(e.validity)
	e.tree.Close()
}

func (e *Editor) notify(n uint64) {
	e.logger.Debug("recompute", slog.Uint64("count", n))
	if e.params.OnRecompute != nil {
		e.params.OnRecompute(n)
	}
}

// writable returns the data cell of n, which must accept writes.
func (e *Editor) writable(n *formtree.Node) (*cells.Cell, error) {
	if n == nil {
		return nil, fmt.Errorf("editor: nil node")
	}
	if e.params.Mode == ModeView || n.Value == nil || n.Value.Derived() {
		return nil, formtree.Fail(n.Path, formtree.CodeNotWritable)
	}
	return n.Value, nil
}

func (e *Editor) array(n *formtree.Node) (*cells.Cell, []*cells.Cell, error) {
	if n == nil || n.Kind() != formtree.KindArray {
		return nil, nil, notA(n, formtree.CodeNotAnArray)
	}
	c, err := e.writable(n)
	if err != nil {
		return nil, nil, err
	}
	v, err := e.sheet.Get(c)
	if err != nil {
		return nil, nil, err
	}
	items, _ := v.([]*cells.Cell)
	return c, items, nil
}

func (e *Editor) object(n *formtree.Node, kind formtree.Kind) (*cells.Cell, map[string]*cells.Cell, error) {
	if n == nil || n.Kind() != kind {
		code := formtree.CodeNotAnObject
		if kind == formtree.KindDict {
			code = formtree.CodeNotADict
		}
		return nil, nil, notA(n, code)
	}
	c, err := e.writable(n)
	if err != nil {
		return nil, nil, err
	}
	v, err := e.sheet.Get(c)
	if err != nil {
		return nil, nil, err
	}
	entries, _ := v.(map[string]*cells.Cell)
	return c, entries, nil
}

func (e *Editor) definition(n *formtree.Node) (*formtree.Definition, error) {
	v, err := e.sheet.Get(n.Definition)
	if err != nil {
		return nil, err
	}
	def, _ := v.(*formtree.Definition)
	if def == nil {
		return nil, formtree.Fail(n.Path, formtree.CodeMissingFieldDefinition, "key", fmt.Sprint(n.Key))
	}
	return def, nil
}

// empty creates the cells of a new value of type def.
func (e *Editor) empty(def *formtree.Definition, key string) (*cells.Cell, error) {
	reg, err := e.tree.Resolver().Registry()
	if err != nil {
		return nil, err
	}
	v, err := defaults.Value(reg, def, defaults.Options{
		OneElementInArray: true,
		Env:               e.params.Env,
		Key:               key,
		Now:               e.params.Now,
	})
	if err != nil {
		return nil, err
	}
	return cells.Cellify(e.sheet, v), nil
}

func (e *Editor) span(ctx context.Context, name string, n *formtree.Node) (context.Context, func(error)) {
	path := ""
	if n != nil {
		path = n.Path.Pointer()
	}
	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("editor.session", e.session),
			attribute.String("node.path", path),
		),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			e.logger.DebugContext(ctx, "edit rejected", slog.String("op", name), slog.String("error", err.Error()))
		}
		span.End()
	}
}

func notA(n *formtree.Node, code string) error {
	var p formtree.Path
	if n != nil {
		p = n.Path
	}
	return formtree.Fail(p, code)
}

func allowed(keys []string, key string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
