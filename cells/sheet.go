package cells

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("formtree.cells")

var (
	// ErrCollected is returned when reading or writing a released cell.
	ErrCollected = errors.New("cells: cell collected")
	// ErrReadOnly is returned by Set/Update on derived cells.
	ErrReadOnly = errors.New("cells: derived cell is read-only")
	// ErrCycle is stored in a cell that (transitively) depends on itself.
	ErrCycle = errors.New("cells: dependency cycle")
	// ErrForeign is returned when a cell from another Sheet is used.
	ErrForeign = errors.New("cells: cell belongs to another sheet")
)

// DeriveFunc computes a derived value from its inputs' values. prev is the
// cell's last successfully computed value (nil before the first run).
type DeriveFunc func(in []any, prev any) (any, error)

// Getter reads a cell from inside a Track computation and records it as a
// dependency.
type Getter func(c *Cell) (any, error)

// TrackFunc computes a value whose dependencies are the cells read through get.
type TrackFunc func(get Getter, prev any) (any, error)

// Options configures a Sheet. When several are passed, the last one wins.
type Options struct {
	// Name prefixes log records and span attributes.
	Name string
	// Equal decides whether a recomputed value differs from the previous one.
	// Defaults to Equal.
	Equal func(a, b any) bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Stats reports how many cells were ever created (Count) and how many are
// still live (Size).
type Stats struct {
	Count int
	Size  int
}

// Sheet is an arena of reactive cells.
//
// Writes mark transitive dependents stale; stale cells are recomputed on
// demand (Get) or in bulk (Settle), always after their own inputs, so a
// dependent never observes a half-updated round. A recomputation that yields
// an equal value does not propagate.
//
// Thread Safety: a Sheet is not safe for concurrent use. All calls, including
// those made from derive functions, must come from one goroutine at a time.
type Sheet struct {
	name    string
	equal   func(a, b any) bool
	logger  *slog.Logger
	next    ID
	created int
	live    map[ID]*Cell
	pending map[*Cell]struct{}
}

// NewSheet creates an empty Sheet.
func NewSheet(opts ...Options) *Sheet {
	var o Options
	if len(opts) > 0 {
		o = opts[len(opts)-1]
	}
	if o.Equal == nil {
		o.Equal = Equal
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Name == "" {
		o.Name = "sheet"
	}
	return &Sheet{
		name:    o.Name,
		equal:   o.Equal,
		logger:  o.Logger.With(slog.String("sheet", o.Name)),
		live:    map[ID]*Cell{},
		pending: map[*Cell]struct{}{},
	}
}

// Stats returns creation and liveness counters.
func (s *Sheet) Stats() Stats { return Stats{Count: s.created, Size: len(s.live)} }

// Pending reports how many cells await recomputation.
func (s *Sheet) Pending() int { return len(s.pending) }

func (s *Sheet) add(c *Cell) *Cell {
	s.next++
	c.id = s.next
	c.sheet = s
	c.dependents = map[*Cell]struct{}{}
	s.created++
	s.live[c.id] = c
	cellsCreated.Inc()
	cellsLive.Inc()
	return c
}

// New creates a writable cell holding v.
func (s *Sheet) New(v any) *Cell {
	return s.add(&Cell{value: v, computed: true})
}

// Derive creates a cell computed from inputs by fn. The cell is computed
// immediately and again whenever an input changes. If an input holds an
// error, fn is skipped and the error propagates.
//
// A derived cell cannot outlive its inputs: collecting any input collects it.
func (s *Sheet) Derive(inputs []*Cell, fn DeriveFunc) *Cell {
	c := s.add(&Cell{fn: fn, stale: true})
	c.deps = make([]*Cell, len(inputs))
	c.seen = make([]uint64, len(inputs))
	for i, in := range inputs {
		c.deps[i] = in
		switch {
		case in == nil || in.sheet != s:
			c.err = ErrForeign
		case in.collected && c.err == nil:
			c.err = ErrCollected
		}
	}
	// A cell with a bad input is inert: it keeps its error and is never
	// scheduled by the inputs that are fine.
	if c.err != nil {
		c.stale = false
		c.computed = true
		return c
	}
	for _, in := range inputs {
		in.dependents[c] = struct{}{}
	}
	s.pending[c] = struct{}{}
	s.refresh(c)
	return c
}

// Track creates a cell whose dependencies are discovered while fn runs: every
// cell read through the Getter becomes an input for the next round. Unlike
// Derive cells, a Track cell survives the collection of its inputs and simply
// recomputes.
func (s *Sheet) Track(fn TrackFunc) *Cell {
	c := s.add(&Cell{track: fn, stale: true})
	s.pending[c] = struct{}{}
	s.refresh(c)
	return c
}

// Get returns the up-to-date value of c, recomputing stale inputs first.
func (s *Sheet) Get(c *Cell) (any, error) {
	if err := s.check(c); err != nil {
		return nil, err
	}
	s.refresh(c)
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

// Peek returns the current value of c without recomputing it. Collected cells
// keep their last value.
func (s *Sheet) Peek(c *Cell) (any, error) {
	if c == nil {
		return nil, ErrForeign
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

// Set replaces the value of a writable cell.
func (s *Sheet) Set(c *Cell, v any) error {
	if err := s.check(c); err != nil {
		return err
	}
	if c.Derived() {
		return fmt.Errorf("%w: %s", ErrReadOnly, c)
	}
	if s.equal(c.value, v) {
		return nil
	}
	c.value = v
	c.version++
	s.markStale(c)
	return nil
}

// Update applies fn to the current value of a writable cell.
func (s *Sheet) Update(c *Cell, fn func(v any) any) error {
	if err := s.check(c); err != nil {
		return err
	}
	if c.Derived() {
		return fmt.Errorf("%w: %s", ErrReadOnly, c)
	}
	return s.Set(c, fn(c.value))
}

// Collect releases c and every Derive cell depending on it. Track cells
// depending on c are scheduled for recomputation instead. Collecting twice is
// a no-op.
func (s *Sheet) Collect(c *Cell) {
	if c == nil || c.sheet != s || c.collected {
		return
	}
	c.collected = true
	c.stale = false
	delete(s.live, c.id)
	delete(s.pending, c)
	cellsCollected.Inc()
	cellsLive.Dec()
	for _, d := range c.deps {
		if d != nil && d.dependents != nil {
			delete(d.dependents, c)
		}
	}
	dependents := sortedCells(c.dependents)
	c.dependents = map[*Cell]struct{}{}
	for _, d := range dependents {
		if d.track != nil {
			s.schedule(d)
			continue
		}
		s.logger.Debug("cascade collect", slog.String("cell", d.String()), slog.String("from", c.String()))
		s.Collect(d)
	}
}

// Settle recomputes every stale cell. It returns early only when ctx is done.
func (s *Sheet) Settle(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "cells.Settle",
		trace.WithAttributes(
			attribute.String("sheet", s.name),
			attribute.Int("cells.pending", len(s.pending)),
		),
	)
	defer span.End()
	start := time.Now()
	defer func() { settleDuration.Observe(time.Since(start).Seconds()) }()

	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, c := range sortedCells(s.pending) {
			s.refresh(c)
		}
	}
	return nil
}

func (s *Sheet) check(c *Cell) error {
	if c == nil || c.sheet != s {
		return ErrForeign
	}
	if c.collected {
		return fmt.Errorf("%w: %s", ErrCollected, c)
	}
	return nil
}

func (s *Sheet) schedule(c *Cell) {
	if c.collected || c.stale {
		return
	}
	c.stale = true
	s.pending[c] = struct{}{}
	s.markStale(c)
}

func (s *Sheet) markStale(c *Cell) {
	for _, d := range sortedCells(c.dependents) {
		s.schedule(d)
	}
}

// refresh brings c up to date, pulling its inputs first.
func (s *Sheet) refresh(c *Cell) {
	if c.collected || !c.stale {
		delete(s.pending, c)
		return
	}
	if c.computing {
		s.store(c, c.value, fmt.Errorf("%w at %s", ErrCycle, c))
		return
	}
	c.computing = true
	defer func() { c.computing = false }()

	changed := !c.computed
	for i, d := range c.deps {
		if d.collected {
			changed = true
			continue
		}
		s.refresh(d)
		if d.version != c.seen[i] {
			changed = true
		}
	}
	if changed && !c.collected {
		switch {
		case c.fn != nil:
			s.recompute(c)
		case c.track != nil:
			s.rerun(c)
		}
	}
	c.stale = false
	delete(s.pending, c)
}

func (s *Sheet) recompute(c *Cell) {
	in := make([]any, len(c.deps))
	var inErr error
	for i, d := range c.deps {
		c.seen[i] = d.version
		if d.err != nil && inErr == nil {
			inErr = d.err
		}
		in[i] = d.value
	}
	if inErr != nil {
		s.store(c, c.value, inErr)
		return
	}
	cellsRecomputed.Inc()
	v, err := s.call(c, func() (any, error) { return c.fn(in, c.value) })
	s.store(c, v, err)
}

func (s *Sheet) rerun(c *Cell) {
	for _, d := range c.deps {
		if d.dependents != nil {
			delete(d.dependents, c)
		}
	}
	c.deps, c.seen = nil, nil
	read := map[*Cell]struct{}{}
	get := func(d *Cell) (any, error) {
		if err := s.check(d); err != nil {
			return nil, err
		}
		s.refresh(d)
		if _, ok := read[d]; !ok && !c.collected {
			read[d] = struct{}{}
			c.deps = append(c.deps, d)
			c.seen = append(c.seen, d.version)
			d.dependents[c] = struct{}{}
		}
		if d.err != nil {
			return nil, d.err
		}
		return d.value, nil
	}
	cellsRecomputed.Inc()
	v, err := s.call(c, func() (any, error) { return c.track(get, c.value) })
	s.store(c, v, err)
}

func (s *Sheet) call(c *Cell, f func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cells: %s panicked: %v", c, r)
			s.logger.Warn("recovered panic in cell computation", slog.String("cell", c.String()), slog.Any("panic", r))
		}
	}()
	return f()
}

func (s *Sheet) store(c *Cell, v any, err error) {
	changed := !c.computed
	if err != nil {
		if c.err != err {
			changed = true
		}
		c.err = err
	} else {
		if c.err != nil || !s.equal(c.value, v) {
			changed = true
		}
		c.err = nil
		c.value = v
	}
	c.computed = true
	if changed {
		c.version++
	}
}

func sortedCells(m map[*Cell]struct{}) []*Cell {
	out := make([]*Cell, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
