package cells

import "fmt"

// ID identifies a cell within its Sheet. IDs are never reused.
type ID int

// Cell is a handle to one reactive storage location. Identity is by pointer:
// two cells holding equal values are still different cells.
type Cell struct {
	id         ID
	name       string
	sheet      *Sheet
	value      any
	err        error
	version    uint64
	deps       []*Cell
	seen       []uint64
	dependents map[*Cell]struct{}
	fn         DeriveFunc
	track      TrackFunc
	computed   bool
	stale      bool
	computing  bool
	collected  bool
}

// ID returns the cell's identifier.
func (c *Cell) ID() ID { return c.id }

// Name returns the debug name set with Named.
func (c *Cell) Name() string { return c.name }

// Named sets a debug name and returns c.
func (c *Cell) Named(name string) *Cell {
	c.name = name
	return c
}

// Deps returns the cell's current inputs. Collected cells keep the inputs
// they had when released.
func (c *Cell) Deps() []*Cell { return append([]*Cell(nil), c.deps...) }

// Dep returns the first input, or nil for value cells.
func (c *Cell) Dep() *Cell {
	if len(c.deps) == 0 {
		return nil
	}
	return c.deps[0]
}

// Derived reports whether the cell is computed rather than written.
func (c *Cell) Derived() bool { return c.fn != nil || c.track != nil }

// Collected reports whether the cell has been released.
func (c *Cell) Collected() bool { return c.collected }

func (c *Cell) String() string {
	if c == nil {
		return "<nil cell>"
	}
	if c.name != "" {
		return fmt.Sprintf("%s#%d", c.name, c.id)
	}
	return fmt.Sprintf("cell#%d", c.id)
}
