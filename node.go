package formtree

import (
	"strconv"
	"sync/atomic"

	"github.com/reoring/formtree/cells"
)

// Kind is the structural kind of a node.
type Kind int

const (
	KindLeaf Kind = iota
	KindArray
	KindDict
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindObject:
		return "object"
	}
	return "leaf"
}

// Node mirrors one position of the data tree.
//
// Value, Original and Parent are cells of the data store: Value is the
// presented (post-lens) cell, Original the stored one. Definition holds the
// resolved *Definition. Valid holds nil or a validation error, and is nil
// itself when the definition needs no validation. Placeholders (Undefined)
// stand for declared object fields absent from the data; they carry no Value
// and no Valid.
//
// Key and Path of a reused array element are updated in place when its index
// shifts.
type Node struct {
	ID         string
	Key        Key
	Path       Path
	Parent     *cells.Cell
	Value      *cells.Cell
	Original   *cells.Cell
	Definition *cells.Cell
	Group      string
	Rank       *int
	Valid      *cells.Cell
	Undefined  bool
	Children   Children
}

// Kind returns the node's structural kind.
func (n *Node) Kind() Kind {
	if n == nil || n.Children == nil {
		return KindLeaf
	}
	return n.Children.Kind()
}

// Children is the child collection of a non-leaf node. Its cell holds
// child node cells, each of which holds a *Node.
type Children interface {
	Kind() Kind
	Cell() *cells.Cell
}

// ArrayChildren holds []*cells.Cell in element order.
type ArrayChildren struct{ Items *cells.Cell }

// DictChildren holds map[string]*cells.Cell.
type DictChildren struct{ Entries *cells.Cell }

// ObjectChildren holds map[string]*cells.Cell; Order lists the declared
// fields.
type ObjectChildren struct {
	Fields *cells.Cell
	Order  []string
}

func (ArrayChildren) Kind() Kind  { return KindArray }
func (DictChildren) Kind() Kind   { return KindDict }
func (ObjectChildren) Kind() Kind { return KindObject }

func (c ArrayChildren) Cell() *cells.Cell  { return c.Items }
func (c DictChildren) Cell() *cells.Cell   { return c.Entries }
func (c ObjectChildren) Cell() *cells.Cell { return c.Fields }

var nodeSeq atomic.Uint64

// NextNodeID returns a process-unique node id ("node:N"). Ids are never
// reused.
func NextNodeID() string {
	return "node:" + strconv.FormatUint(nodeSeq.Add(1), 10)
}
