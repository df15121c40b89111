package cells_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/formtree/cells"
)

func TestCellify_RoundTrip(t *testing.T) {
	s := cells.NewSheet()
	in := map[string]any{"name": "ada", "tags": []any{"a", "b"}, "meta": map[string]any{"n": 1.0}}
	c := cells.Cellify(s, in)

	// root + name + tags(+2) + meta(+1)
	assert.Equal(t, 7, s.Stats().Size)

	out, err := cells.Uncellify(s, c)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	v, _ := s.Get(c)
	tags := v.(map[string]*cells.Cell)["tags"]
	assert.Same(t, tags, cells.Cellify(s, tags), "cells are kept as-is")
}

func TestCollectDeep_ReleasesNestedCells(t *testing.T) {
	s := cells.NewSheet()
	keep := s.New("x")
	c := cells.Cellify(s, map[string]any{"a": []any{1, 2}, "b": "c"})
	require.Equal(t, 6, s.Stats().Size)

	cells.CollectDeep(s, c)
	cells.CollectDeep(s, c)
	assert.Equal(t, 1, s.Stats().Size)
	assert.False(t, keep.Collected())
}
