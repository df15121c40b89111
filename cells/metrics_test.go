package cells

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_TrackLifecycle(t *testing.T) {
	created := testutil.ToFloat64(cellsCreated)
	collected := testutil.ToFloat64(cellsCollected)
	live := testutil.ToFloat64(cellsLive)

	s := NewSheet()
	a := s.New(1)
	s.Derive([]*Cell{a}, func(in []any, _ any) (any, error) { return in[0], nil })
	assert.Equal(t, created+2, testutil.ToFloat64(cellsCreated))
	assert.Equal(t, live+2, testutil.ToFloat64(cellsLive))

	s.Collect(a)
	assert.Equal(t, collected+2, testutil.ToFloat64(cellsCollected))
	assert.Equal(t, live, testutil.ToFloat64(cellsLive))
}
