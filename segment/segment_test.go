package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment_Neighbors(t *testing.T) {
	var s Segment

	s.AddNeighbor(1)
	s.AddNeighbor(2)
	s.AddNeighbor(1)
	assert.Equal(t, []Handle{1, 2}, s.Neighbors)
	assert.True(t, s.HasNeighbor(2))

	s.RemoveNeighbor(1)
	assert.Equal(t, []Handle{NoHandle, 2}, s.Neighbors)
	assert.False(t, s.HasNeighbor(1))
	assert.Equal(t, 1, s.NeighborCount())

	// Empty slots are reused before the list grows.
	s.AddNeighbor(3)
	assert.Equal(t, []Handle{3, 2}, s.Neighbors)

	s.RemoveNeighbor(42)
	assert.Equal(t, 2, s.NeighborCount())

	s.ClearNeighbors()
	assert.Empty(t, s.Neighbors)
	assert.Zero(t, s.NeighborCount())
}

func TestSegment_CopyFrom(t *testing.T) {
	src := Segment{
		ID:        7,
		Size:      3,
		Box:       Box{XStart: 1, YStart: 2, XBound: 4, YBound: 3},
		Neighbors: []Handle{5},
		Features:  []float64{1, 2},
	}
	dst := Segment{Features: make([]float64, 2)}
	dst.CopyFrom(&src)

	assert.Equal(t, uint32(7), dst.ID)
	assert.Equal(t, uint32(3), dst.Size)
	assert.Equal(t, src.Box, dst.Box)
	assert.Equal(t, []float64{1, 2}, dst.Features)
	assert.Empty(t, dst.Neighbors)

	// Features are copied, not aliased.
	dst.Features[0] = 9
	assert.Equal(t, 1.0, src.Features[0])
}

func TestBox(t *testing.T) {
	a := Box{XStart: 0, YStart: 0, XBound: 2, YBound: 1}
	b := Box{XStart: 1, YStart: 1, XBound: 3, YBound: 4}

	u := a.Union(b)
	assert.Equal(t, Box{XStart: 0, YStart: 0, XBound: 3, YBound: 4}, u)
	assert.Equal(t, uint32(3), u.Width())
	assert.Equal(t, uint32(4), u.Height())
	assert.Equal(t, uint32(14), u.Perimeter())
	assert.Equal(t, u, b.Union(a))
}
