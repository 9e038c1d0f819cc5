package merger

import (
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/segment"
)

// TouchingEdgeLength counts, inside box, the id1 pixels that have a
// 4-connected id2 neighbor (e1) and the id2 pixels that have an id1
// neighbor (e2). Neighbors outside box are still inspected.
func TouchingEdgeLength(ids *matrix.Matrix[uint32], box segment.Box, id1, id2 uint32) (e1, e2 uint32) {
	lastRow := ids.Rows() - 1
	lastCol := ids.Cols() - 1

	touches := func(y, x int, other uint32) bool {
		if y > 0 && ids.At(y-1, x) == other {
			return true
		}
		if x > 0 && ids.At(y, x-1) == other {
			return true
		}
		if y < lastRow && ids.At(y+1, x) == other {
			return true
		}
		return x < lastCol && ids.At(y, x+1) == other
	}

	for y := int(box.YStart); y < int(box.YBound); y++ {
		for x := int(box.XStart); x < int(box.XBound); x++ {
			switch ids.At(y, x) {
			case id1:
				if touches(y, x, id2) {
					e1++
				}
			case id2:
				if touches(y, x, id1) {
					e2++
				}
			}
		}
	}
	return e1, e2
}
