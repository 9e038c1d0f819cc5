package segment

import "math"

// Handle is a stable reference to a pool slot.
type Handle uint32

// NoHandle marks an empty neighbor slot.
const NoHandle Handle = math.MaxUint32

// Box is a half-open pixel rectangle [XStart, XBound) × [YStart, YBound).
type Box struct {
	XStart, YStart uint32
	XBound, YBound uint32
}

// Union returns the smallest box covering b and o.
func (b Box) Union(o Box) Box {
	return Box{
		XStart: min(b.XStart, o.XStart),
		YStart: min(b.YStart, o.YStart),
		XBound: max(b.XBound, o.XBound),
		YBound: max(b.YBound, o.YBound),
	}
}

// Width returns XBound - XStart.
func (b Box) Width() uint32 { return b.XBound - b.XStart }

// Height returns YBound - YStart.
func (b Box) Height() uint32 { return b.YBound - b.YStart }

// Perimeter returns the box perimeter in pixels.
func (b Box) Perimeter() uint32 { return 2*b.Width() + 2*b.Height() }

// Segment is a connected pixel region.
type Segment struct {
	// ID is the label written to the segment-ID raster; 0 is reserved.
	ID uint32
	// Size is the pixel count.
	Size uint32
	Box
	// Neighbors holds adjacent segments. Slots may be NoHandle after a
	// neighbor was merged away; they are reused before the list grows.
	Neighbors []Handle
	// Features is a view into the pool's feature buffer.
	Features []float64
}

// AddNeighbor records h as a neighbor unless it is already present.
func (s *Segment) AddNeighbor(h Handle) {
	free := -1
	for i, n := range s.Neighbors {
		if n == h {
			return
		}
		if n == NoHandle && free < 0 {
			free = i
		}
	}
	if free >= 0 {
		s.Neighbors[free] = h
		return
	}
	s.Neighbors = append(s.Neighbors, h)
}

// RemoveNeighbor clears the slot holding h, if any.
func (s *Segment) RemoveNeighbor(h Handle) {
	for i, n := range s.Neighbors {
		if n == h {
			s.Neighbors[i] = NoHandle
			return
		}
	}
}

// HasNeighbor reports whether h is a neighbor.
func (s *Segment) HasNeighbor(h Handle) bool {
	for _, n := range s.Neighbors {
		if n == h {
			return true
		}
	}
	return false
}

// ClearNeighbors empties the neighbor list, keeping its capacity.
func (s *Segment) ClearNeighbors() {
	s.Neighbors = s.Neighbors[:0]
}

// NeighborCount returns the number of occupied neighbor slots.
func (s *Segment) NeighborCount() int {
	n := 0
	for _, h := range s.Neighbors {
		if h != NoHandle {
			n++
		}
	}
	return n
}

// CopyFrom copies ID, size, box and features from o. Neighbors are not copied;
// scratch segments never take part in the graph.
func (s *Segment) CopyFrom(o *Segment) {
	s.ID = o.ID
	s.Size = o.Size
	s.Box = o.Box
	copy(s.Features, o.Features)
}
