package segment

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Indexer is the ordered set of alive segments.
//
// Handles are allocated in row-major scan order, so ascending handle order
// is the order in which segments were first seen.
type Indexer struct {
	rb *roaring.Bitmap

	// Walk cursor reused by First/Next while the set is unchanged.
	it     roaring.IntIterator
	cursor Handle
	valid  bool
}

// NewIndexer returns an empty indexer.
func NewIndexer() *Indexer {
	return &Indexer{rb: roaring.New()}
}

// Insert adds h.
func (ix *Indexer) Insert(h Handle) {
	ix.rb.Add(uint32(h))
	ix.valid = false
}

// Erase removes h.
func (ix *Indexer) Erase(h Handle) {
	ix.rb.Remove(uint32(h))
	ix.valid = false
}

// Contains reports whether h is alive.
func (ix *Indexer) Contains(h Handle) bool {
	return ix.rb.Contains(uint32(h))
}

// Len returns the number of alive segments.
func (ix *Indexer) Len() int {
	return int(ix.rb.GetCardinality())
}

// Clear removes every handle.
func (ix *Indexer) Clear() {
	ix.rb.Clear()
	ix.valid = false
}

// First returns the smallest alive handle.
func (ix *Indexer) First() (Handle, bool) {
	ix.it.Initialize(ix.rb)
	ix.valid = true
	return ix.advance()
}

// Next returns the smallest alive handle greater than h. h itself need not
// be alive. Consecutive calls on an unmodified set continue the previous
// walk; after Insert, Erase or Clear the cursor is repositioned.
func (ix *Indexer) Next(h Handle) (Handle, bool) {
	if h == NoHandle || h+1 == NoHandle {
		ix.valid = false
		return NoHandle, false
	}
	if !ix.valid || ix.cursor != h {
		ix.it.Initialize(ix.rb)
		ix.it.AdvanceIfNeeded(uint32(h) + 1)
		ix.valid = true
	}
	return ix.advance()
}

func (ix *Indexer) advance() (Handle, bool) {
	if !ix.it.HasNext() {
		ix.valid = false
		return NoHandle, false
	}
	ix.cursor = Handle(ix.it.Next())
	return ix.cursor, true
}

// All yields alive handles in ascending order. The set may be modified
// during the walk: erased handles that were not reached yet are skipped,
// and handles inserted after the current position are visited.
func (ix *Indexer) All() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		h, ok := ix.First()
		for ok {
			if !yield(h) {
				return
			}
			h, ok = ix.Next(h)
		}
	}
}
