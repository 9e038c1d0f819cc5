package segment

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hupe1980/regiongrow/internal/conv"
	"github.com/hupe1980/regiongrow/internal/mmap"
)

// DefaultOffHeapThreshold is the feature buffer size above which the buffer
// is mapped outside the Go heap.
const DefaultOffHeapThreshold = 64 << 20

var (
	// ErrInvalidCapacity is returned when Initialize receives a negative size.
	ErrInvalidCapacity = errors.New("segment: invalid pool capacity")
	// ErrPoolExhausted is returned by helpers that need a free slot when none is left.
	ErrPoolExhausted = errors.New("segment: pool exhausted")
)

const float64Size = int(unsafe.Sizeof(float64(0)))

// Pool is a fixed-capacity arena of segments.
//
// Slots are handed out in arena order by Next and are never freed
// individually; the whole pool is recycled by ResetUseCounter or Clear.
type Pool struct {
	opts options

	segments    []Segment
	features    []float64
	featuresLen int
	used        int

	mapping  *mmap.Mapping
	reserved int64
}

// NewPool returns an empty pool.
func NewPool(opts ...Option) *Pool {
	return &Pool{opts: applyOptions(opts)}
}

// Initialize allocates capacity slots, each with a featuresLen feature vector.
// Any previous allocation is released first.
func (p *Pool) Initialize(capacity, featuresLen int) error {
	if err := p.Clear(); err != nil {
		return err
	}
	if capacity < 0 || featuresLen < 0 {
		return fmt.Errorf("%w: capacity=%d features=%d", ErrInvalidCapacity, capacity, featuresLen)
	}
	if _, err := conv.IntToUint32(capacity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCapacity, err)
	}

	n, err := conv.MulInt(capacity, featuresLen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCapacity, err)
	}
	featBytes, err := conv.MulInt(n, float64Size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCapacity, err)
	}

	// Slot headers plus the feature buffer.
	total := int64(featBytes) + int64(capacity)*int64(unsafe.Sizeof(Segment{}))
	if err := p.opts.rc.TryAcquireMemory(total); err != nil {
		return fmt.Errorf("segment: reserving %d bytes: %w", total, err)
	}
	p.reserved = total

	if featBytes > 0 && featBytes >= p.opts.offHeapThreshold {
		m, err := mmap.MapAnon(featBytes)
		if err != nil {
			p.release()
			return fmt.Errorf("segment: mapping feature buffer: %w", err)
		}
		p.mapping = m
		p.features = unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(m.Bytes()))), n)
	} else {
		p.features = make([]float64, n)
	}

	p.featuresLen = featuresLen
	p.segments = make([]Segment, capacity)
	for i := range p.segments {
		off := i * featuresLen
		p.segments[i].Features = p.features[off : off+featuresLen : off+featuresLen]
	}
	return nil
}

// Next returns the next unused slot in arena order. The slot's neighbor
// list is empty; ID, size, box and features keep whatever the previous
// user left, so callers set them explicitly.
func (p *Pool) Next() (Handle, bool) {
	if p.used >= len(p.segments) {
		return NoHandle, false
	}
	h := Handle(p.used)
	p.used++
	p.segments[h].ClearNeighbors()
	return h, true
}

// Get returns the segment at h. It panics if h is out of range.
func (p *Pool) Get(h Handle) *Segment {
	return &p.segments[h]
}

// Len returns the number of slots handed out since the last reset.
func (p *Pool) Len() int { return p.used }

// Capacity returns the total number of slots.
func (p *Pool) Capacity() int { return len(p.segments) }

// FeaturesLen returns the per-segment feature vector length.
func (p *Pool) FeaturesLen() int { return p.featuresLen }

// OffHeap reports whether the feature buffer lives outside the Go heap.
func (p *Pool) OffHeap() bool { return p.mapping != nil }

// ResetUseCounter makes every slot available again without reallocating.
func (p *Pool) ResetUseCounter() {
	p.used = 0
}

// Clear releases all slots and the feature buffer.
func (p *Pool) Clear() error {
	var err error
	if p.mapping != nil {
		err = p.mapping.Close()
		p.mapping = nil
	}
	p.segments = nil
	p.features = nil
	p.featuresLen = 0
	p.used = 0
	p.release()
	return err
}

func (p *Pool) release() {
	p.opts.rc.ReleaseMemory(p.reserved)
	p.reserved = 0
}
