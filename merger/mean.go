package merger

import (
	"iter"
	"math"

	"github.com/hupe1980/regiongrow/segment"
)

// Mean keeps one running mean per band.
type Mean struct {
	bands int
}

var _ Merger = (*Mean)(nil)

// NewMean returns a Mean merger for the given number of bands.
func NewMean(bands int) *Mean {
	return &Mean{bands: bands}
}

// FeaturesLen implements Merger.
func (m *Mean) FeaturesLen() int { return m.bands }

// InitPixel implements Merger.
func (m *Mean) InitPixel(s *segment.Segment, values, _ []float64) {
	copy(s.Features[:m.bands], values)
}

// Similarity implements Merger. The preview is not used.
func (m *Mean) Similarity(a, b, _ *segment.Segment) float64 {
	var diss float64
	for i := 0; i < m.bands; i++ {
		d := a.Features[i] - b.Features[i]
		diss += d * d
	}
	return 1 - clamp01(math.Sqrt(diss))
}

// Merge implements Merger.
func (m *Mean) Merge(a, b, _ *segment.Segment) {
	sa := float64(a.Size)
	sb := float64(b.Size)
	total := sa + sb
	for i := 0; i < m.bands; i++ {
		a.Features[i] = (a.Features[i]*sa + b.Features[i]*sb) / total
	}
	a.Size += b.Size
	a.Box = a.Box.Union(b.Box)
}

// Update implements Merger. Mean has no global state.
func (m *Mean) Update(iter.Seq[*segment.Segment]) {}
