package merger

import (
	"iter"
	"math"

	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/segment"
)

// Feature layout:
//
//	[0]            edge length
//	[1]            compactness (edge length / sqrt(size))
//	[2]            smoothness (edge length / bbox perimeter)
//	[3, 3+n)       per-band sum
//	[3+n, 3+2n)    per-band sum of squares
//	[3+2n, 3+3n)   per-band spread
const (
	baatzEdge = iota
	baatzCompactness
	baatzSmoothness
	baatzBands
)

// BaatzFeaturesLen returns the Baatz feature vector length for n bands.
func BaatzFeaturesLen(bands int) int {
	return baatzBands + 3*bands
}

// BaatzConfig configures a Baatz merger.
type BaatzConfig struct {
	// ColorWeight blends color against form heterogeneity, in [0, 1].
	ColorWeight float64
	// CompactnessWeight blends compactness against smoothness, in [0, 1].
	CompactnessWeight float64
	// BandsWeights holds one weight per band.
	BandsWeights []float64
	// IDs is the segment-ID raster used to measure shared boundaries.
	IDs *matrix.Matrix[uint32]
}

// Baatz implements the Baatz/Schäpe heterogeneity criterion.
type Baatz struct {
	colorWeight       float64
	compactnessWeight float64
	bandsWeights      []float64
	bands             int
	ids               *matrix.Matrix[uint32]

	compactnessOffset float64
	compactnessGain   float64
	smoothnessOffset  float64
	smoothnessGain    float64
	spreadOffsets     []float64
	spreadGains       []float64
}

var _ Merger = (*Baatz)(nil)

// NewBaatz returns a Baatz merger with neutral normalization.
func NewBaatz(cfg BaatzConfig) *Baatz {
	n := len(cfg.BandsWeights)
	b := &Baatz{
		colorWeight:       cfg.ColorWeight,
		compactnessWeight: cfg.CompactnessWeight,
		bandsWeights:      append([]float64(nil), cfg.BandsWeights...),
		bands:             n,
		ids:               cfg.IDs,
		compactnessGain:   1,
		smoothnessGain:    1,
		spreadOffsets:     make([]float64, n),
		spreadGains:       make([]float64, n),
	}
	for i := range b.spreadGains {
		b.spreadGains[i] = 1
	}
	return b
}

func (b *Baatz) sum(band int) int    { return baatzBands + band }
func (b *Baatz) sqSum(band int) int  { return baatzBands + b.bands + band }
func (b *Baatz) spread(band int) int { return baatzBands + 2*b.bands + band }

// FeaturesLen implements Merger.
func (b *Baatz) FeaturesLen() int { return BaatzFeaturesLen(b.bands) }

// InitPixel implements Merger.
func (b *Baatz) InitPixel(s *segment.Segment, values, squares []float64) {
	f := s.Features
	f[baatzEdge] = 4
	f[baatzCompactness] = 4
	f[baatzSmoothness] = 1
	for i := 0; i < b.bands; i++ {
		f[b.sum(i)] = values[i]
		f[b.sqSum(i)] = squares[i]
		f[b.spread(i)] = 0
	}
}

// Similarity implements Merger.
func (b *Baatz) Similarity(s1, s2, preview *segment.Segment) float64 {
	f1, f2, fp := s1.Features, s2.Features, preview.Features

	preview.Size = s1.Size + s2.Size
	preview.Box = s1.Box.Union(s2.Box)

	size1 := float64(s1.Size)
	size2 := float64(s2.Size)
	sizeU := float64(preview.Size)

	// Form heterogeneity.
	e1, e2 := TouchingEdgeLength(b.ids, preview.Box, s1.ID, s2.ID)
	fp[baatzEdge] = (f1[baatzEdge] - float64(e1)) + (f2[baatzEdge] - float64(e2))
	fp[baatzCompactness] = fp[baatzEdge] / math.Sqrt(sizeU)
	fp[baatzSmoothness] = fp[baatzEdge] / float64(preview.Perimeter())

	hCompact := (math.Abs(fp[baatzCompactness]-(f1[baatzCompactness]*size1+f2[baatzCompactness]*size2)/sizeU) +
		b.compactnessOffset) * b.compactnessGain
	hSmooth := (math.Abs(fp[baatzSmoothness]-(f1[baatzSmoothness]*size1+f2[baatzSmoothness]*size2)/sizeU) +
		b.smoothnessOffset) * b.smoothnessGain
	hForm := b.compactnessWeight*hCompact + (1-b.compactnessWeight)*hSmooth

	// Color heterogeneity.
	var hColor float64
	for i := 0; i < b.bands; i++ {
		sumU := f1[b.sum(i)] + f2[b.sum(i)]
		sqU := f1[b.sqSum(i)] + f2[b.sqSum(i)]
		meanU := sumU / sizeU
		spreadU := (sqU - 2*meanU*sumU + sizeU*meanU*meanU) / sizeU

		fp[b.sum(i)] = sumU
		fp[b.sqSum(i)] = sqU
		fp[b.spread(i)] = spreadU

		weighted := (f1[b.spread(i)]*size1 + f2[b.spread(i)]*size2) / sizeU
		hColor += b.bandsWeights[i] * (math.Abs(spreadU-weighted) + b.spreadOffsets[i]) * b.spreadGains[i]
	}

	return 1 - clamp01(b.colorWeight*hColor+(1-b.colorWeight)*hForm)
}

// Merge implements Merger.
func (b *Baatz) Merge(s1, _, preview *segment.Segment) {
	s1.Size = preview.Size
	s1.Box = preview.Box
	copy(s1.Features, preview.Features[:b.FeaturesLen()])
}

// Update implements Merger. Each normalized dimension maps the alive
// segments' [min, max] onto [0, 1]; a constant dimension is scaled by its
// value instead.
func (b *Baatz) Update(alive iter.Seq[*segment.Segment]) {
	spreadMin := make([]float64, b.bands)
	spreadMax := make([]float64, b.bands)
	for i := range spreadMin {
		spreadMin[i] = math.MaxFloat64
		spreadMax[i] = -math.MaxFloat64
	}
	coMin, coMax := math.MaxFloat64, -math.MaxFloat64
	smMin, smMax := math.MaxFloat64, -math.MaxFloat64

	for s := range alive {
		f := s.Features
		for i := 0; i < b.bands; i++ {
			v := f[b.spread(i)]
			spreadMin[i] = min(spreadMin[i], v)
			spreadMax[i] = max(spreadMax[i], v)
		}
		coMin = min(coMin, f[baatzCompactness])
		coMax = max(coMax, f[baatzCompactness])
		smMin = min(smMin, f[baatzSmoothness])
		smMax = max(smMax, f[baatzSmoothness])
	}

	for i := 0; i < b.bands; i++ {
		b.spreadOffsets[i], b.spreadGains[i] = normalization(spreadMin[i], spreadMax[i])
	}
	b.compactnessOffset, b.compactnessGain = normalization(coMin, coMax)
	b.smoothnessOffset, b.smoothnessGain = normalization(smMin, smMax)
}

func normalization(lo, hi float64) (offset, gain float64) {
	if lo > hi {
		// No alive segments.
		return 0, 1
	}
	if lo == hi {
		if hi == 0 {
			return 0, 1
		}
		return 0, 1 / hi
	}
	return -lo, 1 / (hi - lo)
}
