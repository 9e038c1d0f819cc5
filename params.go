package regiongrow

import (
	"fmt"
	"math"
)

// FeatureType selects the merger.
type FeatureType int

const (
	// FeatureMean merges on the per-band running mean.
	FeatureMean FeatureType = iota + 1
	// FeatureBaatz merges on the Baatz/Schäpe color and form heterogeneity.
	FeatureBaatz
)

func (f FeatureType) String() string {
	switch f {
	case FeatureMean:
		return "mean"
	case FeatureBaatz:
		return "baatz"
	default:
		return fmt.Sprintf("features(%d)", int(f))
	}
}

// ParseFeatureType parses "mean" or "baatz".
func ParseFeatureType(s string) (FeatureType, error) {
	switch s {
	case "mean":
		return FeatureMean, nil
	case "baatz":
		return FeatureBaatz, nil
	default:
		return 0, paramErr("SegmentFeatures", "unknown feature type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f FeatureType) MarshalText() ([]byte, error) {
	if f != FeatureMean && f != FeatureBaatz {
		return nil, paramErr("SegmentFeatures", "unknown feature type %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FeatureType) UnmarshalText(b []byte) error {
	v, err := ParseFeatureType(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

const bandsWeightsTolerance = 1e-9

// Params configures a Strategy.
type Params struct {
	// MinSegmentSize is the minimum number of pixels per final segment.
	// Values above 1 enable the small segment absorption phase.
	MinSegmentSize uint32

	// SimilarityThreshold is the lowest similarity accepted by the main
	// merge loop, in [0, 1].
	SimilarityThreshold float64

	// SimIncreaseSteps is the number of relaxation steps between 1.0 and
	// SimilarityThreshold.
	SimIncreaseSteps uint32

	// EnableLocalMutualBestFitting requires the candidate's own best
	// neighbor to be the current segment before merging.
	EnableLocalMutualBestFitting bool

	// EnableSameIterationMerges allows a segment to merge more than once
	// per pass.
	EnableSameIterationMerges bool

	// SegmentFeatures selects the merger.
	SegmentFeatures FeatureType

	// BandsWeights holds one weight per input band. Empty means equal
	// weights; otherwise the weights must sum to 1.
	BandsWeights []float64

	// ColorWeight and CompactnessWeight are Baatz blend weights in [0, 1].
	ColorWeight       float64
	CompactnessWeight float64
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		MinSegmentSize:      100,
		SimilarityThreshold: 0.9,
		SimIncreaseSteps:    10,
		SegmentFeatures:     FeatureMean,
		ColorWeight:         0.5,
		CompactnessWeight:   0.5,
	}
}

// Validate checks p.
func (p Params) Validate() error {
	if p.MinSegmentSize == 0 {
		return paramErr("MinSegmentSize", "must be greater than 0")
	}
	if math.IsNaN(p.SimilarityThreshold) || p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return paramErr("SimilarityThreshold", "must be in [0, 1], got %v", p.SimilarityThreshold)
	}
	if p.SegmentFeatures != FeatureMean && p.SegmentFeatures != FeatureBaatz {
		return paramErr("SegmentFeatures", "invalid feature type %v", p.SegmentFeatures)
	}
	if len(p.BandsWeights) > 0 {
		var sum float64
		for i, w := range p.BandsWeights {
			if math.IsNaN(w) || w < 0 {
				return paramErr("BandsWeights", "weight %d is %v", i, w)
			}
			sum += w
		}
		if math.Abs(sum-1) > bandsWeightsTolerance {
			return paramErr("BandsWeights", "must sum to 1, got %v", sum)
		}
	}
	if p.SegmentFeatures == FeatureBaatz {
		if !inUnit(p.ColorWeight) {
			return paramErr("ColorWeight", "must be in [0, 1], got %v", p.ColorWeight)
		}
		if !inUnit(p.CompactnessWeight) {
			return paramErr("CompactnessWeight", "must be in [0, 1], got %v", p.CompactnessWeight)
		}
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (p Params) clone() Params {
	p.BandsWeights = append([]float64(nil), p.BandsWeights...)
	return p
}
