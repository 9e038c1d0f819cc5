package merger

import (
	"iter"

	"github.com/hupe1980/regiongrow/segment"
)

// Merger computes similarity between segments and merges their features.
type Merger interface {
	// FeaturesLen returns the feature vector length per segment.
	FeaturesLen() int

	// InitPixel sets the features of a single-pixel segment from its
	// adjusted band values and their squares.
	InitPixel(s *segment.Segment, values, squares []float64)

	// Similarity returns a score in [0, 1] (1 = identical) and writes what
	// the merged segment would look like into preview. a and b are not
	// modified.
	Similarity(a, b, preview *segment.Segment) float64

	// Merge commits b into a, using the preview produced by Similarity
	// for the same pair. b is left untouched.
	Merge(a, b, preview *segment.Segment)

	// Update recomputes global normalization from the alive segments.
	Update(alive iter.Seq[*segment.Segment])
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
