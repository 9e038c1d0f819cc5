// Package regiongrow segments multi-band rasters by iterative region growing.
//
// Every valid pixel starts as its own segment. Each merge pass visits the
// alive segments in scan order and merges into each one its most similar
// neighbor, as long as the similarity exceeds the current threshold. The
// threshold starts at 1.0 and relaxes in fixed steps towards the
// configured SimilarityThreshold whenever a pass merges nothing. A final
// absorption phase folds segments smaller than MinSegmentSize into their
// most similar neighbor.
//
// # Quick Start
//
//	img, _ := raster.Load("scene.png", true)
//
//	s := regiongrow.New(regiongrow.WithNormalizeBands(true))
//	params := regiongrow.DefaultParams()
//	params.SegmentFeatures = regiongrow.FeatureBaatz
//	if err := s.Initialize(params); err != nil {
//	    return err
//	}
//	if err := s.Execute(ctx, regiongrow.ExecuteInput{Raster: img}); err != nil {
//	    return err
//	}
//	labels := s.Labels() // *matrix.Matrix[uint32], 0 = no-data
//
// # Similarity
//
// FeatureMean compares per-band running means. FeatureBaatz compares the
// color and form heterogeneity of the hypothetical merge result, with
// ColorWeight blending color against form and CompactnessWeight blending
// compactness against smoothness.
//
// # Large Rasters
//
// The segment-ID matrix can page rows to disk:
//
//	s := regiongrow.New(regiongrow.WithMatrixPolicy(matrix.Auto))
//
// A Segmenter splits the raster into blocks and runs one Strategy per
// block concurrently, bounded by a resource.Controller:
//
//	rc := resource.NewController(resource.Config{MaxWorkers: 4, MemoryLimitBytes: 8 << 30})
//	sg := regiongrow.NewSegmenter(regiongrow.WithResourceController(rc))
//	stats, err := sg.Segment(ctx, params, regiongrow.ExecuteInput{Raster: img, Output: out})
//
// # Errors
//
// Configuration errors wrap ErrInvalidParameter, allocation failures wrap
// ErrResourceExhausted, disk paging failures wrap ErrIO and a done context
// yields ErrCanceled. After a failed Execute the strategy exposes no
// result and can be run again.
package regiongrow
