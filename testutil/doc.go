// Package testutil provides testing utilities for regiongrow.
//
// This package is intended for use in tests and benchmarks only.
// It provides deterministic raster generators and checkers for
// segment-ID matrices.
//
// # Raster Generation
//
//	rng := testutil.NewRNG(seed)
//	g := rng.PatchGrid(64, 64, 8, 0.01) // 8x8 constant patches plus noise
//
// # Label Checks
//
//	sizes := testutil.LabelSizes(labels)
//	err := testutil.CheckConnected(labels)
package testutil
