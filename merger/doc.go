// Package merger implements the segment similarity and feature aggregation
// rules used by region growing.
//
// Two mergers are provided:
//
//   - Mean: one running mean per band, similarity from the Euclidean
//     distance between means.
//   - Baatz: the Baatz/Schäpe multi-criteria heterogeneity, mixing a color
//     term (change of per-band spread on merge) and a form term (change of
//     compactness and smoothness).
//
// A merger owns whatever global normalization state it needs; Update
// refreshes it from the alive segments once per merge pass.
package merger
