// Package segment holds the region-growing segment graph: the Segment value,
// the Pool arena that owns every segment of one execution, and the Indexer
// that tracks which segments are still alive.
//
// # Handles
//
// Segments reference each other through Handle values, stable indices into
// the Pool. The neighbor graph is cyclic; handles never dangle because the
// pool owns every slot for the lifetime of the execution and slots are never
// freed individually. A merged-away segment simply leaves the Indexer and
// has its neighbor list cleared.
//
// # Feature Buffers
//
// Each slot has a fixed-length float64 feature vector. All vectors live in
// one flat buffer; large buffers are mapped outside the Go heap so tens of
// millions of feature values add no GC scanning work.
package segment
