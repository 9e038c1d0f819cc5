// Package raster defines the minimal pixel access contract consumed by the
// segmentation engine and a few adapters around it: an in-memory Grid,
// rectangular windows, and conversions from and to Go images.
package raster
