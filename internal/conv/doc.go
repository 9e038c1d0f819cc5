// Package conv provides checked integer conversions.
//
// Raster dimensions arrive as int but segment IDs, handles and pixel
// coordinates are stored as uint32; label blobs read from storage carry
// uint64 sizes. These helpers reject values that do not fit instead of
// silently wrapping.
package conv
