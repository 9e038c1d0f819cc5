// Package resource governs the resources a segmentation run may consume.
//
// A Controller is shared by every component of one process that allocates
// large buffers or starts work:
//
//   - Memory: matrices and segment pools reserve their RAM footprint before
//     allocating (fail-fast with TryAcquireMemory, or blocking with AcquireMemory).
//   - Workers: the block Segmenter takes one worker slot per block it runs.
//   - IO: label exports are throttled through RateLimitedWriter.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 4 << 30,
//	    MaxWorkers:       4,
//	})
//
// All methods are safe for concurrent use, and every method treats a nil
// *Controller as "unlimited", so callers never need nil checks.
package resource
