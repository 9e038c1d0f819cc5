// Package matrix provides Matrix, a generic rows×cols array that can keep
// most of its rows on disk.
//
// # Memory Policies
//
//   - RAM: every row lives in one heap slab.
//   - Disk: only a small window of rows (one by default) is resident; the
//     remaining rows live in temporary files mapped read-write. Touching a
//     non-resident row swaps it with a resident victim chosen round-robin.
//   - Auto: the RAM window is sized from the machine's memory:
//     max(1, pct/100 * min(physical, free virtual) / rowBytes). When every row
//     fits, the matrix behaves exactly like RAM.
//
// # Usage
//
//	ids := matrix.New[uint32]()
//	if err := ids.Reset(rows, cols, matrix.Auto, matrix.WithMaxMemPercent(30)); err != nil {
//	    return err
//	}
//	defer ids.Clear()
//
//	row := ids.Row(y) // valid until the next Row/At/Set call
//	row[x] = id
//
// # Consistency
//
// A slice returned by Row aliases a resident buffer. Under the Disk and Auto
// policies a later access may evict that buffer and reuse it for another
// row, so callers must not hold a row slice across accesses to other rows.
// The RAM window never exceeds RAMLines() rows.
//
// # Errors
//
// Reset reports allocation and backing-file failures. A swap that cannot
// reach its backing mapping panics with a *SwapError; swaps run inside plain
// element access, and continuing after a failed swap would corrupt the matrix.
//
// A Matrix is not safe for concurrent use.
package matrix
