package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/raster"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// NoiseGrid returns a rows×cols grid with uniform values in [lo, hi).
func (r *RNG) NoiseGrid(rows, cols, bands int, lo, hi float64) *raster.Grid {
	g := mustGrid(rows, cols, bands)

	r.mu.Lock()
	defer r.mu.Unlock()
	for row := range rows {
		for col := range cols {
			for b := range bands {
				g.SetValue(col, row, b, lo+r.rand.Float64()*(hi-lo))
			}
		}
	}
	return g
}

// PatchGrid returns a single-band grid made of patch×patch squares. Each
// square has a random level in [0, 1) and every pixel adds uniform noise
// in [0, noise).
func (r *RNG) PatchGrid(rows, cols, patch int, noise float64) *raster.Grid {
	g := mustGrid(rows, cols, 1)

	r.mu.Lock()
	defer r.mu.Unlock()

	patchRows := (rows + patch - 1) / patch
	patchCols := (cols + patch - 1) / patch
	levels := make([]float64, patchRows*patchCols)
	for i := range levels {
		levels[i] = r.rand.Float64()
	}
	for row := range rows {
		for col := range cols {
			level := levels[(row/patch)*patchCols+col/patch]
			g.SetValue(col, row, 0, level+r.rand.Float64()*noise)
		}
	}
	return g
}

// UniformGrid returns a single-band grid where every pixel is v.
func UniformGrid(rows, cols int, v float64) *raster.Grid {
	g := mustGrid(rows, cols, 1)
	for row := range rows {
		for col := range cols {
			g.SetValue(col, row, 0, v)
		}
	}
	return g
}

// RampGrid returns a single-band grid whose pixel (col, row) holds
// (row*cols + col) * step. No two pixels are equal when step != 0.
func RampGrid(rows, cols int, step float64) *raster.Grid {
	g := mustGrid(rows, cols, 1)
	for row := range rows {
		for col := range cols {
			g.SetValue(col, row, 0, float64(row*cols+col)*step)
		}
	}
	return g
}

func mustGrid(rows, cols, bands int) *raster.Grid {
	g, err := raster.NewGrid(rows, cols, bands)
	if err != nil {
		panic(err)
	}
	return g
}

// LabelSizes returns the pixel count of every non-zero label.
func LabelSizes(ids *matrix.Matrix[uint32]) map[uint32]int {
	sizes := make(map[uint32]int)
	for row := 0; row < ids.Rows(); row++ {
		for _, id := range ids.Row(row) {
			if id != 0 {
				sizes[id]++
			}
		}
	}
	return sizes
}

// CountZero returns the number of zero (no-data) labels.
func CountZero(ids *matrix.Matrix[uint32]) int {
	n := 0
	for row := 0; row < ids.Rows(); row++ {
		for _, id := range ids.Row(row) {
			if id == 0 {
				n++
			}
		}
	}
	return n
}

// CheckConnected verifies that the pixels of every non-zero label form a
// single 4-connected region.
func CheckConnected(ids *matrix.Matrix[uint32]) error {
	rows, cols := ids.Rows(), ids.Cols()
	visited := make([]bool, rows*cols)
	seen := make(map[uint32]bool)
	stack := make([][2]int, 0, 64)

	for row := range rows {
		for col := range cols {
			id := ids.At(row, col)
			if id == 0 || visited[row*cols+col] {
				continue
			}
			if seen[id] {
				return fmt.Errorf("label %d has a detached region at (%d, %d)", id, col, row)
			}
			seen[id] = true

			visited[row*cols+col] = true
			stack = append(stack[:0], [2]int{row, col})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
					y, x := p[0]+d[0], p[1]+d[1]
					if y < 0 || y >= rows || x < 0 || x >= cols || visited[y*cols+x] {
						continue
					}
					if ids.At(y, x) == id {
						visited[y*cols+x] = true
						stack = append(stack, [2]int{y, x})
					}
				}
			}
		}
	}
	return nil
}
