package raster

import (
	"fmt"
	"math"
)

// Grid is an in-memory float64 raster stored band-interleaved by pixel.
// Concurrent writes to distinct pixels are safe.
type Grid struct {
	rows, cols, bands int
	data              []float64
	noData            []float64
	hasNoData         []bool
}

var (
	_ Raster   = (*Grid)(nil)
	_ Writable = (*Grid)(nil)
	_ MinMaxer = (*Grid)(nil)
)

// NewGrid returns a zeroed rows×cols grid with the given number of bands.
func NewGrid(rows, cols, bands int) (*Grid, error) {
	if rows < 0 || cols < 0 || bands <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidSize, rows, cols, bands)
	}
	return &Grid{
		rows:      rows,
		cols:      cols,
		bands:     bands,
		data:      make([]float64, rows*cols*bands),
		noData:    make([]float64, bands),
		hasNoData: make([]bool, bands),
	}, nil
}

// GridFromRows builds a single-band grid from row slices.
func GridFromRows(values [][]float64) (*Grid, error) {
	cols := 0
	if len(values) > 0 {
		cols = len(values[0])
	}
	g, err := NewGrid(len(values), cols, 1)
	if err != nil {
		return nil, err
	}
	for r, row := range values {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidSize, r, len(row), cols)
		}
		copy(g.data[r*cols:], row)
	}
	return g, nil
}

func (g *Grid) Rows() int  { return g.rows }
func (g *Grid) Cols() int  { return g.cols }
func (g *Grid) Bands() int { return g.bands }

func (g *Grid) index(col, row, band int) int {
	return (row*g.cols+col)*g.bands + band
}

// Value implements Raster.
func (g *Grid) Value(col, row, band int) float64 {
	return g.data[g.index(col, row, band)]
}

// SetValue implements Writable.
func (g *Grid) SetValue(col, row, band int, v float64) {
	g.data[g.index(col, row, band)] = v
}

// NoData implements Raster.
func (g *Grid) NoData(band int) (float64, bool) {
	return g.noData[band], g.hasNoData[band]
}

// SetNoData sets the no-data value of band.
func (g *Grid) SetNoData(band int, v float64) {
	g.noData[band] = v
	g.hasNoData[band] = true
}

// MinMax implements MinMaxer.
func (g *Grid) MinMax(band int) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := band; i < len(g.data); i += g.bands {
		v := g.data[i]
		if math.IsNaN(v) || (g.hasNoData[band] && IsNoData(v, g.noData[band])) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
		ok = true
	}
	return lo, hi, ok
}
