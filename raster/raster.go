package raster

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidBand is returned when a band index is out of range.
	ErrInvalidBand = errors.New("raster: invalid band")
	// ErrInvalidWindow is returned when a window does not fit its parent.
	ErrInvalidWindow = errors.New("raster: invalid window")
	// ErrInvalidSize is returned for negative dimensions.
	ErrInvalidSize = errors.New("raster: invalid size")
)

// Raster is read-only multi-band pixel access.
type Raster interface {
	Rows() int
	Cols() int
	Bands() int
	// Value returns the pixel value at (col, row) in band.
	Value(col, row, band int) float64
	// NoData returns the band's no-data value, if it has one.
	NoData(band int) (float64, bool)
}

// Writable is a raster that accepts pixel values.
type Writable interface {
	Rows() int
	Cols() int
	SetValue(col, row, band int, v float64)
}

// MinMaxer is implemented by rasters that know their per-band value range.
type MinMaxer interface {
	MinMax(band int) (lo, hi float64, ok bool)
}

// IsNoData reports whether v is the no-data value nd. NaN matches NaN.
func IsNoData(v, nd float64) bool {
	if math.IsNaN(nd) {
		return math.IsNaN(v)
	}
	return v == nd
}

// BandMinMax returns the value range of band, ignoring no-data and NaN pixels.
// It uses MinMaxer when r provides it. ok is false when every pixel is
// no-data.
func BandMinMax(r Raster, band int) (lo, hi float64, ok bool, err error) {
	if band < 0 || band >= r.Bands() {
		return 0, 0, false, fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	if mm, is := r.(MinMaxer); is {
		lo, hi, ok = mm.MinMax(band)
		return lo, hi, ok, nil
	}

	nd, hasND := r.NoData(band)
	lo, hi = math.Inf(1), math.Inf(-1)
	for row := 0; row < r.Rows(); row++ {
		for col := 0; col < r.Cols(); col++ {
			v := r.Value(col, row, band)
			if math.IsNaN(v) || (hasND && IsNoData(v, nd)) {
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok, nil
}
