package raster

import (
	"fmt"
	"image"
)

// Window is a rectangular view into a Raster.
type Window struct {
	parent Raster
	rect   image.Rectangle
}

var _ Raster = (*Window)(nil)

// NewWindow returns a view of r restricted to rect (in parent pixel
// coordinates, Min inclusive, Max exclusive).
func NewWindow(r Raster, rect image.Rectangle) (*Window, error) {
	if err := checkRect(rect, r.Rows(), r.Cols()); err != nil {
		return nil, err
	}
	return &Window{parent: r, rect: rect}, nil
}

func (w *Window) Rows() int  { return w.rect.Dy() }
func (w *Window) Cols() int  { return w.rect.Dx() }
func (w *Window) Bands() int { return w.parent.Bands() }

// Value implements Raster.
func (w *Window) Value(col, row, band int) float64 {
	return w.parent.Value(col+w.rect.Min.X, row+w.rect.Min.Y, band)
}

// NoData implements Raster.
func (w *Window) NoData(band int) (float64, bool) {
	return w.parent.NoData(band)
}

// Rect returns the window rectangle in parent coordinates.
func (w *Window) Rect() image.Rectangle { return w.rect }

// WritableWindow is a rectangular view into a Writable.
type WritableWindow struct {
	parent Writable
	rect   image.Rectangle
}

var _ Writable = (*WritableWindow)(nil)

// NewWritableWindow returns a writable view of w restricted to rect.
func NewWritableWindow(w Writable, rect image.Rectangle) (*WritableWindow, error) {
	if err := checkRect(rect, w.Rows(), w.Cols()); err != nil {
		return nil, err
	}
	return &WritableWindow{parent: w, rect: rect}, nil
}

func (w *WritableWindow) Rows() int { return w.rect.Dy() }
func (w *WritableWindow) Cols() int { return w.rect.Dx() }

// SetValue implements Writable.
func (w *WritableWindow) SetValue(col, row, band int, v float64) {
	w.parent.SetValue(col+w.rect.Min.X, row+w.rect.Min.Y, band, v)
}

func checkRect(rect image.Rectangle, rows, cols int) error {
	bounds := image.Rect(0, 0, cols, rows)
	if rect.Empty() || !rect.In(bounds) {
		return fmt.Errorf("%w: %v not in %v", ErrInvalidWindow, rect, bounds)
	}
	return nil
}
