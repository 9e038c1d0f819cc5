package sysmem

import "errors"

// ErrUnsupported is returned on platforms without a memory statistics source.
var ErrUnsupported = errors.New("sysmem: unsupported platform")

// Stats holds a memory snapshot in bytes.
type Stats struct {
	TotalPhysical uint64
	TotalVirtual  uint64 // physical + swap
	UsedVirtual   uint64
}

// FreeVirtual returns TotalVirtual - UsedVirtual, saturating at zero.
func (s Stats) FreeVirtual() uint64 {
	if s.UsedVirtual >= s.TotalVirtual {
		return 0
	}
	return s.TotalVirtual - s.UsedVirtual
}

// Available returns the memory an allocation may count on:
// min(total physical, free virtual).
func (s Stats) Available() uint64 {
	return min(s.TotalPhysical, s.FreeVirtual())
}

// Read returns the current memory statistics.
func Read() (Stats, error) {
	return read()
}
