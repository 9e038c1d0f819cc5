package matrix

import (
	"errors"
	"fmt"
)

// Element is the set of fixed-size numeric types a Matrix can hold.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Policy selects where matrix rows are kept.
type Policy int

const (
	// RAM keeps every row in memory.
	RAM Policy = iota
	// Disk keeps a fixed window of rows in memory and the rest in temporary files.
	Disk
	// Auto sizes the memory window from the available system memory.
	Auto
)

func (p Policy) String() string {
	switch p {
	case RAM:
		return "ram"
	case Disk:
		return "disk"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "ram", "disk" or "auto".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "ram":
		return RAM, nil
	case "disk":
		return Disk, nil
	case "auto":
		return Auto, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

var (
	// ErrInvalidDimensions is returned by Reset for negative dimensions.
	ErrInvalidDimensions = errors.New("matrix: invalid dimensions")
	// ErrInvalidPolicy is returned by Reset for an unknown policy.
	ErrInvalidPolicy = errors.New("matrix: invalid memory policy")
)

// SwapError is the panic value raised when a row swap cannot access its
// backing storage.
type SwapError struct {
	Row int
	Err error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("matrix: swapping row %d: %v", e.Row, e.Err)
}

func (e *SwapError) Unwrap() error { return e.Err }

// Stats reports paging activity.
type Stats struct {
	Policy       Policy // effective policy (Auto resolved to RAM or Disk)
	RAMLines     int
	DiskLines    int
	BackingFiles int
	Swaps        uint64
}
