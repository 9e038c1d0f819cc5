package conv

import (
	"fmt"
	"math"
)

// IntToUint32 converts int to uint32, rejecting negative or too large values.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d cannot be converted to uint32 (negative)", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d cannot be converted to uint32 (too large)", v)
	}
	return uint32(v), nil
}

// Uint64ToInt converts uint64 to int, rejecting values above math.MaxInt.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("conv: %d cannot be converted to int (too large)", v)
	}
	return int(v), nil
}

// MulInt multiplies two non-negative ints, failing on overflow.
func MulInt(a, b int) (int, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("conv: negative operand in %d*%d", a, b)
	}
	if a != 0 && b > math.MaxInt/a {
		return 0, fmt.Errorf("conv: %d*%d overflows int", a, b)
	}
	return a * b, nil
}
