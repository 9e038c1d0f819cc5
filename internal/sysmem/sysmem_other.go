//go:build !linux && !darwin

package sysmem

func read() (Stats, error) {
	return Stats{}, ErrUnsupported
}
