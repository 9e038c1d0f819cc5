package segment

import "github.com/hupe1980/regiongrow/resource"

type options struct {
	rc               *resource.Controller
	offHeapThreshold int
}

// Option configures a Pool.
type Option func(*options)

// WithResourceController accounts pool memory against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithOffHeapThreshold sets the feature buffer size, in bytes, from which
// the buffer is mapped outside the Go heap. Zero or negative disables it.
func WithOffHeapThreshold(bytes int) Option {
	return func(o *options) {
		if bytes <= 0 {
			bytes = int(^uint(0) >> 1)
		}
		o.offHeapThreshold = bytes
	}
}

func applyOptions(opts []Option) options {
	o := options{offHeapThreshold: DefaultOffHeapThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
