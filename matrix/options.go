package matrix

import "github.com/hupe1980/regiongrow/resource"

const (
	// DefaultMaxTmpFileSize is the largest backing file a matrix creates (2 GiB).
	DefaultMaxTmpFileSize int64 = 2 << 30
	// DefaultMaxMemPercent is the share of available memory an Auto matrix may use.
	DefaultMaxMemPercent = 40.0
)

type options struct {
	maxTmpFileSize int64
	maxMemPercent  float64
	maxRAMLines    int
	tempDir        string
	rc             *resource.Controller
	memAvailable   func() (uint64, error)
}

// Option configures Reset.
type Option func(*options)

// WithMaxTmpFileSize caps the size of each backing file. Every file holds at
// least one row regardless of the cap.
func WithMaxTmpFileSize(bytes int64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.maxTmpFileSize = bytes
		}
	}
}

// WithMaxMemPercent sets the percentage (0,100] of available memory an Auto
// matrix may keep resident.
func WithMaxMemPercent(pct float64) Option {
	return func(o *options) {
		if pct > 0 && pct <= 100 {
			o.maxMemPercent = pct
		}
	}
}

// WithMaxRAMLines sets the resident window of a Disk matrix (default 1).
// Auto matrices ignore it.
func WithMaxRAMLines(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRAMLines = n
		}
	}
}

// WithTempDir sets the directory for backing files (default os.TempDir()).
func WithTempDir(dir string) Option {
	return func(o *options) {
		o.tempDir = dir
	}
}

// WithResourceController accounts the resident rows against rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// withMemAvailable overrides the available-memory query used by Auto. Tests only.
func withMemAvailable(fn func() (uint64, error)) Option {
	return func(o *options) {
		o.memAvailable = fn
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		maxTmpFileSize: DefaultMaxTmpFileSize,
		maxMemPercent:  DefaultMaxMemPercent,
		maxRAMLines:    1,
		memAvailable:   availableMemory,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
