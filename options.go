package regiongrow

import (
	"log/slog"

	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/resource"
	"github.com/hupe1980/regiongrow/segment"
)

// DefaultMaxBlockPixels is the default block size limit of a Segmenter.
const DefaultMaxBlockPixels = 4 << 20

// ProgressFunc receives the completion percentage of a run, 0 to 100.
// The main merge loop covers 0-50 and small segment absorption 50-100.
// Values never decrease within a run.
type ProgressFunc func(percent int)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	progress         ProgressFunc
	matrixPolicy     matrix.Policy
	matrixOptions    []matrix.Option
	rc               *resource.Controller
	normalizeBands   bool
	offHeapThreshold int
	maxBlockPixels   int
}

// Option configures a Strategy or a Segmenter.
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		matrixPolicy:     matrix.RAM,
		offHeapThreshold: segment.DefaultOffHeapThreshold,
		maxBlockPixels:   DefaultMaxBlockPixels,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for pass, run and block events.
//
// If nil is passed, logging is disabled.
//
// Example:
//
//	s := regiongrow.New(regiongrow.WithLogger(regiongrow.NewJSONLogger(slog.LevelDebug)))
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel installs a text logger to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics sink.
//
// If nil is passed, metrics are discarded.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithProgress registers a progress callback. It is called from the
// goroutine running Execute.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithMatrixPolicy sets the memory policy of the segment-ID matrix.
// The default is matrix.RAM.
//
// Use matrix.Auto for rasters that may not fit in memory:
//
//	s := regiongrow.New(
//	    regiongrow.WithMatrixPolicy(matrix.Auto),
//	    regiongrow.WithMatrixOptions(matrix.WithMaxMemPercent(25)),
//	)
func WithMatrixPolicy(p matrix.Policy) Option {
	return func(o *options) {
		o.matrixPolicy = p
	}
}

// WithMatrixOptions passes options to the segment-ID matrix.
func WithMatrixOptions(opts ...matrix.Option) Option {
	return func(o *options) {
		o.matrixOptions = append(o.matrixOptions, opts...)
	}
}

// WithResourceController accounts the segment pool and the ID matrix
// against rc and, for a Segmenter, bounds the number of blocks processed
// concurrently by rc.MaxWorkers().
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithNormalizeBands derives per-band gains and offsets from the band
// value range so features fall in [0, 1]. Explicit gains and offsets in
// ExecuteInput take precedence.
func WithNormalizeBands(enabled bool) Option {
	return func(o *options) {
		o.normalizeBands = enabled
	}
}

// WithOffHeapThreshold sets the feature buffer size from which the segment
// pool maps memory outside the Go heap. Values <= 0 keep it on the heap.
func WithOffHeapThreshold(bytes int) Option {
	return func(o *options) {
		o.offHeapThreshold = bytes
	}
}

// WithMaxBlockPixels bounds the pixel count of a Segmenter block.
// Values <= 0 process the whole raster as one block.
func WithMaxBlockPixels(n int) Option {
	return func(o *options) {
		o.maxBlockPixels = n
	}
}
