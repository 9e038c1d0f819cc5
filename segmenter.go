package regiongrow

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/regiongrow/raster"
)

// SegmenterStats summarizes a Segmenter run.
type SegmenterStats struct {
	Blocks   int
	Segments int
	Duration time.Duration
}

// Segmenter splits a raster into blocks and segments them concurrently,
// one Strategy per block. Blocks share an IDManager, so segment IDs are
// unique across the whole output. Segments never span a block border.
type Segmenter struct {
	opts    options
	optList []Option
}

// NewSegmenter returns a Segmenter. The options also configure the
// per-block strategies.
func NewSegmenter(opts ...Option) *Segmenter {
	return &Segmenter{
		opts:    applyOptions(opts),
		optList: opts,
	}
}

// Blocks returns the block rectangles for a rows×cols raster, in row-major
// order.
func (sg *Segmenter) Blocks(rows, cols int) []image.Rectangle {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	if sg.opts.maxBlockPixels <= 0 || rows*cols <= sg.opts.maxBlockPixels {
		return []image.Rectangle{image.Rect(0, 0, cols, rows)}
	}

	side := max(1, int(math.Sqrt(float64(sg.opts.maxBlockPixels))))
	var blocks []image.Rectangle
	for y := 0; y < rows; y += side {
		for x := 0; x < cols; x += side {
			blocks = append(blocks, image.Rect(x, y, min(x+side, cols), min(y+side, rows)))
		}
	}
	return blocks
}

// Segment runs params over in block by block. in.Output is required.
// Gains and offsets are resolved once for the whole raster.
func (sg *Segmenter) Segment(ctx context.Context, params Params, in ExecuteInput) (SegmenterStats, error) {
	start := time.Now()

	if err := params.Validate(); err != nil {
		return SegmenterStats{}, err
	}
	if in.Output == nil {
		return SegmenterStats{}, paramErr("Output", "must not be nil")
	}

	// Resolve bands, gains and offsets against the full raster.
	resolver := New(sg.optList...)
	if err := resolver.Initialize(params); err != nil {
		return SegmenterStats{}, err
	}
	bands, gains, offsets, err := resolver.prepareInput(in)
	if err != nil {
		return SegmenterStats{}, err
	}

	idm := in.IDs
	if idm == nil {
		idm = NewIDManager()
	}

	blocks := sg.Blocks(in.Raster.Rows(), in.Raster.Cols())
	stats := SegmenterStats{Blocks: len(blocks)}

	var (
		mu   sync.Mutex
		done int
	)

	rc := sg.opts.rc
	g, gctx := errgroup.WithContext(ctx)
	if rc == nil {
		g.SetLimit(runtime.GOMAXPROCS(0))
	}

	for i, rect := range blocks {
		if err := rc.AcquireWorker(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer rc.ReleaseWorker()

			n, err := sg.runBlock(gctx, i, rect, params, ExecuteInput{
				Raster:     in.Raster,
				Bands:      bands,
				Gains:      gains,
				Offsets:    offsets,
				IDs:        idm,
				Output:     in.Output,
				OutputBand: in.OutputBand,
			})
			if err != nil {
				return fmt.Errorf("block %d %v: %w", i, rect, err)
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Segments += n
			done++
			if sg.opts.progress != nil {
				sg.opts.progress(done * 100 / len(blocks))
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		// The block loop may have stopped early on a canceled parent.
		err = checkCanceled(ctx)
	}
	stats.Duration = time.Since(start)
	return stats, err
}

func (sg *Segmenter) runBlock(ctx context.Context, index int, rect image.Rectangle, params Params, in ExecuteInput) (int, error) {
	logger := sg.opts.logger.WithBlock(index, rect)

	src, err := raster.NewWindow(in.Raster, rect)
	if err != nil {
		return 0, err
	}
	dst, err := raster.NewWritableWindow(in.Output, rect)
	if err != nil {
		return 0, err
	}

	opts := append(append([]Option(nil), sg.optList...),
		WithLogger(logger),
		WithProgress(nil),
		WithNormalizeBands(false),
	)
	st := New(opts...)
	defer func() { _ = st.Reset() }()

	if err := st.Initialize(params); err != nil {
		return 0, err
	}

	in.Raster = src
	in.Output = dst
	err = st.Execute(ctx, in)
	segments := st.Stats().Segments
	logger.LogBlock(ctx, segments, err)
	return segments, err
}
