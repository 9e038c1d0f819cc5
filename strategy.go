package regiongrow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/merger"
	"github.com/hupe1980/regiongrow/raster"
	"github.com/hupe1980/regiongrow/segment"
)

// State is the lifecycle state of a Strategy.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateSegmenting
	StateAbsorbing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateSegmenting:
		return "segmenting"
	case StateAbsorbing:
		return "absorbing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// scratchSegments is the number of pool slots reserved for previews.
const scratchSegments = 3

// ExecuteInput describes one segmentation run.
type ExecuteInput struct {
	// Raster is the input image.
	Raster raster.Raster
	// Bands lists the input bands to use. Nil means all bands.
	Bands []int
	// Gains and Offsets adjust pixel values as (v + offset) * gain, one
	// entry per selected band. Nil means gain 1 and offset 0, unless
	// band normalization is enabled.
	Gains   []float64
	Offsets []float64
	// IDs allocates segment IDs. Nil uses a private manager.
	IDs *IDManager
	// Output, if set, receives the final segment IDs in OutputBand.
	// It must have the input raster's dimensions.
	Output     raster.Writable
	OutputBand int
}

// RunStats summarizes the last run.
type RunStats struct {
	Pixels           int
	InitialSegments  int
	Segments         int
	Passes           int
	Merges           int
	AbsorptionPasses int
	Absorbed         int
	FinalThreshold   float64
	Duration         time.Duration
}

// Strategy segments a raster by iterative region growing.
//
// A Strategy is not safe for concurrent use; run one per goroutine.
type Strategy struct {
	opts   options
	params Params
	state  State

	pool    *segment.Pool
	ids     *matrix.Matrix[uint32]
	indexer *segment.Indexer
	merger  merger.Merger
	touched *roaring.Bitmap

	aux1, aux2, aux3 segment.Handle

	stats    RunStats
	progress int
	logEvery rate.Sometimes
}

// New returns an uninitialized Strategy.
func New(opts ...Option) *Strategy {
	o := applyOptions(opts)
	return &Strategy{
		opts: o,
		pool: segment.NewPool(
			segment.WithResourceController(o.rc),
			segment.WithOffHeapThreshold(o.offHeapThreshold),
		),
		ids:      matrix.New[uint32](),
		indexer:  segment.NewIndexer(),
		touched:  roaring.New(),
		logEvery: rate.Sometimes{First: 1, Interval: time.Second},
	}
}

// Initialize validates p and prepares the strategy for Execute.
func (s *Strategy) Initialize(p Params) error {
	s.state = StateUninitialized
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p.clone()
	s.state = StateInitialized
	return nil
}

// State returns the current lifecycle state.
func (s *Strategy) State() State { return s.state }

// Params returns the parameters passed to Initialize.
func (s *Strategy) Params() Params { return s.params.clone() }

// Stats returns the statistics of the last run.
func (s *Strategy) Stats() RunStats { return s.stats }

// Labels returns the segment-ID matrix of the last successful run, or nil.
// It stays valid until the next Execute or Reset.
func (s *Strategy) Labels() *matrix.Matrix[uint32] {
	if s.state != StateDone {
		return nil
	}
	return s.ids
}

// Segments yields the segments alive after the last successful run, in
// pixel scan order of their first pixel.
func (s *Strategy) Segments() iter.Seq[*segment.Segment] {
	if s.state != StateDone {
		return func(func(*segment.Segment) bool) {}
	}
	return s.alive()
}

// Reset releases the pool and the ID matrix and returns to the
// uninitialized state.
func (s *Strategy) Reset() error {
	s.state = StateUninitialized
	s.params = Params{}
	s.merger = nil
	s.indexer.Clear()
	s.touched.Clear()
	return errors.Join(s.pool.Clear(), s.ids.Clear())
}

// OptimalBlocksOverlapSize returns the block overlap, in pixels, that lets
// a segment of MinSegmentSize pixels fit across a block border.
func (s *Strategy) OptimalBlocksOverlapSize() (int, error) {
	if s.state == StateUninitialized {
		return 0, ErrNotInitialized
	}
	return int(math.Sqrt(float64(s.params.MinSegmentSize))), nil
}

// MemUsageEstimation returns the expected peak memory in bytes for a run
// over pixels pixels with the given number of bands.
func (s *Strategy) MemUsageEstimation(bands, pixels int) (uint64, error) {
	if s.state == StateUninitialized {
		return 0, ErrNotInitialized
	}
	if bands <= 0 || pixels < 0 {
		return 0, paramErr("bands", "invalid estimation input bands=%d pixels=%d", bands, pixels)
	}

	featuresLen := bands
	if s.params.SegmentFeatures == FeatureBaatz {
		featuresLen = merger.BaatzFeaturesLen(bands)
	}

	const (
		idBytes uint64 = 4
		// Four neighbor handles at initialization, doubled by slice growth.
		neighborBytes = 8 * uint64(unsafe.Sizeof(segment.Handle(0)))
		// Roaring containers hold at most two bytes per member.
		indexerBytes uint64 = 2
	)
	perPixel := uint64(unsafe.Sizeof(segment.Segment{})) +
		uint64(featuresLen)*8 +
		neighborBytes + idBytes + indexerBytes
	return perPixel * uint64(pixels+scratchSegments), nil
}

// Execute segments in.Raster. On success the strategy is Done and the IDs
// are available from Labels and, if set, in.Output. On failure no
// segmentation state is exposed and the strategy can run again.
func (s *Strategy) Execute(ctx context.Context, in ExecuteInput) (err error) {
	if s.state == StateUninitialized {
		return ErrNotInitialized
	}
	s.state = StateInitialized
	s.stats = RunStats{}
	s.progress = 0

	start := time.Now()
	rows, cols := 0, 0
	if in.Raster != nil {
		rows, cols = in.Raster.Rows(), in.Raster.Cols()
	}

	defer func() {
		if r := recover(); r != nil {
			swapErr, ok := r.(*matrix.SwapError)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("%w: %w", ErrIO, swapErr)
		}
		s.stats.Duration = time.Since(start)
		if err != nil {
			s.state = StateInitialized
			s.indexer.Clear()
		} else {
			s.state = StateDone
		}
		s.opts.metricsCollector.RecordExecute(rows*cols, s.stats.Segments, s.stats.Duration, err)
		s.opts.logger.LogExecute(ctx, rows, cols, s.stats.Segments, s.stats.Duration, err)
	}()

	bands, gains, offsets, err := s.prepareInput(in)
	if err != nil {
		return err
	}
	if err := checkCanceled(ctx); err != nil {
		return err
	}

	idm := in.IDs
	if idm == nil {
		idm = NewIDManager()
	}

	weights := s.params.BandsWeights
	if len(weights) == 0 {
		weights = make([]float64, len(bands))
		for i := range weights {
			weights[i] = 1 / float64(len(bands))
		}
	}

	if err := s.allocate(rows, cols, len(bands), weights); err != nil {
		return err
	}

	s.stats.Pixels = rows * cols
	if err := s.initializeSegments(in.Raster, bands, gains, offsets, idm); err != nil {
		return err
	}
	s.stats.InitialSegments = s.indexer.Len()

	s.state = StateSegmenting
	if err := s.mergeLoop(ctx, idm); err != nil {
		return err
	}
	s.reportProgress(50)

	if s.params.MinSegmentSize > 1 {
		s.state = StateAbsorbing
		if err := s.absorptionLoop(ctx, idm); err != nil {
			return err
		}
	}
	if err := checkCanceled(ctx); err != nil {
		return err
	}
	s.reportProgress(100)

	if in.Output != nil {
		s.flush(in.Output, in.OutputBand)
	}
	s.stats.Segments = s.indexer.Len()
	return nil
}

func (s *Strategy) prepareInput(in ExecuteInput) (bands []int, gains, offsets []float64, err error) {
	r := in.Raster
	if r == nil {
		return nil, nil, nil, paramErr("Raster", "must not be nil")
	}

	bands = in.Bands
	if bands == nil {
		bands = make([]int, r.Bands())
		for i := range bands {
			bands[i] = i
		}
	}
	if len(bands) == 0 {
		return nil, nil, nil, paramErr("Bands", "no input bands")
	}
	for _, b := range bands {
		if b < 0 || b >= r.Bands() {
			return nil, nil, nil, paramErr("Bands", "band %d out of range [0, %d)", b, r.Bands())
		}
	}
	if n := len(s.params.BandsWeights); n > 0 && n != len(bands) {
		return nil, nil, nil, paramErr("BandsWeights", "%d weights for %d bands", n, len(bands))
	}
	if in.Gains != nil && len(in.Gains) != len(bands) {
		return nil, nil, nil, paramErr("Gains", "%d gains for %d bands", len(in.Gains), len(bands))
	}
	if in.Offsets != nil && len(in.Offsets) != len(bands) {
		return nil, nil, nil, paramErr("Offsets", "%d offsets for %d bands", len(in.Offsets), len(bands))
	}
	if out := in.Output; out != nil && (out.Rows() != r.Rows() || out.Cols() != r.Cols()) {
		return nil, nil, nil, paramErr("Output", "size %dx%d does not match input %dx%d",
			out.Rows(), out.Cols(), r.Rows(), r.Cols())
	}

	gains = make([]float64, len(bands))
	offsets = make([]float64, len(bands))
	for i := range bands {
		gains[i] = 1
	}
	if s.opts.normalizeBands {
		if err := normalizeBands(r, bands, gains, offsets); err != nil {
			return nil, nil, nil, err
		}
	}
	if in.Gains != nil {
		copy(gains, in.Gains)
	}
	if in.Offsets != nil {
		copy(offsets, in.Offsets)
	}
	return bands, gains, offsets, nil
}

// normalizeBands maps each band's [min, max] onto [0, 1].
func normalizeBands(r raster.Raster, bands []int, gains, offsets []float64) error {
	for i, b := range bands {
		lo, hi, ok, err := raster.BandMinMax(r, b)
		if err != nil {
			return err
		}
		if !ok || hi <= lo {
			continue
		}
		offsets[i] = -lo
		gains[i] = 1 / (hi - lo)
	}
	return nil
}

func (s *Strategy) allocate(rows, cols, bands int, weights []float64) error {
	s.indexer.Clear()
	s.touched.Clear()

	var m merger.Merger
	switch s.params.SegmentFeatures {
	case FeatureMean:
		m = merger.NewMean(bands)
	case FeatureBaatz:
		m = merger.NewBaatz(merger.BaatzConfig{
			ColorWeight:       s.params.ColorWeight,
			CompactnessWeight: s.params.CompactnessWeight,
			BandsWeights:      weights,
			IDs:               s.ids,
		})
	}
	s.merger = m

	pixels := rows * cols
	if err := s.pool.Initialize(pixels+scratchSegments, m.FeaturesLen()); err != nil {
		return fmt.Errorf("%w: segments pool: %w", ErrResourceExhausted, err)
	}
	s.aux1, _ = s.pool.Next()
	s.aux2, _ = s.pool.Next()
	s.aux3, _ = s.pool.Next()

	if s.ids.Rows() != rows || s.ids.Cols() != cols || s.ids.Policy() != s.opts.matrixPolicy {
		opts := append([]matrix.Option{matrix.WithResourceController(s.opts.rc)}, s.opts.matrixOptions...)
		if err := s.ids.Reset(rows, cols, s.opts.matrixPolicy, opts...); err != nil {
			return fmt.Errorf("%w: segment ids matrix: %w", ErrResourceExhausted, err)
		}
	}
	return nil
}

// initializeSegments creates one segment per valid pixel and links it to
// its left and upper neighbors.
func (s *Strategy) initializeSegments(r raster.Raster, bands []int, gains, offsets []float64, idm *IDManager) error {
	rows, cols := r.Rows(), r.Cols()

	noData := make([]float64, len(bands))
	hasNoData := make([]bool, len(bands))
	for i, b := range bands {
		noData[i], hasNoData[i] = r.NoData(b)
	}

	values := make([]float64, len(bands))
	squares := make([]float64, len(bands))
	prevLine := make([]segment.Handle, cols)
	currLine := make([]segment.Handle, cols)
	unused := make([]uint32, 0, cols)

	for row := 0; row < rows; row++ {
		lineIDs, err := idm.NewIDs(cols)
		if err != nil {
			return err
		}
		unused = unused[:0]
		idsLine := s.ids.Row(row)

		for col := 0; col < cols; col++ {
			valid := true
			for i, b := range bands {
				v := r.Value(col, row, b)
				if math.IsNaN(v) || (hasNoData[i] && raster.IsNoData(v, noData[i])) {
					valid = false
					break
				}
				v = (v + offsets[i]) * gains[i]
				values[i] = v
				squares[i] = v * v
			}

			if !valid {
				idsLine[col] = 0
				currLine[col] = segment.NoHandle
				unused = append(unused, lineIDs[col])
				continue
			}

			h, ok := s.pool.Next()
			if !ok {
				return fmt.Errorf("%w: segments pool: %w", ErrResourceExhausted, segment.ErrPoolExhausted)
			}
			seg := s.pool.Get(h)
			seg.ID = lineIDs[col]
			seg.Size = 1
			seg.Box = segment.Box{
				XStart: uint32(col), YStart: uint32(row),
				XBound: uint32(col + 1), YBound: uint32(row + 1),
			}
			s.merger.InitPixel(seg, values, squares)
			idsLine[col] = seg.ID

			if row > 0 && prevLine[col] != segment.NoHandle {
				seg.AddNeighbor(prevLine[col])
				s.pool.Get(prevLine[col]).AddNeighbor(h)
			}
			if col > 0 && currLine[col-1] != segment.NoHandle {
				seg.AddNeighbor(currLine[col-1])
				s.pool.Get(currLine[col-1]).AddNeighbor(h)
			}

			currLine[col] = h
			s.indexer.Insert(h)
		}

		idm.AddFreeIDs(unused)
		prevLine, currLine = currLine, prevLine
	}
	return nil
}

func (s *Strategy) mergeLoop(ctx context.Context, idm *IDManager) error {
	threshold := 1.0
	user := s.params.SimilarityThreshold
	step := (1 - user) / float64(s.params.SimIncreaseSteps+1)
	maxMerged := 0

	for {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		passStart := time.Now()
		merged := s.mergeSegments(threshold, idm)
		s.stats.Passes++
		s.stats.Merges += merged
		s.opts.metricsCollector.RecordPass(merged, time.Since(passStart))
		s.logEvery.Do(func() {
			s.opts.logger.LogPass(ctx, s.stats.Passes, threshold, merged, s.indexer.Len())
		})

		if maxMerged > 0 {
			s.reportProgress(int(float64(maxMerged-min(merged, maxMerged)) / float64(maxMerged) * 50))
		}
		maxMerged = max(maxMerged, merged)

		if merged == 0 {
			if threshold == user {
				break
			}
			threshold = max(threshold-step, user)
		}
	}
	s.stats.FinalThreshold = threshold
	return nil
}

// mergeSegments runs one pass over the alive segments, merging into each
// one its most similar neighbor above threshold.
func (s *Strategy) mergeSegments(threshold float64, idm *IDManager) int {
	s.merger.Update(s.alive())

	mutual := s.params.EnableLocalMutualBestFitting
	sameIteration := s.params.EnableSameIterationMerges
	s.touched.Clear()

	aux1 := s.pool.Get(s.aux1)
	aux2 := s.pool.Get(s.aux2)
	aux3 := s.pool.Get(s.aux3)

	var freed []uint32
	merged := 0

	for h, ok := s.indexer.First(); ok; h, ok = s.indexer.Next(h) {
		if !sameIteration && s.touched.Contains(uint32(h)) {
			continue
		}
		cur := s.pool.Get(h)

		best := segment.NoHandle
		bestSim := -math.MaxFloat64
		for _, n := range cur.Neighbors {
			if n == segment.NoHandle {
				continue
			}
			if !sameIteration && s.touched.Contains(uint32(n)) {
				continue
			}
			sim := s.merger.Similarity(cur, s.pool.Get(n), aux1)
			if sim > threshold && sim > bestSim {
				bestSim = sim
				best = n
				aux3.CopyFrom(aux1)
			}
		}

		if mutual && best != segment.NoHandle {
			if s.bestNeighbor(best, aux2, !sameIteration) != h {
				best = segment.NoHandle
			}
		}
		if best == segment.NoHandle {
			continue
		}

		freed = append(freed, s.pool.Get(best).ID)
		s.absorb(h, best, aux3)
		if !sameIteration {
			s.touched.Add(uint32(h))
			s.touched.Add(uint32(best))
		}
		merged++
	}

	idm.AddFreeIDs(freed)
	return merged
}

// bestNeighbor returns h's most similar neighbor with no threshold. The
// first of equally similar neighbors wins. With skipTouched, segments
// already merged in this pass are not candidates.
func (s *Strategy) bestNeighbor(h segment.Handle, preview *segment.Segment, skipTouched bool) segment.Handle {
	seg := s.pool.Get(h)
	best := segment.NoHandle
	bestSim := -math.MaxFloat64
	for _, n := range seg.Neighbors {
		if n == segment.NoHandle {
			continue
		}
		if skipTouched && s.touched.Contains(uint32(n)) {
			continue
		}
		sim := s.merger.Similarity(seg, s.pool.Get(n), preview)
		if sim > bestSim {
			bestSim = sim
			best = n
		}
	}
	return best
}

func (s *Strategy) absorptionLoop(ctx context.Context, idm *IDManager) error {
	maxMerged := 0
	for {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		passStart := time.Now()
		merged := s.mergeSmallSegments(idm)
		s.stats.AbsorptionPasses++
		s.stats.Absorbed += merged
		s.opts.metricsCollector.RecordAbsorptionPass(merged, time.Since(passStart))
		s.logEvery.Do(func() {
			s.opts.logger.LogAbsorption(ctx, s.stats.AbsorptionPasses, merged, s.indexer.Len())
		})

		if maxMerged > 0 {
			s.reportProgress(50 + int(float64(maxMerged-min(merged, maxMerged))/float64(maxMerged)*50))
		}
		maxMerged = max(maxMerged, merged)

		if merged == 0 {
			return nil
		}
	}
}

// mergeSmallSegments merges every segment below MinSegmentSize into its
// most similar neighbor.
func (s *Strategy) mergeSmallSegments(idm *IDManager) int {
	s.merger.Update(s.alive())

	aux1 := s.pool.Get(s.aux1)
	aux2 := s.pool.Get(s.aux2)
	minSize := s.params.MinSegmentSize
	merged := 0

	for h, ok := s.indexer.First(); ok; h, ok = s.indexer.Next(h) {
		small := s.pool.Get(h)
		if small.Size >= minSize {
			continue
		}

		best := segment.NoHandle
		bestSim := -math.MaxFloat64
		for _, n := range small.Neighbors {
			if n == segment.NoHandle {
				continue
			}
			sim := s.merger.Similarity(small, s.pool.Get(n), aux1)
			if sim > bestSim {
				bestSim = sim
				best = n
				aux2.CopyFrom(aux1)
			}
		}
		if best == segment.NoHandle {
			continue
		}

		id := small.ID
		s.absorb(best, h, aux2)
		idm.AddFreeID(id)
		merged++
	}
	return merged
}

// absorb merges src into dst: features, neighbor graph and ID raster.
// src leaves the indexer.
func (s *Strategy) absorb(dst, src segment.Handle, preview *segment.Segment) {
	d := s.pool.Get(dst)
	o := s.pool.Get(src)

	s.merger.Merge(d, o, preview)
	d.RemoveNeighbor(src)

	for _, n := range o.Neighbors {
		if n == segment.NoHandle || n == dst {
			continue
		}
		d.AddNeighbor(n)
		ns := s.pool.Get(n)
		ns.AddNeighbor(dst)
		ns.RemoveNeighbor(src)
	}

	s.relabel(o.Box, o.ID, d.ID)
	o.ClearNeighbors()
	s.indexer.Erase(src)
}

// relabel rewrites from to to inside box.
func (s *Strategy) relabel(box segment.Box, from, to uint32) {
	for y := int(box.YStart); y < int(box.YBound); y++ {
		line := s.ids.Row(y)
		for x := int(box.XStart); x < int(box.XBound); x++ {
			if line[x] == from {
				line[x] = to
			}
		}
	}
}

func (s *Strategy) flush(out raster.Writable, band int) {
	for row := 0; row < s.ids.Rows(); row++ {
		line := s.ids.Row(row)
		for col, id := range line {
			out.SetValue(col, row, band, float64(id))
		}
	}
}

func (s *Strategy) alive() iter.Seq[*segment.Segment] {
	return func(yield func(*segment.Segment) bool) {
		for h := range s.indexer.All() {
			if !yield(s.pool.Get(h)) {
				return
			}
		}
	}
}

func (s *Strategy) reportProgress(percent int) {
	if percent <= s.progress {
		return
	}
	s.progress = percent
	if s.opts.progress != nil {
		s.opts.progress(percent)
	}
}

func checkCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}
