// Command rgseg segments an image with region growing and exports the label
// raster to a blob store.
//
// Usage:
//
//	rgseg -in photo.jpg -store ./runs -preview labels.png -threshold 0.95 -min 50
//	rgseg -in scene.png -store s3://bucket/segmentations -features baatz
//
// Each run writes <run-id>/labels.rglb (see package labelcodec) and
// <run-id>/run.json with the parameters and statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/hupe1980/regiongrow"
	"github.com/hupe1980/regiongrow/blobstore"
	"github.com/hupe1980/regiongrow/internal/conv"
	"github.com/hupe1980/regiongrow/labelcodec"
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/raster"
	"github.com/hupe1980/regiongrow/resource"
)

var (
	input       = flag.String("in", "", "input image (png, jpeg, gif, tiff, bmp)")
	storeURL    = flag.String("store", "", "output location: dir, file:///dir, s3://bucket/prefix or minio://host/bucket/prefix")
	preview     = flag.String("preview", "", "write a colorized label preview to this path")
	runID       = flag.String("run", "", "run identifier (default: random UUID)")
	minSize     = flag.Int("min", 100, "minimum segment size in pixels")
	threshold   = flag.Float64("threshold", 0.9, "similarity threshold in [0, 1]")
	steps       = flag.Int("steps", 10, "similarity relaxation steps")
	features    = flag.String("features", "mean", "segment features: mean or baatz")
	colorW      = flag.Float64("color-weight", 0.5, "baatz color weight")
	compactW    = flag.Float64("compactness-weight", 0.5, "baatz compactness weight")
	mutual      = flag.Bool("mutual", false, "require local mutual best fitting")
	sameIter    = flag.Bool("same-iteration", false, "allow a segment to merge more than once per pass")
	smooth      = flag.Float64("smooth", 0, "gaussian pre-filter radius (0 disables)")
	transparent = flag.Bool("transparent-nodata", false, "treat fully transparent pixels as no-data")
	compression = flag.String("compression", "zstd", "label compression: none, lz4 or zstd")
	policy      = flag.String("policy", "auto", "matrix memory policy: ram, disk or auto")
	tmpDir      = flag.String("tmp", "", "directory for disk-backed rows")
	maxBlock    = flag.Int("max-block-pixels", regiongrow.DefaultMaxBlockPixels, "split larger images into blocks of at most this many pixels (0 disables)")
	workers     = flag.Int("workers", runtime.GOMAXPROCS(0), "concurrent blocks")
	memLimit    = flag.Int64("mem-limit", 0, "managed memory limit in bytes (0 = unlimited)")
	ioLimit     = flag.Int64("io-limit", 0, "export throughput limit in bytes/s (0 = unlimited)")
	region      = flag.String("region", "", "S3 region")
	endpoint    = flag.String("endpoint", "", "S3-compatible endpoint URL")
	minioTLS    = flag.Bool("minio-tls", true, "use TLS for minio:// stores")
	logLevel    = flag.String("log-level", "info", "log level: debug, info, warn, error")
	logJSON     = flag.Bool("log-json", false, "log as JSON")
)

// runManifest is stored next to the label raster.
type runManifest struct {
	RunID       string                       `json:"run_id"`
	Input       string                       `json:"input"`
	Rows        int                          `json:"rows"`
	Cols        int                          `json:"cols"`
	Params      regiongrow.Params            `json:"params"`
	Compression string                       `json:"compression"`
	Blocks      int                          `json:"blocks"`
	Segments    int                          `json:"segments"`
	Duration    string                       `json:"duration"`
	Metrics     regiongrow.BasicMetricsStats `json:"metrics"`
	CreatedAt   time.Time                    `json:"created_at"`
}

func main() {
	flag.Parse()

	if *input == "" || *storeURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -in <image> -store <location> [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "rgseg: %v\n", err)
		stop()
		if errors.Is(err, regiongrow.ErrCanceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	id := *runID
	if id == "" {
		id = uuid.NewString()
	}
	if err := blobstore.CheckRunID(id); err != nil {
		return fmt.Errorf("-run: %w", err)
	}

	logger := regiongrow.NewTextLogger(level)
	if *logJSON {
		logger = regiongrow.NewJSONLogger(level)
	}
	logger = logger.WithRun(id)

	params, err := buildParams()
	if err != nil {
		return err
	}
	comp, err := labelcodec.ParseCompression(*compression)
	if err != nil {
		return err
	}
	pol, err := matrix.ParsePolicy(*policy)
	if err != nil {
		return err
	}
	storeCfg, err := parseStore(*storeURL)
	if err != nil {
		return err
	}

	img, err := imaging.Open(*input, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open %s: %w", *input, err)
	}
	grid, err := raster.FromImage(raster.Smooth(img, *smooth), *transparent)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "image loaded", "path", *input, "rows", grid.Rows(), "cols", grid.Cols())

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   *memLimit,
		MaxWorkers:         int64(*workers),
		IOLimitBytesPerSec: *ioLimit,
	})
	metrics := &regiongrow.BasicMetricsCollector{}

	matrixOpts := []matrix.Option{matrix.WithResourceController(rc)}
	if *tmpDir != "" {
		matrixOpts = append(matrixOpts, matrix.WithTempDir(*tmpDir))
	}

	lastProgress := -1
	seg := regiongrow.NewSegmenter(
		regiongrow.WithLogger(logger),
		regiongrow.WithMetricsCollector(metrics),
		regiongrow.WithResourceController(rc),
		regiongrow.WithMatrixPolicy(pol),
		regiongrow.WithMatrixOptions(matrixOpts...),
		regiongrow.WithMaxBlockPixels(*maxBlock),
		regiongrow.WithNormalizeBands(true),
		regiongrow.WithProgress(func(percent int) {
			if percent/10 != lastProgress/10 {
				logger.InfoContext(ctx, "progress", "percent", percent)
			}
			lastProgress = percent
		}),
	)

	labels, err := raster.NewGrid(grid.Rows(), grid.Cols(), 1)
	if err != nil {
		return err
	}

	stats, err := seg.Segment(ctx, params, regiongrow.ExecuteInput{
		Raster: grid,
		Output: labels,
	})
	if err != nil {
		return err
	}

	store, err := openStore(ctx, storeCfg, remoteFlags{region: *region, endpoint: *endpoint, minioSecure: *minioTLS})
	if err != nil {
		return err
	}

	manifest := runManifest{
		RunID:       id,
		Input:       *input,
		Rows:        grid.Rows(),
		Cols:        grid.Cols(),
		Params:      params,
		Compression: comp.String(),
		Blocks:      stats.Blocks,
		Segments:    stats.Segments,
		Duration:    stats.Duration.String(),
		Metrics:     metrics.GetStats(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := exportRun(ctx, blobstore.NewRuns(store, rc), labels, comp, manifest); err != nil {
		return err
	}

	if *preview != "" {
		colored, err := raster.Colorize(labels, 0)
		if err != nil {
			return err
		}
		if err := raster.SavePNG(colored, *preview); err != nil {
			return err
		}
	}

	logger.InfoContext(ctx, "run complete",
		"segments", stats.Segments,
		"blocks", stats.Blocks,
		"duration", stats.Duration,
		"peak_mem_bytes", rc.PeakMemoryUsage(),
	)
	fmt.Println(id)
	return nil
}

func buildParams() (regiongrow.Params, error) {
	ft, err := regiongrow.ParseFeatureType(*features)
	if err != nil {
		return regiongrow.Params{}, err
	}
	minSeg, err := conv.IntToUint32(*minSize)
	if err != nil {
		return regiongrow.Params{}, fmt.Errorf("-min: %w", err)
	}
	relax, err := conv.IntToUint32(*steps)
	if err != nil {
		return regiongrow.Params{}, fmt.Errorf("-steps: %w", err)
	}

	p := regiongrow.DefaultParams()
	p.MinSegmentSize = minSeg
	p.SimilarityThreshold = *threshold
	p.SimIncreaseSteps = relax
	p.SegmentFeatures = ft
	p.ColorWeight = *colorW
	p.CompactnessWeight = *compactW
	p.EnableLocalMutualBestFitting = *mutual
	p.EnableSameIterationMerges = *sameIter
	return p, p.Validate()
}

// exportRun writes the label raster and then the manifest, which marks the
// run complete. Label writes are throttled by the runs' IO limit.
func exportRun(ctx context.Context, runs *blobstore.Runs, labels raster.Raster, c labelcodec.Compression, manifest runManifest) error {
	if err := runs.WriteLabels(ctx, manifest.RunID, labelcodec.RasterSource(labels, 0), c); err != nil {
		return err
	}
	return runs.WriteManifest(ctx, manifest.RunID, manifest)
}
