package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regiongrow/labelcodec"
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/resource"
)

type testManifest struct {
	Segments int    `json:"segments"`
	Features string `json:"features"`
}

func labelMatrix(t *testing.T, rows, cols int) *matrix.Matrix[uint32] {
	t.Helper()
	m, err := matrix.NewWithSize[uint32](rows, cols, matrix.RAM)
	require.NoError(t, err)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, uint32(r/4*10+c/4+1))
		}
	}
	return m
}

func TestRuns_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runs := NewRuns(store, nil)
			src := labelMatrix(t, 12, 20)

			require.NoError(t, runs.WriteLabels(ctx, "run-1", src, labelcodec.CompressionZstd))
			require.NoError(t, runs.WriteManifest(ctx, "run-1", testManifest{Segments: 15, Features: "mean"}))

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"run-1/labels.rglb", "run-1/run.json"}, names)

			h, err := runs.LabelsHeader(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, labelcodec.Header{Version: 1, Compression: labelcodec.CompressionZstd, Rows: 12, Cols: 20}, h)

			got, h2, err := runs.ReadLabels(ctx, "run-1", matrix.Disk, matrix.WithTempDir(t.TempDir()))
			require.NoError(t, err)
			defer got.Clear()
			assert.Equal(t, h, h2)
			for r := 0; r < src.Rows(); r++ {
				require.Equal(t, src.Row(r), got.Row(r), "row %d", r)
			}

			var m testManifest
			require.NoError(t, runs.ReadManifest(ctx, "run-1", &m))
			assert.Equal(t, testManifest{Segments: 15, Features: "mean"}, m)
		})
	}
}

func TestRuns_ListOnlyCompleteRuns(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runs := NewRuns(store, nil)
			src := labelMatrix(t, 4, 4)

			for _, id := range []string{"b", "a", "pending"} {
				require.NoError(t, runs.WriteLabels(ctx, id, src, labelcodec.CompressionNone))
			}
			require.NoError(t, runs.WriteManifest(ctx, "b", testManifest{}))
			require.NoError(t, runs.WriteManifest(ctx, "a", testManifest{}))
			// Nested manifests are not runs.
			require.NoError(t, store.Put(ctx, "a/extra/run.json", []byte("{}")))

			ids, err := runs.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			require.NoError(t, runs.Delete(ctx, "a"))
			ids, err = runs.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids)

			names, err := store.List(ctx, "a/")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestRuns_MissingRun(t *testing.T) {
	runs := NewRuns(NewMemoryStore(), nil)
	ctx := context.Background()

	_, _, err := runs.ReadLabels(ctx, "nope", matrix.RAM)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = runs.LabelsHeader(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	var m testManifest
	assert.ErrorIs(t, runs.ReadManifest(ctx, "nope", &m), ErrNotFound)
	require.NoError(t, runs.Delete(ctx, "nope"))
}

func TestRuns_InvalidID(t *testing.T) {
	runs := NewRuns(NewMemoryStore(), nil)
	ctx := context.Background()
	src := labelMatrix(t, 2, 2)

	for _, id := range []string{"", "a/b", "..", "."} {
		assert.ErrorIs(t, runs.WriteLabels(ctx, id, src, labelcodec.CompressionNone), ErrInvalidName, id)
		assert.ErrorIs(t, runs.WriteManifest(ctx, id, testManifest{}), ErrInvalidName, id)
		assert.ErrorIs(t, runs.Delete(ctx, id), ErrInvalidName, id)
	}
}

func TestRuns_FailedWriteLeavesNothing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// One byte per second cannot finish the header before the
			// deadline, so the encode fails after the blob was created.
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1})
			runs := NewRuns(store, rc)

			err := runs.WriteLabels(ctx, "run-1", labelMatrix(t, 4, 4), labelcodec.CompressionNone)
			require.Error(t, err)

			names, err := store.List(context.Background(), "")
			require.NoError(t, err)
			assert.Empty(t, names)
		})
	}
}

func TestRuns_CorruptLabels(t *testing.T) {
	store := NewMemoryStore()
	runs := NewRuns(store, nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, LabelsName("run-1"), []byte("not a label raster")))
	_, _, err := runs.ReadLabels(ctx, "run-1", matrix.RAM)
	assert.ErrorIs(t, err, labelcodec.ErrBadMagic)
}

func TestCheckName(t *testing.T) {
	for _, ok := range []string{"labels.rglb", "run-1/labels.rglb", "a/b/c", ".hidden"} {
		assert.NoError(t, CheckName(ok), ok)
	}
	for _, bad := range []string{"", "/abs", "a//b", "a/", ".", "..", "../x", "a/./b", "a/../b"} {
		assert.ErrorIs(t, CheckName(bad), ErrInvalidName, bad)
	}
}
