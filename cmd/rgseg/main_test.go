package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regiongrow"
	"github.com/hupe1980/regiongrow/blobstore"
	"github.com/hupe1980/regiongrow/labelcodec"
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/raster"
	"github.com/hupe1980/regiongrow/resource"
)

func TestParseStore(t *testing.T) {
	tests := []struct {
		in   string
		want storeConfig
	}{
		{"./runs", storeConfig{kind: "local", root: "./runs"}},
		{"file:///var/runs", storeConfig{kind: "local", root: "/var/runs"}},
		{"s3://bucket", storeConfig{kind: "s3", bucket: "bucket"}},
		{"s3://bucket/seg/out/", storeConfig{kind: "s3", bucket: "bucket", prefix: "seg/out"}},
		{"minio://localhost:9000/bucket", storeConfig{kind: "minio", endpoint: "localhost:9000", bucket: "bucket"}},
		{"minio://localhost:9000/bucket/a/b", storeConfig{kind: "minio", endpoint: "localhost:9000", bucket: "bucket", prefix: "a/b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStore(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "gs://bucket", "s3://", "minio://host", "file://"} {
		_, err := parseStore(bad)
		assert.Error(t, err, bad)
	}
}

func TestExportRun(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	runs := blobstore.NewRuns(store, rc)

	labels, err := raster.GridFromRows([][]float64{
		{1, 1, 2, 2},
		{1, 3, 3, 2},
	})
	require.NoError(t, err)

	manifest := runManifest{
		RunID:       "run-7",
		Rows:        2,
		Cols:        4,
		Params:      regiongrow.DefaultParams(),
		Compression: labelcodec.CompressionZstd.String(),
		Segments:    3,
	}
	require.NoError(t, exportRun(ctx, runs, labels, labelcodec.CompressionZstd, manifest))

	ids, err := runs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-7"}, ids)

	got, h, err := runs.ReadLabels(ctx, "run-7", matrix.RAM)
	require.NoError(t, err)
	assert.Equal(t, labelcodec.CompressionZstd, h.Compression)
	assert.Equal(t, []uint32{1, 1, 2, 2}, got.Row(0))
	assert.Equal(t, []uint32{1, 3, 3, 2}, got.Row(1))

	var back runManifest
	require.NoError(t, runs.ReadManifest(ctx, "run-7", &back))
	assert.Equal(t, manifest.Params, back.Params)
	assert.Equal(t, 3, back.Segments)
}

func TestExportRun_CanceledLeavesNoRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := blobstore.NewMemoryStore()
	runs := blobstore.NewRuns(store, resource.NewController(resource.Config{IOLimitBytesPerSec: 1}))

	labels, err := raster.NewGrid(4, 4, 1)
	require.NoError(t, err)

	err = exportRun(ctx, runs, labels, labelcodec.CompressionNone, runManifest{RunID: "run-8"})
	require.ErrorIs(t, err, context.Canceled)

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}
