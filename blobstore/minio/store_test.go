package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regiongrow/blobstore"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "labels", "/segmentations/")
	assert.Equal(t, "segmentations/run-1/labels.rglb", s.key("run-1/labels.rglb"))
	assert.Equal(t, "run-1/run.json", s.name("segmentations/run-1/run.json"))

	bare := NewStore(nil, "labels", "")
	assert.Equal(t, "run-1/run.json", bare.key("run-1/run.json"))
	assert.Equal(t, "run-1/run.json", bare.name("run-1/run.json"))
}

func TestStore_InvalidNames(t *testing.T) {
	// Names are rejected before the client is used.
	s := NewStore(nil, "labels", "")
	ctx := context.Background()

	for _, name := range []string{"", "/abs", "a//b", "../up", "run/./labels.rglb"} {
		_, err := s.Open(ctx, name)
		assert.ErrorIs(t, err, blobstore.ErrInvalidName, name)
		_, err = s.Create(ctx, name)
		assert.ErrorIs(t, err, blobstore.ErrInvalidName, name)
		assert.ErrorIs(t, s.Put(ctx, name, nil), blobstore.ErrInvalidName, name)
		assert.ErrorIs(t, s.Delete(ctx, name), blobstore.ErrInvalidName, name)
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection reset")))
}

func TestContentType(t *testing.T) {
	require.Equal(t, "application/json", contentType(blobstore.ManifestName("run-1")))
	require.Equal(t, "application/octet-stream", contentType(blobstore.LabelsName("run-1")))
}
