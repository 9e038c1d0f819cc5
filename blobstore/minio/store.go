package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/regiongrow/blobstore"
)

// Store keeps blobs as objects in one MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore returns a Store that keeps its blobs under prefix in bucket.
func NewStore(client *minio.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// name is the inverse of key.
func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, s.prefix+"/")
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object and serves reads with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if err := blobstore.CheckName(name); err != nil {
		return nil, err
	}
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: minio %s/%s", blobstore.ErrNotFound, s.bucket, key)
		}
		return nil, err
	}

	return blobstore.NewRangeBlob(info.Size, func(ctx context.Context, off, end int64) (io.ReadCloser, error) {
		var opts minio.GetObjectOptions
		if err := opts.SetRange(off, end); err != nil {
			return nil, err
		}
		return s.client.GetObject(ctx, s.bucket, key, opts)
	}), nil
}

// Create streams writes into a PutObject of unknown length, which the
// client turns into a multipart upload.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := blobstore.CheckName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := s.key(name)
	return blobstore.NewStreamingBlob(ctx, func(ctx context.Context, r io.Reader) error {
		_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
			ContentType: contentType(name),
		})
		return err
	}), nil
}

// Put uploads data in one request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := blobstore.CheckName(name); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(name),
	})
	return err
}

// Delete removes a blob. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := blobstore.CheckName(name); err != nil {
		return err
	}
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted names under prefix, relative to the store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name := s.name(obj.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// contentType labels run manifests as JSON so they render in the console.
func contentType(name string) string {
	if strings.HasSuffix(name, ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}
