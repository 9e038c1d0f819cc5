package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/regiongrow/blobstore"
	"github.com/hupe1980/regiongrow/internal/hash"
)

// Client is the subset of the S3 API used by Store. *s3.Client satisfies it.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// UploadConfig tunes streaming uploads of label rasters.
type UploadConfig struct {
	// PartSize is the multipart part size. Label blobs smaller than one
	// part go up in a single PutObject.
	PartSize int64
	// Concurrency is the number of parts in flight.
	Concurrency int
	// Checksum sends CRC32C checksums with every upload.
	Checksum bool
}

// DefaultUploadConfig returns 8 MiB parts, 5 in flight, with checksums.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 8 << 20, Concurrency: 5, Checksum: true}
}

// Option configures a Store.
type Option func(*options)

type options struct {
	prefix   string
	region   string
	endpoint string
	upload   UploadConfig
}

// WithPrefix stores every blob under prefix, e.g. "segmentations".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion sets the AWS region used by New.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points New at an S3-compatible endpoint and enables
// path-style addressing.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithUploadConfig overrides DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *options) { o.upload = cfg }
}

// Store keeps blobs as objects in one bucket.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	checksum bool
}

var _ blobstore.BlobStore = (*Store)(nil)

// New loads the default AWS configuration and returns a Store for bucket.
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.endpoint != "" {
			so.BaseEndpoint = aws.String(o.endpoint)
			so.UsePathStyle = true
		}
	})
	return NewStore(client, bucket, opts...), nil
}

// NewStore returns a Store using client.
func NewStore(client Client, bucket string, opts ...Option) *Store {
	o := options{upload: DefaultUploadConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if o.upload.PartSize > 0 {
			u.PartSize = o.upload.PartSize
		}
		if o.upload.Concurrency > 0 {
			u.Concurrency = o.upload.Concurrency
		}
	})
	return &Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(o.prefix, "/"),
		checksum: o.upload.Checksum,
	}
}

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Open issues a HeadObject and serves reads with ranged GetObject calls.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if err := blobstore.CheckName(name); err != nil {
		return nil, err
	}
	key := s.key(name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", blobstore.ErrNotFound, s.bucket, key)
		}
		return nil, err
	}

	return blobstore.NewRangeBlob(aws.ToInt64(head.ContentLength), func(ctx context.Context, off, end int64) (io.ReadCloser, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
		})
		if err != nil {
			return nil, err
		}
		return out.Body, nil
	}), nil
}

// Create streams writes into a manager upload. The object appears on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := blobstore.CheckName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := s.key(name)
	return blobstore.NewStreamingBlob(ctx, func(ctx context.Context, r io.Reader) error {
		in := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   r,
		}
		if s.checksum {
			in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		}
		_, err := s.uploader.Upload(ctx, in)
		return err
	}), nil
}

// Put uploads data in a single PutObject.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := blobstore.CheckName(name); err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.checksum {
		in.ChecksumCRC32C = aws.String(checksumCRC32C(data))
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// Delete removes a blob. S3 deletes of missing keys succeed.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := blobstore.CheckName(name); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	return err
}

// List pages through ListObjectsV2 and returns names relative to the
// store prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := ""
	if s.prefix != "" {
		root = s.prefix + "/"
	}

	var names []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(root + prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: listing %q: %w", root+prefix, err)
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), root))
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

// checksumCRC32C encodes the CRC32C of data the way S3 expects it:
// base64 of the big-endian value.
func checksumCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}
