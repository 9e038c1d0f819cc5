package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/regiongrow/blobstore"
	"github.com/hupe1980/regiongrow/labelcodec"
	"github.com/hupe1980/regiongrow/matrix"
)

// MockS3Client is a testify mock of Client. Besides plain values, Return
// accepts a func with the method's signature, which then serves the call.
type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(*s3.HeadObjectInput) (*s3.HeadObjectOutput, error)); ok {
		return fn(params)
	}
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(*s3.GetObjectInput) (*s3.GetObjectOutput, error)); ok {
		return fn(params)
	}
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(*s3.PutObjectInput) (*s3.PutObjectOutput, error)); ok {
		return fn(params)
	}
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(*s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)); ok {
		return fn(params)
	}
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(*s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error)); ok {
		return fn(params)
	}
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *MockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

// bucket backs a MockS3Client with an in-memory object map.
type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func newBucket() (*MockS3Client, *bucket) {
	b := &bucket{objects: make(map[string][]byte)}
	c := new(MockS3Client)

	c.On("PutObject", mock.Anything, mock.Anything).Return(func(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		data, err := io.ReadAll(in.Body)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		b.objects[aws.ToString(in.Key)] = data
		return &s3.PutObjectOutput{}, nil
	})
	c.On("HeadObject", mock.Anything, mock.Anything).Return(func(in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		data, ok := b.objects[aws.ToString(in.Key)]
		if !ok {
			return nil, &types.NotFound{}
		}
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
	})
	c.On("GetObject", mock.Anything, mock.Anything).Return(func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.gets++
		data, ok := b.objects[aws.ToString(in.Key)]
		if !ok {
			return nil, &types.NoSuchKey{}
		}
		var off, end int
		if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes=%d-%d", &off, &end); err != nil {
			return nil, err
		}
		return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data[off : end+1])))}, nil
	})
	c.On("ListObjectsV2", mock.Anything, mock.Anything).Return(func(in *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		out := &s3.ListObjectsV2Output{}
		for key := range b.objects {
			if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
				out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
			}
		}
		return out, nil
	})
	c.On("DeleteObject", mock.Anything, mock.Anything).Return(func(in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.objects, aws.ToString(in.Key))
		return &s3.DeleteObjectOutput{}, nil
	})
	return c, b
}

func (b *bucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func TestStore_Open(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("segmentations"))
	ctx := context.Background()

	t.Run("NotFound", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "segmentations/run-1/labels.rglb"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(ctx, "run-1/labels.rglb")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

		_, err := store.Open(ctx, "run-2/labels.rglb")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{
			ContentLength: aws.Int64(100),
		}, nil).Once()

		blob, err := store.Open(ctx, "run-3/labels.rglb")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	t.Run("OtherError", func(t *testing.T) {
		boom := errors.New("boom")
		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, boom).Once()

		_, err := store.Open(ctx, "run-4/labels.rglb")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("InvalidName", func(t *testing.T) {
		_, err := store.Open(ctx, "../labels.rglb")
		assert.ErrorIs(t, err, blobstore.ErrInvalidName)
	})

	mockClient.AssertExpectations(t)
}

func TestStore_Delete(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("/segmentations/"))

	mockClient.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "segmentations/run-1/run.json"
	})).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, store.Delete(context.Background(), "run-1/run.json"))
	mockClient.AssertExpectations(t)
}

func TestStore_List_Pagination(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("segmentations"))

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && *in.Prefix == "segmentations/run-"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("segmentations/run-2/run.json")}},
	}, nil).Once()

	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("segmentations/run-1/labels.rglb")}},
	}, nil).Once()

	names, err := store.List(context.Background(), "run-")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/labels.rglb", "run-2/run.json"}, names)
	mockClient.AssertExpectations(t)
}

func TestStore_RangedReads(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "b")
	ctx := context.Background()

	mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{
		ContentLength: aws.Int64(10),
	}, nil).Once()
	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "b" && *in.Key == "k" && *in.Range == "bytes=0-4"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("hello"))}, nil).Once()
	// Clamped to the object size.
	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Range == "bytes=8-9"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("ld"))}, nil).Once()
	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Range == "bytes=2-6"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("llo w"))}, nil).Once()

	blob, err := store.Open(ctx, "k")
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = blob.ReadAt(ctx, buf, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ld", string(buf[:n]))

	n, err = blob.ReadAt(ctx, buf, 10)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	r, err := blob.ReadRange(ctx, 2, 5)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "llo w", string(content))

	mockClient.AssertExpectations(t)
}

func TestStore_Put(t *testing.T) {
	t.Run("Checksum", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket")

		mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Key == "run-1/run.json" &&
				aws.ToInt64(in.ContentLength) == 3 &&
				aws.ToString(in.ChecksumCRC32C) == checksumCRC32C([]byte("abc"))
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Put(context.Background(), "run-1/run.json", []byte("abc")))
		mockClient.AssertExpectations(t)
	})

	t.Run("NoChecksum", func(t *testing.T) {
		mockClient := new(MockS3Client)
		store := NewStore(mockClient, "test-bucket", WithUploadConfig(UploadConfig{}))

		mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return in.ChecksumCRC32C == nil
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		require.NoError(t, store.Put(context.Background(), "run-1/run.json", []byte("abc")))
		mockClient.AssertExpectations(t)
	})
}

func TestStore_Create(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket", WithPrefix("segmentations"))

	var uploaded []byte
	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "segmentations/run-1/labels.rglb" &&
			in.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil).Once()

	wb, err := store.Create(context.Background(), "run-1/labels.rglb")
	require.NoError(t, err)

	_, err = wb.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, wb.Sync())
	require.NoError(t, wb.Close())

	assert.Equal(t, "content", string(uploaded))
	mockClient.AssertExpectations(t)
}

func TestStore_CreateAbort(t *testing.T) {
	mockClient := new(MockS3Client)
	store := NewStore(mockClient, "test-bucket")

	wb, err := store.Create(context.Background(), "run-1/labels.rglb")
	require.NoError(t, err)
	_, err = wb.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, blobstore.Abort(wb))
	mockClient.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestChecksumCRC32C(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, "4waSgw==", checksumCRC32C([]byte("123456789")))
}

func TestRuns_S3RoundTrip(t *testing.T) {
	client, b := newBucket()
	store := NewStore(client, "test-bucket", WithPrefix("segmentations"))
	runs := blobstore.NewRuns(store, nil)
	ctx := context.Background()

	src, err := matrix.NewWithSize[uint32](64, 48, matrix.RAM)
	require.NoError(t, err)
	for r := 0; r < src.Rows(); r++ {
		for c := 0; c < src.Cols(); c++ {
			src.Set(r, c, uint32(r/16*3+c/16+1))
		}
	}

	require.NoError(t, runs.WriteLabels(ctx, "run-1", src, labelcodec.CompressionLZ4))
	require.NoError(t, runs.WriteManifest(ctx, "run-1", map[string]int{"segments": 12}))
	assert.Equal(t, []string{"segmentations/run-1/labels.rglb", "segmentations/run-1/run.json"}, b.keys())

	ids, err := runs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)

	got, h, err := runs.ReadLabels(ctx, "run-1", matrix.RAM)
	require.NoError(t, err)
	assert.Equal(t, labelcodec.CompressionLZ4, h.Compression)
	for r := 0; r < src.Rows(); r++ {
		require.Equal(t, src.Row(r), got.Row(r), "row %d", r)
	}
	// The buffered reader fetches the whole small blob at once.
	assert.Equal(t, 1, b.gets)

	var manifest map[string]int
	require.NoError(t, runs.ReadManifest(ctx, "run-1", &manifest))
	assert.Equal(t, 12, manifest["segments"])

	require.NoError(t, runs.Delete(ctx, "run-1"))
	assert.Empty(t, b.keys())
	_, _, err = runs.ReadLabels(ctx, "run-1", matrix.RAM)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
