package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotFound is returned when a blob does not exist. It is
	// os.ErrNotExist so callers can use either.
	ErrNotFound = os.ErrNotExist
	// ErrInvalidName is returned for names that CheckName rejects.
	ErrInvalidName = errors.New("blobstore: invalid name")
)

// CheckName validates a blob name. Names are slash-separated relative
// paths such as "run-42/labels.rglb"; empty, "." and ".." elements are
// rejected so a name maps to the same key on every backend.
func CheckName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for elem := range strings.SplitSeq(name, "/") {
		if elem == "" || elem == "." || elem == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// BlobStore stores exported label rasters and run artifacts.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when the writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off. It returns io.EOF when fewer
	// bytes are available.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for at most length bytes at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// Abortable is an optional interface for WritableBlobs that can discard
// an unfinished write.
type Abortable interface {
	Abort() error
}

// Abort discards w if it supports it and closes it otherwise.
func Abort(w WritableBlob) error {
	if a, ok := w.(Abortable); ok {
		return a.Abort()
	}
	return w.Close()
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// NewReader returns a sequential reader over the whole blob.
func NewReader(ctx context.Context, b Blob) io.Reader {
	return io.NewSectionReader(readerAt{ctx: ctx, b: b}, 0, b.Size())
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}

// ReadAll reads the named blob into memory.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}
	return io.ReadAll(NewReader(ctx, b))
}
