package blobstore

import (
	"bytes"
	"context"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. Stored slices are never
// modified after a write completes, so readers share them without copying.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) commit(name string, data []byte) {
	s.mu.Lock()
	s.blobs[name] = data
	s.mu.Unlock()
}

// Open implements BlobStore.
func (s *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob(data), nil
}

// Create implements BlobStore. The blob appears when the writer is closed.
func (s *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckName(name); err != nil {
		return nil, err
	}
	return &memoryWriter{store: s, name: name}, nil
}

// Put implements BlobStore.
func (s *MemoryStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckName(name); err != nil {
		return err
	}
	s.commit(name, bytes.Clone(data))
	return nil
}

// Delete implements BlobStore.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, name)
	s.mu.Unlock()
	return nil
}

// List implements BlobStore.
func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := slices.Collect(maps.Keys(s.blobs))
	names = slices.DeleteFunc(names, func(n string) bool { return !strings.HasPrefix(n, prefix) })
	slices.Sort(names)
	return names, nil
}

// memoryBlob is an immutable stored blob.
type memoryBlob []byte

func (b memoryBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return bytes.NewReader(b).ReadAt(p, off)
}

func (b memoryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if off < 0 || off >= int64(len(b)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b)))
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

func (b memoryBlob) Size() int64 { return int64(len(b)) }

// Bytes implements Mappable.
func (b memoryBlob) Bytes() ([]byte, error) { return b, nil }

func (b memoryBlob) Close() error { return nil }

// memoryWriter buffers a blob until Close hands the buffer to the store.
type memoryWriter struct {
	store  *MemoryStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error { return nil }

func (w *memoryWriter) Close() error {
	if w.closed {
		return os.ErrClosed
	}
	w.closed = true
	w.store.commit(w.name, w.buf.Bytes())
	return nil
}

// Abort implements Abortable.
func (w *memoryWriter) Abort() error {
	w.closed = true
	w.buf = bytes.Buffer{}
	return nil
}
