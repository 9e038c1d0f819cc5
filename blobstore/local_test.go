package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			blobName := "run-1/labels.rglb"
			data := []byte("hello world, this is a test blob for regiongrow")

			w, err := store.Create(ctx, blobName)
			require.NoError(t, err)

			n, err := w.Write(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.NoError(t, w.Sync())
			require.NoError(t, w.Close())

			blob, err := store.Open(ctx, blobName)
			require.NoError(t, err)
			defer blob.Close()

			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err = blob.ReadAt(ctx, buf, 6)
			require.NoError(t, err)
			require.Equal(t, 5, n)
			require.Equal(t, "world", string(buf))

			rc, err := blob.ReadRange(ctx, 13, 4)
			require.NoError(t, err)
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			require.Equal(t, "this", string(content))

			all, err := io.ReadAll(NewReader(ctx, blob))
			require.NoError(t, err)
			require.Equal(t, data, all)

			require.NoError(t, store.Put(ctx, "run-1/params.json", []byte("{}")))
			require.NoError(t, store.Put(ctx, "run-2/labels.rglb", []byte("x")))

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			require.Equal(t, []string{"run-1/labels.rglb", "run-1/params.json", "run-2/labels.rglb"}, names)

			names, err = store.List(ctx, "run-1/")
			require.NoError(t, err)
			require.Equal(t, []string{"run-1/labels.rglb", "run-1/params.json"}, names)

			require.NoError(t, store.Delete(ctx, "run-1/params.json"))
			require.NoError(t, store.Delete(ctx, "run-1/params.json"), "deleting twice is not an error")

			_, err = store.Open(ctx, "run-1/params.json")
			require.ErrorIs(t, err, ErrNotFound)

			got, err := ReadAll(ctx, store, "run-2/labels.rglb")
			require.NoError(t, err)
			require.Equal(t, []byte("x"), got)
		})
	}
}

func TestBlobStore_ReadBoundaries(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			data := []byte("0123456789")
			require.NoError(t, store.Put(ctx, "boundary.bin", data))

			blob, err := store.Open(ctx, "boundary.bin")
			require.NoError(t, err)
			defer blob.Close()

			r, err := blob.ReadRange(ctx, 0, 10)
			require.NoError(t, err)
			content, _ := io.ReadAll(r)
			r.Close()
			require.True(t, bytes.Equal(data, content))

			// Only 2 of the 5 requested bytes exist.
			r, err = blob.ReadRange(ctx, 8, 5)
			require.NoError(t, err)
			content, err = io.ReadAll(r)
			require.NoError(t, err)
			require.Equal(t, "89", string(content))
			r.Close()

			_, err = blob.ReadRange(ctx, 20, 5)
			require.ErrorIs(t, err, io.EOF)

			buf := make([]byte, 4)
			n, err := blob.ReadAt(ctx, buf, 8)
			assert.Equal(t, 2, n)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestBlobStore_WriteAfterClose(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			w, err := store.Create(context.Background(), "a")
			require.NoError(t, err)
			require.NoError(t, w.Close())

			_, err = w.Write([]byte("late"))
			assert.ErrorIs(t, err, os.ErrClosed)
			assert.ErrorIs(t, w.Close(), os.ErrClosed)
		})
	}
}

func TestLocalStore_AtomicCreate(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	ctx := context.Background()

	w, err := store.Create(ctx, "labels.rglb")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not visible until closed.
	_, err = os.Stat(filepath.Join(dir, "labels.rglb"))
	require.True(t, errors.Is(err, os.ErrNotExist))
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"labels.rglb"}, names)
}

func TestLocalStore_Mappable(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "m", []byte("mapped")))

	blob, err := store.Open(ctx, "m")
	require.NoError(t, err)

	m, ok := blob.(Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(data))

	require.NoError(t, blob.Close())
	_, err = m.Bytes()
	assert.Error(t, err)
}

func TestLocalStore_InvalidNames(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape", "/abs"} {
		_, err := store.Create(ctx, name)
		assert.Error(t, err, name)
	}
}

func TestLocalStore_MissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "absent"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Canceled(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Open(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, "x", nil), context.Canceled)
}

func TestBlobStore_Abort(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w, err := store.Create(ctx, "aborted")
			require.NoError(t, err)
			_, err = w.Write([]byte("discard me"))
			require.NoError(t, err)

			require.NoError(t, Abort(w))

			names, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, names)
			_, err = store.Open(ctx, "aborted")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
