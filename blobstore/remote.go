package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
)

// ErrAborted is the cancellation cause seen by an upload discarded with
// Abort.
var ErrAborted = errors.New("blobstore: write aborted")

// FetchFunc returns the bytes [off, end] of a remote object. Both bounds
// are inclusive, as in an HTTP Range header.
type FetchFunc func(ctx context.Context, off, end int64) (io.ReadCloser, error)

// NewRangeBlob returns a Blob of the given size whose reads are served by
// fetch. Requests are clamped to the object size before fetch is called.
func NewRangeBlob(size int64, fetch FetchFunc) Blob {
	return &rangeBlob{size: size, fetch: fetch}
}

type rangeBlob struct {
	size  int64
	fetch FetchFunc
}

// last returns the inclusive end of an n byte read at off.
func (b *rangeBlob) last(off, n int64) (int64, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	return min(off+n, b.size) - 1, nil
}

func (b *rangeBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end, err := b.last(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	body, err := b.fetch(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	want := int(end - off + 1)
	n, err := io.ReadFull(body, p[:want])
	if err != nil {
		// The object is shorter than its reported size.
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	if want < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *rangeBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	end, err := b.last(off, length)
	if err != nil {
		return nil, err
	}
	if end < off {
		return io.NopCloser(strings.NewReader("")), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.fetch(ctx, off, end)
}

func (b *rangeBlob) Size() int64 { return b.size }

func (b *rangeBlob) Close() error { return nil }

// UploadFunc stores everything read from r until io.EOF. It must give up
// once ctx is canceled.
type UploadFunc func(ctx context.Context, r io.Reader) error

// NewStreamingBlob runs upload in the background and returns a WritableBlob
// feeding it through a pipe. Close waits for the upload to finish. Abort
// cancels it with ErrAborted as the cause.
func NewStreamingBlob(ctx context.Context, upload UploadFunc) WritableBlob {
	ctx, cancel := context.WithCancelCause(ctx)
	pr, pw := io.Pipe()

	w := &streamingBlob{
		pw:     pw,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		w.err = upload(ctx, pr)
		// Unblock a pending Write if the upload stopped early.
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

type streamingBlob struct {
	pw     *io.PipeWriter
	cancel context.CancelCauseFunc
	done   chan struct{}
	err    error // set before done is closed

	mu     sync.Mutex
	closed bool
}

func (w *streamingBlob) finish() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.closed = true
	return true
}

func (w *streamingBlob) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	return w.pw.Write(p)
}

// Sync is a no-op; the object is committed by Close.
func (w *streamingBlob) Sync() error { return nil }

func (w *streamingBlob) Close() error {
	if !w.finish() {
		return os.ErrClosed
	}
	_ = w.pw.Close()
	<-w.done
	w.cancel(nil)
	return w.err
}

// Abort implements Abortable.
func (w *streamingBlob) Abort() error {
	if !w.finish() {
		return nil
	}
	w.cancel(ErrAborted)
	_ = w.pw.CloseWithError(ErrAborted)
	<-w.done
	return nil
}
