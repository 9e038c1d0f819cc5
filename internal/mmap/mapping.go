package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory mapping.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	path   string // backing file, empty for anonymous mappings
	remove bool   // remove the backing file on Close
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory.
// The file is mapped as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{path: path}, nil
	}
	if size < 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMap(f, int(size), false)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  int(size),
		path:  path,
		unmap: unmapFunc,
	}, nil
}

// Create creates (or truncates) the file at path, sizes it to size bytes and
// maps it read-write. Writes through Bytes() are shared with the file.
//
// If removeOnClose is set the file is deleted when the mapping is closed.
func Create(path string, size int, removeOnClose bool) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		if removeOnClose {
			_ = os.Remove(path)
		}
		return nil, err
	}

	data, unmapFunc, err := osMap(f, size, true)
	if err != nil {
		if removeOnClose {
			_ = os.Remove(path)
		}
		return nil, err
	}

	return &Mapping{
		data:   data,
		size:   size,
		path:   path,
		remove: removeOnClose,
		unmap:  unmapFunc,
	}, nil
}

// MapAnon creates an anonymous read-write mapping of size bytes.
// The memory is zeroed and lives outside the Go heap.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var err error
	if m.unmap != nil && m.data != nil {
		err = m.unmap(m.data)
	}
	m.data = nil
	if m.remove && m.path != "" {
		if rmErr := os.Remove(m.path); rmErr != nil && err == nil && !os.IsNotExist(rmErr) {
			err = rmErr
		}
	}
	return err
}

// Bytes returns the underlying byte slice.
// The slice is valid only until Close() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Path returns the backing file path ("" for anonymous mappings).
func (m *Mapping) Path() string {
	return m.path
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
