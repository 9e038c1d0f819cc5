package matrix

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/hupe1980/regiongrow/internal/conv"
	"github.com/hupe1980/regiongrow/internal/mmap"
	"github.com/hupe1980/regiongrow/internal/sysmem"
)

// diskSlot locates a non-resident row inside a backing file.
type diskSlot struct {
	file int
	off  int
}

// Matrix is a rows×cols array of T with a configurable memory policy.
// The zero value is an empty RAM matrix; use New or Reset to size it.
type Matrix[T Element] struct {
	rows     int
	cols     int
	policy   Policy // effective policy
	rowBytes int
	opts     options

	// lines[r] is the resident buffer of row r, nil while the row is on disk.
	lines [][]T
	slab  []T

	// Disk window bookkeeping.
	resident []int // row index held by each RAM buffer
	nextSwap int   // next victim position in resident
	slots    []diskSlot
	files    []*mmap.Mapping
	swapBuf  []T
	swaps    uint64

	reserved int64
}

// New returns an empty matrix.
func New[T Element]() *Matrix[T] {
	return &Matrix[T]{opts: applyOptions(nil)}
}

// NewWithSize returns a matrix already Reset to rows×cols.
func NewWithSize[T Element](rows, cols int, policy Policy, opts ...Option) (*Matrix[T], error) {
	m := New[T]()
	if err := m.Reset(rows, cols, policy, opts...); err != nil {
		return nil, err
	}
	return m, nil
}

func elemSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Reset clears the matrix and reallocates it as rows×cols under policy.
// All elements start at zero. On failure the matrix is left empty.
func (m *Matrix[T]) Reset(rows, cols int, policy Policy, opts ...Option) error {
	if err := m.Clear(); err != nil {
		return err
	}
	if rows < 0 || cols < 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	if policy < RAM || policy > Auto {
		return fmt.Errorf("%w: %d", ErrInvalidPolicy, int(policy))
	}

	m.opts = applyOptions(opts)

	rowBytes, err := conv.MulInt(cols, elemSize[T]())
	if err != nil {
		return err
	}
	if _, err := conv.MulInt(rows, rowBytes); err != nil {
		return err
	}

	m.rows = rows
	m.cols = cols
	m.rowBytes = rowBytes
	m.policy = policy

	if rows == 0 || cols == 0 {
		m.policy = RAM
		m.lines = make([][]T, rows)
		for r := range m.lines {
			m.lines[r] = []T{}
		}
		return nil
	}

	ramLines := rows
	switch policy {
	case Disk:
		ramLines = min(m.opts.maxRAMLines, rows)
	case Auto:
		ramLines = m.autoRAMLines()
	}
	if ramLines >= rows {
		m.policy = RAM
		ramLines = rows
	} else {
		m.policy = Disk
	}

	if err := m.allocate(ramLines); err != nil {
		_ = m.Clear()
		return err
	}
	return nil
}

func (m *Matrix[T]) autoRAMLines() int {
	avail, err := m.opts.memAvailable()
	if err != nil {
		// No memory figures on this platform: keep everything resident.
		return m.rows
	}
	budget := m.opts.maxMemPercent / 100 * float64(avail)
	lines := budget / float64(m.rowBytes)
	if lines >= float64(m.rows) {
		return m.rows
	}
	return max(1, int(math.Floor(lines)))
}

func (m *Matrix[T]) allocate(ramLines int) error {
	slabBytes := int64(ramLines) * int64(m.rowBytes)
	if err := m.opts.rc.TryAcquireMemory(slabBytes); err != nil {
		return fmt.Errorf("matrix: reserving %d bytes: %w", slabBytes, err)
	}
	m.reserved = slabBytes

	m.slab = make([]T, ramLines*m.cols)
	m.lines = make([][]T, m.rows)
	for r := 0; r < ramLines; r++ {
		m.lines[r] = m.slab[r*m.cols : (r+1)*m.cols : (r+1)*m.cols]
	}

	if ramLines == m.rows {
		return nil
	}

	m.resident = make([]int, ramLines)
	for i := range m.resident {
		m.resident[i] = i
	}
	m.swapBuf = make([]T, m.cols)
	return m.allocateDiskLines(ramLines)
}

// allocateDiskLines backs rows [first, rows) with temporary file mappings.
func (m *Matrix[T]) allocateDiskLines(first int) error {
	rowsPerFile := int(m.opts.maxTmpFileSize / int64(m.rowBytes))
	if rowsPerFile < 1 {
		rowsPerFile = 1
	}

	dir := m.opts.tempDir
	if dir == "" {
		dir = os.TempDir()
	}

	m.slots = make([]diskSlot, m.rows)
	remaining := m.rows - first
	row := first
	for remaining > 0 {
		n := min(rowsPerFile, remaining)

		f, err := os.CreateTemp(dir, "rgmatrix-*.bin")
		if err != nil {
			return fmt.Errorf("matrix: creating backing file: %w", err)
		}
		path := f.Name()
		_ = f.Close()

		mapping, err := mmap.Create(path, n*m.rowBytes, true)
		if err != nil {
			_ = os.Remove(path)
			return fmt.Errorf("matrix: mapping %s: %w", filepath.Base(path), err)
		}
		_ = mapping.Advise(mmap.AccessRandom)

		fileIdx := len(m.files)
		m.files = append(m.files, mapping)
		for i := 0; i < n; i++ {
			m.slots[row] = diskSlot{file: fileIdx, off: i * m.rowBytes}
			row++
		}
		remaining -= n
	}
	return nil
}

// Clear releases all rows and removes the backing files.
func (m *Matrix[T]) Clear() error {
	var errs []error
	for _, f := range m.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.opts.rc.ReleaseMemory(m.reserved)

	m.rows, m.cols, m.rowBytes = 0, 0, 0
	m.policy = RAM
	m.lines = nil
	m.slab = nil
	m.resident = nil
	m.nextSwap = 0
	m.slots = nil
	m.files = nil
	m.swapBuf = nil
	m.swaps = 0
	m.reserved = 0
	return errors.Join(errs...)
}

// Rows returns the number of rows.
func (m *Matrix[T]) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix[T]) Cols() int { return m.cols }

// Policy returns the effective memory policy.
func (m *Matrix[T]) Policy() Policy { return m.policy }

// RAMLines returns the maximum number of simultaneously resident rows.
func (m *Matrix[T]) RAMLines() int {
	if m.resident == nil {
		return m.rows
	}
	return len(m.resident)
}

// Stats returns paging statistics.
func (m *Matrix[T]) Stats() Stats {
	return Stats{
		Policy:       m.policy,
		RAMLines:     m.RAMLines(),
		DiskLines:    m.rows - m.RAMLines(),
		BackingFiles: len(m.files),
		Swaps:        m.swaps,
	}
}

// Row returns a mutable view of row r, paging it in if needed.
func (m *Matrix[T]) Row(r int) []T {
	if line := m.lines[r]; line != nil {
		return line
	}
	m.swapIn(r)
	return m.lines[r]
}

// At returns the element at (r, c).
func (m *Matrix[T]) At(r, c int) T {
	return m.Row(r)[c]
}

// Set stores v at (r, c).
func (m *Matrix[T]) Set(r, c int, v T) {
	m.Row(r)[c] = v
}

// Fill sets every element to v.
func (m *Matrix[T]) Fill(v T) {
	for r := 0; r < m.rows; r++ {
		row := m.Row(r)
		for c := range row {
			row[c] = v
		}
	}
}

// swapIn exchanges row r with the next round-robin victim: the disk slot
// content is read into the swap buffer, the victim is written to that slot,
// and the swap buffer is copied into the victim's RAM buffer.
func (m *Matrix[T]) swapIn(r int) {
	slot := m.slots[r]
	data := m.files[slot.file].Bytes()
	if data == nil {
		panic(&SwapError{Row: r, Err: mmap.ErrClosed})
	}
	disk := data[slot.off : slot.off+m.rowBytes]

	victimRow := m.resident[m.nextSwap]
	victim := m.lines[victimRow]

	copy(asBytes(m.swapBuf), disk)
	copy(disk, asBytes(victim))
	copy(victim, m.swapBuf)

	m.lines[r] = victim
	m.lines[victimRow] = nil
	m.slots[victimRow] = slot
	m.resident[m.nextSwap] = r
	m.nextSwap = (m.nextSwap + 1) % len(m.resident)
	m.swaps++
}

func asBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*elemSize[T]())
}

func availableMemory() (uint64, error) {
	s, err := sysmem.Read()
	if err != nil {
		return 0, err
	}
	return s.Available(), nil
}
