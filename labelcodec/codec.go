package labelcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/regiongrow/internal/conv"
	"github.com/hupe1980/regiongrow/internal/hash"
	"github.com/hupe1980/regiongrow/matrix"
	"github.com/hupe1980/regiongrow/raster"
)

const (
	magic   = 0x424c4752 // "RGLB"
	version = 1

	// HeaderSize is the size of the fixed file header.
	HeaderSize      = 16
	blockHeaderSize = 12

	// DefaultBlockBytes is the target raw size of a block.
	DefaultBlockBytes = 256 << 10
	// MaxBlockBytes bounds the raw size of a block, and so the width of a
	// row, in both directions.
	MaxBlockBytes = 64 << 20
)

var (
	ErrBadMagic           = errors.New("labelcodec: invalid magic")
	ErrUnsupportedVersion = errors.New("labelcodec: unsupported version")
	ErrChecksum           = errors.New("labelcodec: checksum mismatch")
	ErrUnknownCompression = errors.New("labelcodec: unknown compression")
	ErrCorrupt            = errors.New("labelcodec: corrupt block")
)

// Header describes an encoded label raster.
type Header struct {
	Version     uint16
	Compression Compression
	Rows        int
	Cols        int
}

// Source is a row-addressable label raster, such as *matrix.Matrix[uint32].
type Source interface {
	Rows() int
	Cols() int
	Row(r int) []uint32
}

// Encode writes src to w.
func Encode(w io.Writer, src Source, c Compression) error {
	return EncodeBlocks(w, src, c, DefaultBlockBytes)
}

// EncodeBlocks writes src to w, grouping rows into blocks of about
// blockBytes raw bytes.
func EncodeBlocks(w io.Writer, src Source, c Compression, blockBytes int) error {
	if c > CompressionZstd {
		return fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
	rows, cols := src.Rows(), src.Cols()
	rows32, err := conv.IntToUint32(rows)
	if err != nil {
		return fmt.Errorf("labelcodec: rows: %w", err)
	}
	cols32, err := conv.IntToUint32(cols)
	if err != nil {
		return fmt.Errorf("labelcodec: cols: %w", err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], magic)
	binary.LittleEndian.PutUint16(header[4:6], version)
	header[6] = byte(c)
	binary.LittleEndian.PutUint32(header[8:12], rows32)
	binary.LittleEndian.PutUint32(header[12:16], cols32)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if rows == 0 || cols == 0 {
		return nil
	}

	rowBytes := cols * 4
	if rowBytes > MaxBlockBytes {
		return fmt.Errorf("labelcodec: %d columns exceed the block limit", cols)
	}
	rowsPerBlock := max(1, min(blockBytes, MaxBlockBytes)/rowBytes)
	raw := make([]byte, 0, rowsPerBlock*rowBytes)
	blockHeader := make([]byte, blockHeaderSize)

	for first := 0; first < rows; first += rowsPerBlock {
		raw = raw[:0]
		for r := first; r < min(first+rowsPerBlock, rows); r++ {
			for _, id := range src.Row(r) {
				raw = binary.LittleEndian.AppendUint32(raw, id)
			}
		}

		data, err := compress(raw, c)
		if err != nil {
			return fmt.Errorf("labelcodec: compressing rows %d+: %w", first, err)
		}

		binary.LittleEndian.PutUint32(blockHeader[0:4], uint32(len(raw)))
		binary.LittleEndian.PutUint32(blockHeader[4:8], uint32(len(data)))
		binary.LittleEndian.PutUint32(blockHeader[8:12], hash.CRC32C(raw))
		if data == nil {
			data = raw
		}
		if _, err := w.Write(blockHeader); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// ReadHeader reads and validates the header.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	if m := binary.LittleEndian.Uint32(buf[0:4]); m != magic {
		return Header{}, fmt.Errorf("%w: %x", ErrBadMagic, m)
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: Compression(buf[6]),
		Rows:        int(binary.LittleEndian.Uint32(buf[8:12])),
		Cols:        int(binary.LittleEndian.Uint32(buf[12:16])),
	}
	if h.Version != version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Compression > CompressionZstd {
		return Header{}, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(h.Compression))
	}
	if h.Cols > MaxBlockBytes/4 {
		return Header{}, fmt.Errorf("%w: %d columns", ErrCorrupt, h.Cols)
	}
	return h, nil
}

// Decode reads a label raster into a new matrix with the given policy.
// The matrix is sized from the header before any block is read; pass
// matrix.WithResourceController to bound what it may reserve.
func Decode(r io.Reader, policy matrix.Policy, opts ...matrix.Option) (*matrix.Matrix[uint32], Header, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, Header{}, err
	}

	m, err := matrix.NewWithSize[uint32](h.Rows, h.Cols, policy, opts...)
	if err != nil {
		return nil, Header{}, err
	}
	if err := decodeBlocks(r, h, m); err != nil {
		_ = m.Clear()
		return nil, Header{}, err
	}
	return m, h, nil
}

func decodeBlocks(r io.Reader, h Header, m *matrix.Matrix[uint32]) error {
	if h.Rows == 0 || h.Cols == 0 {
		return nil
	}

	rowBytes := h.Cols * 4
	blockHeader := make([]byte, blockHeaderSize)
	var raw, data []byte

	row := 0
	for row < h.Rows {
		if _, err := io.ReadFull(r, blockHeader); err != nil {
			return fmt.Errorf("labelcodec: reading block at row %d: %w", row, err)
		}
		rawSize := int(binary.LittleEndian.Uint32(blockHeader[0:4]))
		compSize := int(binary.LittleEndian.Uint32(blockHeader[4:8]))
		sum := binary.LittleEndian.Uint32(blockHeader[8:12])

		if rawSize == 0 || rawSize > MaxBlockBytes || rawSize%rowBytes != 0 || row+rawSize/rowBytes > h.Rows {
			return fmt.Errorf("%w: raw size %d at row %d", ErrCorrupt, rawSize, row)
		}
		// Blocks are only stored compressed when that saves space.
		if compSize != 0 && (h.Compression == CompressionNone || compSize >= rawSize) {
			return fmt.Errorf("%w: compressed size %d at row %d", ErrCorrupt, compSize, row)
		}

		raw = grow(raw, rawSize)
		if compSize == 0 {
			if _, err := io.ReadFull(r, raw); err != nil {
				return err
			}
		} else {
			data = grow(data, compSize)
			if _, err := io.ReadFull(r, data); err != nil {
				return err
			}
			if err := decompress(raw, data, h.Compression); err != nil {
				return fmt.Errorf("%w: %w", ErrCorrupt, err)
			}
		}

		if hash.CRC32C(raw) != sum {
			return fmt.Errorf("%w: block at row %d", ErrChecksum, row)
		}

		for off := 0; off < rawSize; off += rowBytes {
			line := m.Row(row)
			for c := range line {
				line[c] = binary.LittleEndian.Uint32(raw[off+c*4:])
			}
			row++
		}
	}
	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// RasterSource adapts one band of a raster holding segment IDs, such as
// the Output of a segmentation run.
func RasterSource(r raster.Raster, band int) Source {
	return &rasterSource{r: r, band: band, buf: make([]uint32, r.Cols())}
}

type rasterSource struct {
	r    raster.Raster
	band int
	buf  []uint32
}

func (s *rasterSource) Rows() int { return s.r.Rows() }
func (s *rasterSource) Cols() int { return s.r.Cols() }

// Row returns a buffer that is reused by the next call.
func (s *rasterSource) Row(row int) []uint32 {
	for c := range s.buf {
		s.buf[c] = uint32(s.r.Value(c, row, s.band))
	}
	return s.buf
}
