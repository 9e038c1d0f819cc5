package labelcodec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block compression algorithm.
type Compression uint8

const (
	// CompressionNone stores blocks raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses Zstandard (better ratio).
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// ZSTD encoder/decoder pools for efficiency
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the compressed form of data, or nil when compression
// does not pay off.
func compress(data []byte, c Compression) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var out []byte
	switch c {
	case CompressionNone:
		return nil, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		out = buf[:n]
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return nil, nil
	}
	return out, nil
}

// decompress expands src into dst, which has the raw block size.
func decompress(dst, src []byte, c Compression) error {
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return err
		}
		if n != len(dst) {
			return errors.New("decompressed size mismatch")
		}
		return nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		decoded, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return err
		}
		if len(decoded) != len(dst) {
			return errors.New("decompressed size mismatch")
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}
