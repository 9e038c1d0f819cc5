// Package labelcodec encodes segment-ID rasters into a compact binary form.
//
// Layout (little endian):
//
//	Header (16 bytes):
//	  Magic       uint32  "RGLB"
//	  Version     uint16
//	  Compression uint8
//	  Reserved    uint8
//	  Rows        uint32
//	  Cols        uint32
//	Blocks, each holding one or more whole rows:
//	  RawSize        uint32
//	  CompressedSize uint32  (0 = stored raw)
//	  Checksum       uint32  CRC32-C of the raw bytes
//	  Data
//
// Blocks are compressed with LZ4 or Zstandard. A block that does not
// shrink below 90% of its raw size is stored raw.
package labelcodec
