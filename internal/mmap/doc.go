// Package mmap provides memory mappings used by the out-of-core matrix and the
// segment pool.
//
// # Overview
//
// Three kinds of mappings are supported:
//
//   - Open maps an existing file read-only (label blobs stored on local disk).
//   - Create sizes a new file and maps it read-write and shared, so writes to
//     the returned bytes reach the file. Disk-policy matrices keep their
//     non-resident rows in such mappings.
//   - MapAnon creates an anonymous read-write mapping outside the Go heap. The
//     segment pool uses it for large feature buffers.
//
// # Usage
//
//	m, err := mmap.Create(path, rows*rowBytes)
//	if err != nil { ... }
//	defer m.Close()
//
//	slot := m.Bytes()[off : off+rowBytes]
//	copy(slot, row)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) access hints
//   - Windows: CreateFileMapping/MapViewOfFile and VirtualAlloc (advise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must not touch
// Bytes() after Close returns.
package mmap
