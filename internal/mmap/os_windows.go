//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMap(f *os.File, size int, writable bool) ([]byte, func([]byte) error, error) {
	if size == 0 {
		return nil, nil, nil
	}

	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, protect, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// The view keeps its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, func(b []byte) error {
		if writable {
			if err := windows.FlushViewOfFile(addr, uintptr(len(b))); err != nil {
				return err
			}
		}
		return windows.UnmapViewOfFile(addr)
	}, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	// VirtualAlloc commits on first touch, like an anonymous mmap.
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, func([]byte) error {
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	_ = data
	_ = pattern
	return nil
}
