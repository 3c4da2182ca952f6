//go:build !unix

package sysmem

import "unsafe"

// Fallback for platforms without mmap and madvise. Regions are carved
// page-aligned out of ordinary Go allocations. Unused cannot hand pages back
// to the OS here, so it zeroes the range instead, which matches what a Linux
// caller observes after MADV_DONTNEED.

// UnusedZeroes reports whether Unused reliably leaves the range reading as
// zero, which the fallback guarantees by zeroing in place.
const UnusedZeroes = true

var reservations = make(map[uintptr][]byte)

func Reserve(size uintptr) ([]byte, error) {
	raw := make([]byte, size+pageSize)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := (pageSize - addr%pageSize) % pageSize
	mem := raw[off : off+size : off+size]
	// Keep the raw allocation alive for as long as the region is reserved.
	reservations[uintptr(unsafe.Pointer(&mem[0]))] = raw
	return mem, nil
}

func Free(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	delete(reservations, uintptr(unsafe.Pointer(&mem[0])))
	return nil
}

func Unused(mem []byte) {
	for i := range mem {
		mem[i] = 0
	}
}
