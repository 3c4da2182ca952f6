//go:build unix

package sysmem

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// UnusedZeroes reports whether Unused reliably leaves the range reading as
// zero. Linux frees anonymous pages on MADV_DONTNEED; the BSDs and darwin
// treat it as a hint.
const UnusedZeroes = runtime.GOOS == "linux"

// Reserve maps size bytes of zeroed, page-aligned anonymous memory.
func Reserve(size uintptr) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// Free returns a region obtained from Reserve to the OS.
func Free(mem []byte) error {
	return unix.Munmap(mem)
}

// Unused drops the physical pages backing mem while keeping the virtual range
// reserved. mem must be page-aligned and a whole number of pages long. On
// Linux the next read of the range observes zero bytes; on other systems the
// call is advisory and the old contents may linger until the kernel reclaims
// the frames.
func Unused(mem []byte) {
	if len(mem) == 0 {
		return
	}
	_ = unix.Madvise(mem, unix.MADV_DONTNEED)
}
