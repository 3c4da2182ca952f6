// Package sysmem provides the few OS memory primitives the heap is built on:
// reserving zeroed page-aligned regions, dropping the physical backing of a
// region while keeping its virtual reservation, and returning regions to the
// OS.
//
// The contract follows the usual hosted-runtime state machine. Reserve hands
// back Ready memory: zero-filled and faultable. Unused moves pages to a state
// where the OS may reclaim the physical frames while the address range stays
// reserved; touching the range afterwards is still legal. Free ends the
// reservation entirely and must only be given whole regions as returned by
// Reserve, never subslices.
package sysmem

import "os"

var pageSize = uintptr(os.Getpagesize())

// PageSize returns the OS page size in bytes.
func PageSize() uintptr {
	return pageSize
}

// Pages returns the number of whole pages needed to hold size bytes.
func Pages(size uintptr) uintptr {
	return (size + pageSize - 1) / pageSize
}
