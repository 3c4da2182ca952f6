package semispace

import (
	"fmt"
	"io"

	"github.com/tinygc/semispace/internal/sysmem"
)

// MemStats records memory and collector statistics. Field names follow the
// runtime's MemStats where the meaning carries over to this heap.
type MemStats struct {
	// Sys is the total address space reserved: the semi-space mapping
	// plus everything the large-object space has mapped.
	Sys uint64

	// HeapSys is the usable tospace in the current generation, which can
	// be less than half the mapping after budget donations.
	HeapSys uint64

	// HeapInuse is the bytes bump-allocated in the current tospace and
	// HeapIdle the bytes still free before the next collection.
	HeapInuse uint64
	HeapIdle  uint64

	// TotalAlloc and Mallocs count bytes and objects ever requested.
	// Frees counts objects found dead by collections; there is no
	// per-object free, so it only moves when a collection runs.
	TotalAlloc uint64
	Mallocs    uint64
	Frees      uint64

	// LargeObjects and LargePages describe the survivors in the
	// large-object space; StolenPages is the cumulative page budget the
	// semi-space has donated to it.
	LargeObjects uint64
	LargePages   uint64
	StolenPages  uint64

	// NumGC is the number of completed collections. PauseTotalNs is the
	// time spent inside them and LastGC the end of the most recent one in
	// nanoseconds since the Unix epoch, zero before the first.
	NumGC        uint32
	PauseTotalNs uint64
	LastGC       uint64
}

// ReadMemStats fills in stats about the heap. It never triggers a
// collection.
func (h *Heap) ReadMemStats(m *MemStats) {
	largeObjects, largePages := h.large.Live()
	m.Sys = uint64(h.semi.size) + uint64(h.large.Mapped())
	m.HeapSys = uint64(h.semi.limit - h.semi.tospaceStart())
	m.HeapInuse = uint64(h.semi.hp - h.semi.tospaceStart())
	m.HeapIdle = uint64(h.semi.free())
	m.TotalAlloc = h.totalAlloc
	m.Mallocs = h.mallocs
	m.Frees = h.freed
	m.LargeObjects = uint64(largeObjects)
	m.LargePages = uint64(largePages)
	m.StolenPages = h.semi.stolen
	m.NumGC = uint32(h.semi.count)
	m.PauseTotalNs = uint64(h.pauseTotal.Nanoseconds())
	if !h.lastGC.IsZero() {
		m.LastGC = uint64(h.lastGC.UnixNano())
	}
}

// PageSize returns the OS page size the heap was built with, the unit of
// NPages accounting and budget donation.
func PageSize() uintptr {
	return sysmem.PageSize()
}

// PrintStats writes the traditional end-of-run report.
func (h *Heap) PrintStats(w io.Writer) {
	var m MemStats
	h.ReadMemStats(&m)
	fmt.Fprintf(w, "Completed %d collections\n", m.NumGC)
	fmt.Fprintf(w, "Heap size is %s\n", ByteSize(h.semi.size))
}
