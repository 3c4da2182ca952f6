// Package largeobject implements the page-granularity companion space of
// the copying heap. Objects above the embedder's large-object threshold are
// too expensive to move every cycle, so they are placed on whole pages,
// marked in place during collection, and their pages recycled through a
// reuse pool when they die.
//
// The space knows nothing about object layouts or tracing. The collector
// drives it through a strict cycle: StartGC clears the marks, Copy marks
// objects as references reach them, and FinishGC retires whatever stayed
// unmarked and reports how many pages survived. That page count is the rent
// the collector then pays out of the semi-space's budget, which is how both
// spaces share one memory ceiling.
package largeobject

import (
	"sort"
	"unsafe"

	"github.com/tinygc/semispace/internal/sysmem"
)

// object is one live large allocation.
type object struct {
	addr   uintptr
	npages uintptr
	marked bool
	mem    []byte
}

// run is a reusable region in the page pool. Its physical pages have been
// dropped; the virtual reservation is retained so the run can be handed out
// again without going back to the OS.
type run struct {
	mem    []byte
	npages uintptr
}

// Space is a large-object space. The zero value is not usable; call New.
type Space struct {
	pageSize uintptr
	objects  []object // live allocations, sorted by address
	pool     []run
	mappings [][]byte // whole reservations, kept for Release

	liveObjects uintptr // survivors of the last completed collection
	livePages   uintptr
}

// New creates an empty space.
func New() *Space {
	return &Space{pageSize: sysmem.PageSize()}
}

// NPages returns the number of pages a size-byte object occupies.
func (s *Space) NPages(size uintptr) uintptr {
	return (size + s.pageSize - 1) / s.pageSize
}

// Contains reports whether addr points into the pages of a live object.
func (s *Space) Contains(addr uintptr) bool {
	return s.lookup(addr) != nil
}

// lookup finds the object whose pages contain addr.
func (s *Space) lookup(addr uintptr) *object {
	i := sort.Search(len(s.objects), func(i int) bool {
		o := &s.objects[i]
		return addr < o.addr+o.npages*s.pageSize
	})
	if i < len(s.objects) && addr >= s.objects[i].addr {
		return &s.objects[i]
	}
	return nil
}

// StartGC begins a collection cycle with every object unmarked.
func (s *Space) StartGC() {
	for i := range s.objects {
		s.objects[i].marked = false
	}
}

// Copy marks the object containing addr as live this cycle and reports
// whether this was the first mark, which tells the collector the object's
// fields still need to be scanned. The object is not moved; the name keeps
// the operation parallel to what the copying space does with a reference.
func (s *Space) Copy(addr uintptr) bool {
	o := s.lookup(addr)
	if o == nil || o.marked {
		return false
	}
	o.marked = true
	return true
}

// FinishGC ends the cycle. Unmarked objects are dead: their physical pages
// are returned to the OS and the address runs are pooled for reuse. Returns
// the number of pages still live, the figure the collector owes budget for.
func (s *Space) FinishGC() uintptr {
	live := s.objects[:0]
	var pages, count uintptr
	for i := range s.objects {
		o := s.objects[i]
		if !o.marked {
			sysmem.Unused(o.mem)
			s.pool = append(s.pool, run{mem: o.mem, npages: o.npages})
			continue
		}
		live = append(live, o)
		pages += o.npages
		count++
	}
	s.objects = live
	s.liveObjects = count
	s.livePages = pages
	return pages
}

// Live returns the object and page counts of the survivors of the last
// completed collection.
func (s *Space) Live() (objects, pages uintptr) {
	return s.liveObjects, s.livePages
}

// Alloc takes npages from the reuse pool and returns the zeroed block's
// address, or 0 if no pooled run is big enough. The smallest run that fits
// is used, and an oversized run is split with the tail staying pooled.
func (s *Space) Alloc(npages uintptr) uintptr {
	best := -1
	for i := range s.pool {
		if s.pool[i].npages >= npages && (best < 0 || s.pool[i].npages < s.pool[best].npages) {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	r := s.pool[best]
	if r.npages > npages {
		size := npages * s.pageSize
		s.pool[best] = run{mem: r.mem[size:], npages: r.npages - npages}
		r = run{mem: r.mem[:size:size], npages: npages}
	} else {
		s.pool = append(s.pool[:best], s.pool[best+1:]...)
	}
	// Pooled pages may hold stale bytes on systems where releasing them
	// is only advisory.
	for i := range r.mem {
		r.mem[i] = 0
	}
	s.insert(r.mem, r.npages)
	return sliceAddr(r.mem)
}

// ObtainAndAlloc maps a fresh run of npages and allocates it. Returns 0
// only if the OS refuses the mapping.
func (s *Space) ObtainAndAlloc(npages uintptr) uintptr {
	mem, err := sysmem.Reserve(npages * s.pageSize)
	if err != nil {
		return 0
	}
	s.mappings = append(s.mappings, mem)
	s.insert(mem, npages)
	return sliceAddr(mem)
}

// insert records a new live object, keeping the registry address-sorted. A
// new object starts unmarked; if it is allocated between StartGC and
// FinishGC the collector marks it through Copy like any other.
func (s *Space) insert(mem []byte, npages uintptr) {
	addr := sliceAddr(mem)
	i := sort.Search(len(s.objects), func(i int) bool {
		return s.objects[i].addr > addr
	})
	s.objects = append(s.objects, object{})
	copy(s.objects[i+1:], s.objects[i:])
	s.objects[i] = object{addr: addr, npages: npages, mem: mem}
}

// Mapped returns the total address space the space has reserved, live or
// pooled.
func (s *Space) Mapped() uintptr {
	var n uintptr
	for _, m := range s.mappings {
		n += uintptr(len(m))
	}
	return n
}

// Release unmaps every reservation. For heap teardown only; the space must
// not be used afterwards.
func (s *Space) Release() {
	for _, m := range s.mappings {
		_ = sysmem.Free(m)
	}
	s.mappings = nil
	s.objects = nil
	s.pool = nil
}

func sliceAddr(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}
