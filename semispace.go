// Package semispace implements a copying garbage collector for embedders
// that manage their own heap: language runtimes, interpreters, and similar
// single-threaded systems that lay out objects themselves.
//
// The heap is one contiguous power-of-two mapping split into two halves. At
// any time one half is the tospace: allocation bumps a pointer through it,
// and every object is a header word followed by embedder-defined fields. A
// collection flips the halves and copies the objects reachable from the root
// handles into the fresh half, Cheney style, with a single cursor chasing
// the allocation pointer instead of an explicit worklist. The header word of
// an evacuated object is overwritten with its new address, so every object
// is copied at most once per cycle and cycles in the object graph terminate.
//
// Objects of LargeObjectThreshold bytes or more never move. They live in a
// separate page-granularity space (package largeobject) that is marked in
// place, and both spaces share one fixed memory ceiling: each large
// allocation permanently donates page budget from the semi-space halves, so
// the total footprint stays put while the split between the two spaces
// drifts with the workload.
//
// The heap is deliberately single-threaded. Initialize returns the one
// Mutator; there are no locks, no write barriers, and no safepoints beyond
// the rule that any allocation may move every small object.
package semispace

import (
	"github.com/tinygc/semispace/internal/sysmem"
)

// space is the pair of semi-space halves. hp and limit delimit the free part
// of the current tospace; base and size describe the whole mapping. count is
// the number of completed flips, which also says which half is active: after
// an even count the upper half is the tospace.
type space struct {
	hp     uintptr
	limit  uintptr
	base   uintptr
	size   uintptr
	count  int64
	stolen uint64 // pages of budget donated to the large-object space

	mapping []byte
}

// initSpace reserves the backing memory and runs the first flip, so a fresh
// space starts with the upper half active and count at zero.
func initSpace(s *space, size uintptr) error {
	mem, err := sysmem.Reserve(size)
	if err != nil {
		return err
	}
	s.mapping = mem
	s.base = sliceAddr(mem)
	s.hp = s.base
	s.size = size
	s.count = -1
	s.flip()
	return nil
}

// flip makes the other half the current tospace and restores its limit to
// the full half, undoing any budget stolen during the previous generation.
// The half is chosen by the parity of count, so a steal that empties the
// tospace cannot confuse the selection.
func (s *space) flip() {
	split := s.base + (s.size >> 1)
	if s.count&1 != 0 {
		s.hp = split
		s.limit = s.base + s.size
	} else {
		s.hp = s.base
		s.limit = split
	}
	s.count++
}

// contains reports whether addr falls inside the mapping, either half.
func (s *space) contains(addr uintptr) bool {
	return addr-s.base < s.size
}

// free returns the bytes still allocatable in this generation.
func (s *space) free() uintptr {
	return s.limit - s.hp
}

// tospaceStart returns the first address of the current tospace, chosen by
// the same count parity as flip.
func (s *space) tospaceStart() uintptr {
	if s.count&1 == 0 {
		return s.base + (s.size >> 1)
	}
	return s.base
}

// stealPages donates npages of page budget to the large-object space. The
// count is rounded up to even so both halves give up the same amount: limit
// drops by half the donation in the current tospace, and the same range in
// the other half, found by mirroring the offset across the midpoint, is
// released too. Only the physical pages are dropped; the virtual reservation
// stays, and the next flip restores limit, so the donation must be renewed
// each generation. Returns false, changing nothing, if the tospace does not
// have that much free room.
func (s *space) stealPages(npages uintptr) bool {
	if npages&1 != 0 {
		npages++
	}
	halfSize := (npages * sysmem.PageSize()) >> 1
	if s.limit-s.hp < halfSize {
		return false
	}
	s.limit -= halfSize
	tospaceOffset := s.limit - s.base
	s.release(tospaceOffset, halfSize)
	fromspaceOffset := (tospaceOffset + (s.size >> 1)) & (s.size - 1)
	s.release(fromspaceOffset, halfSize)
	s.stolen += uint64(npages)
	return true
}

// release drops the physical pages behind size bytes at offset into the
// mapping. offset and size are page multiples because limit only ever moves
// by whole page pairs.
func (s *space) release(offset, size uintptr) {
	sysmem.Unused(s.mapping[offset : offset+size])
}
