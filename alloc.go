package semispace

// LargeObjectThreshold is the size, in bytes, at or above which allocations
// are served by the large-object space instead of being bump-allocated and
// copied every cycle.
const LargeObjectThreshold = 8192

// Allocate returns a zeroed object of the given kind and size. size counts
// the header word and must be at least HeaderSize; kind must be registered.
//
// Allocation is the only safepoint: it may run a full collection, after
// which every Ref not reachable from a pushed Handle is invalid and refs
// held in locals must be re-read from their handles.
func (m *Mutator) Allocate(kind Kind, size uintptr) Ref {
	h := m.heap
	if uintptr(kind) >= uintptr(len(h.kinds)) {
		panic("semispace: Allocate with unregistered kind")
	}
	if size < HeaderSize {
		panic("semispace: allocation smaller than the object header")
	}
	var obj Ref
	if size >= LargeObjectThreshold {
		obj = m.allocateLarge(kind, size)
	} else {
		for {
			addr := h.semi.hp
			newHP := alignUp(addr+size, Alignment)
			if h.semi.limit < newHP {
				h.collectForAlloc(m, alignUp(size, Alignment))
				continue
			}
			h.semi.hp = newHP
			storeWord(addr, uintptr(kind))
			memzero(addr+HeaderSize, size-HeaderSize)
			obj = Ref(addr)
			break
		}
	}
	// Counted only after the object exists, so a collection triggered by the
	// retry loop never sees a malloc with no object behind it.
	h.mallocs++
	h.totalAlloc += uint64(size)
	return obj
}

// AllocatePointerless is Allocate for objects the embedder guarantees hold
// no references. It currently behaves identically.
// TODO: skip the memzero here once kinds can declare themselves pointer-free.
func (m *Mutator) AllocatePointerless(kind Kind, size uintptr) Ref {
	return m.Allocate(kind, size)
}

// allocateLarge reserves page budget from the semi-space and then takes the
// pages from the large-object space: first from its reuse pool, then from a
// fresh mapping. If the budget cannot be reserved even after a collection
// the heap is out of pages; if the pages cannot be produced after the budget
// was reserved, the accounting itself is broken and the two cases are
// reported apart.
func (m *Mutator) allocateLarge(kind Kind, size uintptr) Ref {
	h := m.heap
	npages := h.large.NPages(size)
	if !h.semi.stealPages(npages) {
		h.collect(m)
		if !h.semi.stealPages(npages) {
			fatal(ReasonPageBudget, "ran out of space for %d pages (%d byte object), heap size %d",
				npages, size, h.semi.size)
		}
	}
	addr := h.large.Alloc(npages)
	if addr == 0 {
		addr = h.large.ObtainAndAlloc(npages)
	}
	if addr == 0 {
		fatal(ReasonPageAlloc, "have budget for %d pages but could not map them", npages)
	}
	storeWord(addr, uintptr(kind))
	return Ref(addr)
}
