package semispace

import (
	"fmt"
	"time"
)

// Collection is Cheney's algorithm. flip makes the old fromspace the new
// tospace, the roots are forwarded into it, and a single grey cursor walks
// from the start of the tospace towards the allocation pointer, scanning
// each copied object and appending whatever it references. The header word
// does double duty: normally it holds the kind tag, and from the moment an
// object is evacuated it holds the address of the copy, so a later visit
// finds the forwarding address instead of copying again. The cursor only
// moves forward and every object is appended at most once, so the cursor
// catches the allocation pointer after one pass over the live data and the
// loop terminates even on cyclic graphs.

// copyObject evacuates an unforwarded object into the tospace and leaves the
// forwarding address in the old header. The caller has already established
// that the header is a kind tag.
func (h *Heap) copyObject(kind Kind, obj Ref) Ref {
	size := h.kinds[kind].Size(obj)
	newObj := h.semi.hp
	memcpy(newObj, uintptr(obj), size)
	storeWord(uintptr(obj), newObj)
	h.semi.hp += alignUp(size, Alignment)
	h.copied++
	return Ref(newObj)
}

// forward returns the tospace address of obj, evacuating it on the first
// visit of the cycle. A header word that is not a kind tag is the forwarding
// address left by an earlier visit.
func (h *Heap) forward(obj Ref) Ref {
	header := loadWord(uintptr(obj))
	if header < uintptr(len(h.kinds)) {
		return h.copyObject(Kind(header), obj)
	}
	return Ref(header)
}

// scan visits the reference slots of the object at addr and returns the
// address just past it. The object's header must be a kind tag; anything
// else means the embedder handed out a reference to a non-object address.
func (h *Heap) scan(addr uintptr) uintptr {
	tag := loadWord(addr)
	if tag >= uintptr(len(h.kinds)) {
		fatal(ReasonCorrupt, "scanned object at %#x has invalid kind tag %#x", addr, tag)
	}
	info := &h.kinds[tag]
	if info.Visit != nil {
		info.Visit(Ref(addr), h.visitor)
	}
	return addr + alignUp(info.Size(Ref(addr)), Alignment)
}

// visitSlot relocates or marks whatever the slot references and writes the
// new address back. Small objects move and the slot is updated to the
// forwarded address; large objects stay put and are scanned in place the
// first time a reference reaches them this cycle.
func (h *Heap) visitSlot(slot *Ref) {
	obj := *slot
	if obj == 0 {
		return
	}
	if h.semi.contains(uintptr(obj)) {
		*slot = h.forward(obj)
	} else if h.large.Contains(uintptr(obj)) {
		if h.large.Copy(uintptr(obj)) {
			h.scan(uintptr(obj))
		}
	} else {
		fatal(ReasonCorrupt, "reference %#x is outside both spaces", uintptr(obj))
	}
}

// collect runs one full stop-the-world collection and then lets the
// semi-space opportunistically re-donate the budget for the pages the
// large-object space kept live.
func (h *Heap) collect(m *Mutator) {
	if h.audit {
		h.auditBefore(m)
	}
	start := time.Now()
	h.copied = 0
	h.large.StartGC()
	h.semi.flip()
	greyStart := h.semi.hp
	for r := m.roots; r != nil; r = r.next {
		h.visitSlot(&r.ref)
	}
	for grey := greyStart; grey < h.semi.hp; {
		grey = h.scan(grey)
	}
	livePages := h.large.FinishGC()
	h.semi.stealPages(livePages)

	// Every object that survives a cycle existed before the flip, so the
	// difference between what existed and what survived is what died.
	largeObjects, _ := h.large.Live()
	survivors := h.copied + uint64(largeObjects)
	h.freed += h.liveLast + (h.mallocs - h.mallocsAt) - survivors
	h.liveLast = survivors
	h.mallocsAt = h.mallocs
	h.lastGC = time.Now()
	h.pauseTotal += h.lastGC.Sub(start)
	if h.trace != nil {
		fmt.Fprintf(h.trace, "gc %d: copied %d objects (%d bytes), %d large pages live, %d bytes free\n",
			h.semi.count, h.copied, h.semi.hp-greyStart, livePages, h.semi.free())
	}
	if h.audit {
		h.auditAfter(m)
	}
}

// collectForAlloc collects and then insists the request fits. There is no
// growth policy: if the tospace is still short afterwards, the heap is
// exhausted.
func (h *Heap) collectForAlloc(m *Mutator, bytes uintptr) {
	h.collect(m)
	if h.semi.free() < bytes {
		fatal(ReasonOutOfMemory, "ran out of space allocating %d bytes, heap size %d", bytes, h.semi.size)
	}
}

// GC runs a collection immediately. Embedders rarely need it; it exists for
// runtimes with idle phases and for tests that want a cycle at a known
// point. Like any allocation it invalidates every Ref not reachable from a
// pushed handle.
func (m *Mutator) GC() {
	m.heap.collect(m)
}
